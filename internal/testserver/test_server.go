// Package testserver spins up a full HTTP stack against an in-memory
// database for integration tests.
package testserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gatherly/matchkit/internal/domain/groupconfig"
	"github.com/gatherly/matchkit/internal/domain/grouping"
	"github.com/gatherly/matchkit/internal/domain/run"
	"github.com/gatherly/matchkit/internal/mcp"
	"github.com/gatherly/matchkit/internal/profile"
	"github.com/gatherly/matchkit/internal/sqlite"
	"github.com/gatherly/matchkit/internal/transport"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server *httptest.Server
	DB     *sqlite.DB
	Token  string
	OrgID  string
}

// New builds a server backed by a fresh in-memory database and the given
// profile fixture, and registers an API key for token/orgID.
func New(t *testing.T, token, orgID string, profiles profile.Source) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	configRepo := sqlite.NewConfigRepository(db)
	runRepo := sqlite.NewRunRepository(db)

	configSvc := groupconfig.NewService(configRepo, nil)
	// A short deterministic schedule keeps integration tests fast and stable.
	runSvc := run.NewServiceWithSchedule(configRepo, runRepo, profiles, nil,
		grouping.Schedule{Iterations: 2000, StartTemp: 0, Seed: 1}, grouping.DefaultLookback)

	handler := mcp.NewHandler(configSvc, runSvc)

	resolver := &apiKeyResolver{db: db}
	server := httptest.NewServer(transport.NewServer(handler, transport.AuthMiddleware(resolver)))

	ts := &TestServer{
		Server: server,
		DB:     db,
		Token:  token,
		OrgID:  orgID,
	}

	require.NoError(t, ts.AddAPIKey(token, orgID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, orgID string) error {
	hash := hashToken(token)
	_, err := ts.DB.Exec(
		`INSERT INTO api_keys (key_hash, org_id, created_at) VALUES (?, ?, ?)`,
		hash, orgID, time.Now(),
	)
	return err
}

type apiKeyResolver struct {
	db *sqlite.DB
}

func (r *apiKeyResolver) ResolveOrg(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)
	var orgID string
	err := r.db.QueryRowContext(ctx, `SELECT org_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&orgID)
	if err != nil || orgID == "" {
		return "", transport.ErrUnauthorized
	}
	return orgID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
