package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/config"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_DEV", "false")
	t.Setenv("LOG_FILE", "")
	t.Setenv("SESSION_PRIVATE_KEY_FILE", "")
	t.Setenv("ADMIN_API_KEY", "cli-test-key")
	t.Setenv("ALLOWED_EMAIL_DOMAINS", "")
}

func TestCreateAdminCommand(t *testing.T) {
	memoryEnv(t)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"create-admin", "--email", "Root@Corp.io", "--name", "Root", "--username", "root"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "created admin root <root@corp.io>")
	assert.Regexp(t, `generated password: [a-z0-9]{10}\n`, out.String())
}

func TestCreateAdminCommand_Invalid(t *testing.T) {
	memoryEnv(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"create-admin", "--email", "not-an-email", "--name", "Root", "--username", "root"})
	assert.ErrorContains(t, cmd.Execute(), "INVALID_EMAIL")
}

func TestMigrateCommand_NeedsPostgres(t *testing.T) {
	memoryEnv(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate"})
	assert.ErrorContains(t, cmd.Execute(), "STORE_DRIVER=postgres")
}

func TestBuildHandler_Memory(t *testing.T) {
	memoryEnv(t)
	cfg, err := config.Parse()
	require.NoError(t, err)

	logger := zaptest.NewLogger(t).Sugar()
	st, err := openStores(cfg, logger)
	require.NoError(t, err)
	defer st.Close()

	h, err := buildHandler(cfg, st, logger)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("X-API-Key", "cli-test-key")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"users":[],"pagination":{"currentPage":1,"totalPages":0,"totalUsers":0,"hasNext":false,"hasPrev":false}}`, rec.Body.String())
}
