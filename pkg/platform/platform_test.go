package platform

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CLAIMCOST_TEST_INT", " 42 ")
	t.Setenv("CLAIMCOST_TEST_BAD_INT", "forty")
	t.Setenv("CLAIMCOST_TEST_BOOL", "Yes")
	t.Setenv("CLAIMCOST_TEST_DUR", "90s")

	assert.Equal(t, "fallback", GetEnv("CLAIMCOST_TEST_UNSET", "fallback"))
	assert.Equal(t, 42, GetEnvInt("CLAIMCOST_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("CLAIMCOST_TEST_BAD_INT", 1))
	assert.True(t, GetEnvBool("CLAIMCOST_TEST_BOOL", false))
	assert.True(t, GetEnvBool("CLAIMCOST_TEST_UNSET", true))
	assert.Equal(t, 90*time.Second, GetEnvDuration("CLAIMCOST_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration("CLAIMCOST_TEST_UNSET", time.Second))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CLAIMCOST_DOTENV_A=from-file\nCLAIMCOST_DOTENV_B=from-file\n"), 0o600))
	t.Setenv("CLAIMCOST_DOTENV_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("CLAIMCOST_DOTENV_A") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("CLAIMCOST_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("CLAIMCOST_DOTENV_B"), "existing values are not overridden")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "nope.env")))
}

func TestInitLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	buf := &bytes.Buffer{}
	logger := initLogger(buf, "warn", false)
	logger.Info().Msg("hidden")
	logger.Warn().Str("zone", "kitchen").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"zone":"kitchen"`)

	buf.Reset()
	logger = initLogger(buf, "not-a-level", false)
	logger.Info().Msg("info is the default")
	assert.Contains(t, buf.String(), "info is the default")
}

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	open := APIKeyMiddleware("")(ok)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	guarded := APIKeyMiddleware("s3cret")(ok)
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "s3cret")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
