package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccontavalli/webauth/lib/kflags"
	"github.com/ccontavalli/webauth/lib/logger"
	"github.com/ccontavalli/webauth/lib/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenKey(t *testing.T) {
	flags := DefaultFlags()
	key, err := TokenKey(flags, logger.Nil)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	dir := t.TempDir()
	flags.TokenKeyFile = filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(flags.TokenKeyFile, []byte("too short"), 0600))
	_, err = TokenKey(flags, logger.Nil)
	var usage *kflags.UsageError
	assert.True(t, errors.As(err, &usage), "%v", err)

	flags.TokenKeyFile = filepath.Join(dir, "good")
	require.NoError(t, os.WriteFile(flags.TokenKeyFile, []byte("0123456789abcdef0123456789abcdef"), 0600))
	key, err = TokenKey(flags, logger.Nil)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", string(key))

	flags.TokenKeyFile = filepath.Join(dir, "missing")
	_, err = TokenKey(flags, logger.Nil)
	assert.True(t, errors.As(err, &usage), "%v", err)
}

func TestNewLogger(t *testing.T) {
	flags := DefaultFlags()
	flags.LogFile = filepath.Join(t.TempDir(), "webauth.log")

	log, flush, err := NewLogger(flags)
	require.NoError(t, err)
	log.Infof("server started on %s", ":8080")
	flush()

	data, err := os.ReadFile(flags.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"server started on :8080"`)

	flags.Log.Level = "loud"
	_, _, err = NewLogger(flags)
	var usage *kflags.UsageError
	assert.True(t, errors.As(err, &usage), "%v", err)
}

func TestNewHandler(t *testing.T) {
	flags := DefaultFlags()
	store := session.NewMemory()
	defer store.Close()

	handler, metrics, err := NewHandler(context.Background(), flags, store, []byte("0123456789abcdef0123456789abcdef"), logger.Nil)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	for path, status := range map[string]int{
		"/":             http.StatusFound,
		"/login":        http.StatusOK,
		"/css/site.css": http.StatusOK,
		"/home":         http.StatusFound,
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, "path %s", path)
	}

	flags.Providers.OIDC.ClientID = "client"
	_, _, err = NewHandler(context.Background(), flags, store, []byte("0123456789abcdef0123456789abcdef"), logger.Nil)
	assert.Error(t, err)
}

func TestCommandFlags(t *testing.T) {
	command := New()
	for _, name := range []string{"address", "token-key-file", "log-level", "session-store", "users-file", "github-client-id", "request-log-end"} {
		assert.NotNil(t, command.PersistentFlags().Lookup(name), "flag %s", name)
	}
}

func TestServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- serve(ctx, logger.Nil, time.Second, srv) }()
	cancel()
	assert.NoError(t, <-done)
}

func TestServeFailure(t *testing.T) {
	srv := &http.Server{Addr: "invalid:address:", Handler: http.NotFoundHandler()}
	assert.Error(t, serve(context.Background(), logger.Nil, time.Second, srv))
}
