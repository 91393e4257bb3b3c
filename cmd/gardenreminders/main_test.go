package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/verification"
)

func TestOpenStoresSQLite(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "reminders.db")

	s, err := openStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.tasks)
	assert.Same(t, s.tasks, s.notifications)
	assert.Same(t, s.tasks, s.verifications)
}

func TestOpenStoresUnknownDriver(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "reminders.db")
	cfg.Store.Driver = "postgres"

	_, err := openStores(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestRunUnknownCommand(t *testing.T) {
	assert.Error(t, run([]string{"frobnicate"}))
	assert.NoError(t, run(nil))
}

func TestNotificationsRequiresUser(t *testing.T) {
	err := run([]string{"notifications", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "--user is required")
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, run([]string{"init-config", "--config", path}))

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	assert.ErrorContains(t, run([]string{"init-config", "--config", path}), "already exists")
	assert.NoError(t, run([]string{"init-config", "--config", path, "--force"}))
}

func issueThroughFallback(t *testing.T, exposeCode bool) (logged, code string) {
	t.Helper()
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_USERNAME", "")

	var buf bytes.Buffer
	router, err := newRouter(zerolog.New(&buf), exposeCode)
	require.NoError(t, err)

	ctx := context.Background()
	repo := verification.NewMemoryRepository()
	m := verification.New(repo, router, verification.Options{ExposeCode: exposeCode, Logger: zerolog.Nop()})
	_, err = m.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	m.Wait()

	rec, err := repo.GetVerification(ctx, "a@x.com")
	require.NoError(t, err)
	return buf.String(), rec.Code
}

func TestEmailFallbackKeepsCodesOutOfLogs(t *testing.T) {
	logged, code := issueThroughFallback(t, false)
	assert.NotContains(t, logged, code)
	assert.Contains(t, logged, `"to":"a@x.com"`)
}

func TestEmailFallbackLogsBodyWithDiagnostics(t *testing.T) {
	logged, code := issueThroughFallback(t, true)
	assert.Contains(t, logged, code)
}

func TestValidateRequired(t *testing.T) {
	check := validateRequired("Password")
	assert.EqualError(t, check("   "), "Password is required")
	assert.NoError(t, check("s3cret"))

	var password string
	assert.NotNil(t, smtpPasswordForm(&password))
}
