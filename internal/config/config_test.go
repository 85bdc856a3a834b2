package config

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	f := fs.NewFile(t, "e2e-config", fs.WithContent(content))
	return f.Path()
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "command: \"npx playwright test\"\n")

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Retries, 3)
	assert.Equal(t, cfg.HangTimeout.Std(), 15*time.Minute)
	assert.Equal(t, cfg.GracePeriod.Std(), 15*time.Second)
	assert.Equal(t, cfg.WebServer.URL, "http://localhost:3000/healthz")
	assert.Equal(t, cfg.WebServer.ReadyTimeout.Std(), 30*time.Second)
	assert.Equal(t, cfg.LockDir, "/tmp/site-e2e.lock")
}

func TestLoadFullFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
command: "npx playwright test --grep smoke"
workers: 4
retries: 2
timeout: 45s
browsers: [chromium, firefox, webkit]
web_server:
  command: "siteserver --root build"
  url: "http://localhost:3000/healthz"
  ready_timeout: 10s
hang_timeout: 5m
grace_period: 5s
lock_dir: /tmp/other.lock
log_file: /tmp/e2e.log
`)

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Command, "npx playwright test --grep smoke")
	assert.Equal(t, cfg.Workers, 4)
	assert.Equal(t, cfg.Retries, 2)
	assert.Equal(t, cfg.Timeout.Std(), 45*time.Second)
	assert.DeepEqual(t, cfg.Browsers, []string{"chromium", "firefox", "webkit"})
	assert.Equal(t, cfg.WebServer.Command, "siteserver --root build")
	assert.Equal(t, cfg.WebServer.ReadyTimeout.Std(), 10*time.Second)
	assert.Equal(t, cfg.HangTimeout.Std(), 5*time.Minute)
	assert.Equal(t, cfg.LogFile, "/tmp/e2e.log")
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "comand: typo\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "comand")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "hang_timeout: quince\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty command", `command: ""` + "\n", "command must not be empty"},
		{"zero workers", "workers: 0\n", "workers must be positive"},
		{"negative retries", "retries: -1\n", "retries must not be negative"},
		{"empty lock dir", `lock_dir: ""` + "\n", "lock_dir must not be empty"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tc.yaml))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load("/nonexistent/e2e.yaml")
	assert.ErrorContains(t, err, "open config")
}
