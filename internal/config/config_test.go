package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"rcsync/internal/domain"
	"rcsync/internal/reconcile"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("SOURCE_URL", "https://example.test/cards.json")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadFromEnvWithDefaults(t *testing.T) {
	setMinimalValidConfigEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SourceDriver != "http" {
		t.Fatalf("unexpected source driver default: %q", cfg.SourceDriver)
	}
	if cfg.StatusURLTemplate != "https://aepos.ap.gov.in/Qcodesearch.jsp?rcno={id}" {
		t.Fatalf("unexpected status url default: %q", cfg.StatusURLTemplate)
	}
	if cfg.Workers != reconcile.DefaultWorkers {
		t.Fatalf("unexpected workers default: %d", cfg.Workers)
	}
	if cfg.FetchTimeoutSeconds != 10 || cfg.SourceTimeoutSeconds != 20 {
		t.Fatalf("unexpected timeouts: fetch=%d source=%d", cfg.FetchTimeoutSeconds, cfg.SourceTimeoutSeconds)
	}
	if cfg.Policy != reconcile.PolicyUnresolved {
		t.Fatalf("unexpected policy default: %q", cfg.Policy)
	}
	if cfg.StoreDriver != "file" || cfg.OutputFile != DefaultOutputFile {
		t.Fatalf("unexpected store defaults: %q %q", cfg.StoreDriver, cfg.OutputFile)
	}
	if cfg.DBPath != DefaultDBPath || !cfg.HistoryEnabled() {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.SlackConfigured() {
		t.Fatal("slack should not be configured without token and channel")
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
source_driver: "file"
source_path: "/data/cards.json"
workers: 4
policy: "custom"
resolved_statuses: ["Done"]
extract_strategy: "presence"
reporting_month: "Sep"
timezone: "Asia/Kolkata"
store_driver: "s3"
s3_bucket: "rc-bucket"
s3_key: "status/transaction_status.json"
s3_path_style: true
db_path: ""
run_schedule: "0 6 * * *"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "ignored.yaml"))
	t.Setenv("WORKERS", "16")
	t.Setenv("RESOLVED_STATUSES", "Done, Not Done")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("REPORT_CHANNEL_ID", "C123")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SourceDriver != "file" || cfg.SourcePath != "/data/cards.json" {
		t.Fatalf("expected file source from yaml, got %q %q", cfg.SourceDriver, cfg.SourcePath)
	}
	if cfg.Workers != 16 {
		t.Fatalf("expected workers from env override, got %d", cfg.Workers)
	}
	policy, err := cfg.ResolvedPolicy()
	if err != nil {
		t.Fatalf("ResolvedPolicy: %v", err)
	}
	if !policy.IsResolved(domain.StatusNotDone) || policy.IsResolved(domain.StatusUnknown) {
		t.Fatalf("unexpected custom policy: %s", policy)
	}
	if cfg.HistoryEnabled() {
		t.Fatal("explicit empty db_path should disable history")
	}
	if !cfg.SlackConfigured() {
		t.Fatal("expected slack to be configured from env")
	}
	if got := cfg.Period(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)); got.Month != time.September {
		t.Fatalf("expected reporting month override, got %s", got)
	}
	sc := cfg.StoreConfig()
	if sc.Driver != "s3" || sc.S3.Bucket != "rc-bucket" || !sc.S3.PathStyle {
		t.Fatalf("unexpected store config: %+v", sc)
	}
}

func TestPeriodFollowsTimezone(t *testing.T) {
	setMinimalValidConfigEnv(t)
	t.Setenv("TIMEZONE", "Asia/Kolkata")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	// 20:00 UTC on 31 October is already 1 November in India.
	got := cfg.Period(time.Date(2026, 10, 31, 20, 0, 0, 0, time.UTC))
	if got.Month != time.November {
		t.Fatalf("expected November, got %s", got)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"http source without url", map[string]string{"SOURCE_URL": "", "SOURCE_DRIVER": "http"}},
		{"file source without path", map[string]string{"SOURCE_DRIVER": "file"}},
		{"unknown source", map[string]string{"SOURCE_DRIVER": "ftp"}},
		{"s3 without bucket", map[string]string{"STORE_DRIVER": "s3"}},
		{"template without placeholder", map[string]string{"STATUS_URL_TEMPLATE": "https://example.test/q"}},
		{"too many workers", map[string]string{"WORKERS": "65"}},
		{"bad workers", map[string]string{"WORKERS": "many"}},
		{"unknown policy", map[string]string{"POLICY": "sometimes"}},
		{"bad custom status", map[string]string{"POLICY": "custom", "RESOLVED_STATUSES": "Finished"}},
		{"unknown strategy", map[string]string{"EXTRACT_STRATEGY": "guess"}},
		{"bad month", map[string]string{"REPORTING_MONTH": "Smarch"}},
		{"bad schedule", map[string]string{"RUN_SCHEDULE": "daily"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Colony"}},
		{"bad bool", map[string]string{"S3_PATH_STYLE": "sometimes"}},
		{"bad quantity", map[string]string{"ALLOWED_QUANTITIES": "10kg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalValidConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("workers: [1, 2"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("RC_TEST_STR", "value")
	envOverride(&s, "RC_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	empty := "keep"
	t.Setenv("RC_TEST_EMPTY", "")
	envOverrideAllowEmpty(&empty, "RC_TEST_EMPTY")
	if empty != "" {
		t.Fatalf("envOverrideAllowEmpty failed, got %q", empty)
	}

	i := 1
	t.Setenv("RC_TEST_INT", "42")
	if err := envOverrideInt(&i, "RC_TEST_INT"); err != nil || i != 42 {
		t.Fatalf("envOverrideInt failed, got %d (%v)", i, err)
	}

	b := false
	t.Setenv("RC_TEST_BOOL", "1")
	if err := envOverrideBool(&b, "RC_TEST_BOOL"); err != nil || !b {
		t.Fatalf("envOverrideBool failed, got %v (%v)", b, err)
	}

	var list []string
	t.Setenv("RC_TEST_LIST", " 5.000, ,10.000 ")
	envOverrideList(&list, "RC_TEST_LIST")
	if len(list) != 2 || list[0] != "5.000" || list[1] != "10.000" {
		t.Fatalf("envOverrideList failed, got %v", list)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("missing env files should be ignored: %v", err)
	}

	t.Setenv("RC_DOTENV_KEEP", "from-process")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RC_DOTENV_KEEP=from-file\nRC_DOTENV_NEW=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("RC_DOTENV_NEW") })

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("RC_DOTENV_KEEP"); got != "from-process" {
		t.Fatalf("existing variable overwritten: %q", got)
	}
	if got := os.Getenv("RC_DOTENV_NEW"); got != "loaded" {
		t.Fatalf("expected variable from .env, got %q", got)
	}
}

func TestLoadConfigInvalidTimezoneFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_TZ_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("SOURCE_URL", "https://example.test/cards.json")
		_ = os.Setenv("TIMEZONE", "Mars/Colony")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigInvalidTimezoneFatal")
	cmd.Env = append(os.Environ(), "TEST_INVALID_TZ_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
