package config

import (
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_LogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "INFO"} {
		cfg := Defaults()
		cfg.General.LogLevel = level
		if err := Validate(cfg); err != nil {
			t.Fatalf("logLevel %q should be valid: %v", level, err)
		}
	}

	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for logLevel=verbose")
	}
}

func TestValidate_LogFormat(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogFormat = "xml"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for logFormat=xml")
	}
}

func TestValidate_BusSize_Boundary(t *testing.T) {
	cfg := Defaults()

	cfg.Relay.BusSize = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("busSize=1 should be valid: %v", err)
	}

	cfg.Relay.BusSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for busSize=0")
	}

	cfg.Relay.BusSize = 10001
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for busSize=10001")
	}
}

func TestValidate_PollTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.PollTimeout = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative pollTimeout")
	}
}

func TestValidate_RecentWindow(t *testing.T) {
	cfg := Defaults()
	cfg.Relay.RecentWindow = -5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative recentWindow")
	}
}

func TestValidate_ChannelsFileRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Relay.ChannelsFile = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty channelsFile")
	}
}

func TestValidate_DeliveryTimeout(t *testing.T) {
	cfg := Defaults()
	cfg.Delivery.TimeoutSeconds = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for timeoutSeconds=0")
	}
}

func TestValidate_PruneSchedule(t *testing.T) {
	cfg := Defaults()
	cfg.State.PruneSchedule = "not a schedule"
	if err := Validate(cfg); err != nil {
		t.Fatalf("schedule is ignored without dbPath: %v", err)
	}

	cfg.State.DBPath = "/tmp/state.db"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid pruneSchedule")
	}

	cfg.State.PruneSchedule = "0 3 * * *"
	if err := Validate(cfg); err != nil {
		t.Fatalf("cron expression should be valid: %v", err)
	}
}

func TestValidate_Metrics(t *testing.T) {
	cfg := Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for metrics without listen address")
	}

	cfg = Defaults()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Endpoint = "metrics"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for relative metrics endpoint")
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Relay.BlockedMentions = []string{"@one", "@two"}
	original.Relay.RecentWindow = 200

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(loaded.Relay.BlockedMentions) != 2 || loaded.Relay.BlockedMentions[1] != "@two" {
		t.Fatalf("unexpected mentions: %v", loaded.Relay.BlockedMentions)
	}
	if loaded.Relay.RecentWindow != 200 {
		t.Fatalf("expected recentWindow 200, got %d", loaded.Relay.RecentWindow)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("expected defaults, got: %v", err)
	}
	if found {
		t.Fatal("found should be false")
	}
	if cfg.Relay.BusSize != 100 {
		t.Fatalf("expected default busSize, got %d", cfg.Relay.BusSize)
	}
}

func TestLoadOrDefault_InvalidJSONIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json}"), 0o644)

	if _, _, err := LoadOrDefault(path); err == nil {
		t.Fatal("expected parse error, not defaults")
	}
}

func TestLoad_ValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{"relay": {"busSize": 0}}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgFile); err == nil {
		t.Fatal("expected validation error for busSize=0")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgFile, []byte(`{"telegram": {"token": "abc"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "abc" {
		t.Fatalf("expected token abc, got %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.PollTimeout != 30 {
		t.Fatalf("expected default pollTimeout, got %d", cfg.Telegram.PollTimeout)
	}
}

// --- Environment ---

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CHANRELAY_TELEGRAM_TOKEN", "from-env")
	t.Setenv("CHANRELAY_BLOCKED_MENTIONS", "@a,@b")

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgFile, []byte(`{"telegram": {"token": "from-file"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("expected env token, got %q", cfg.Telegram.Token)
	}
	if len(cfg.Relay.BlockedMentions) != 2 || cfg.Relay.BlockedMentions[0] != "@a" {
		t.Fatalf("unexpected mentions: %v", cfg.Relay.BlockedMentions)
	}
}

func TestApplyEnv_UnsetLeavesValues(t *testing.T) {
	os.Unsetenv("CHANRELAY_CHANNELS_FILE")
	cfg := Defaults()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Relay.ChannelsFile != "channel_config.json" {
		t.Fatalf("expected default channels file, got %q", cfg.Relay.ChannelsFile)
	}
}

// --- Accessor ---

func TestGetByPath_ValidPaths(t *testing.T) {
	cfg := Defaults()

	val, err := GetByPath(cfg, "relay.channelsFile")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "channel_config.json" {
		t.Fatalf("expected 'channel_config.json', got %v", val)
	}

	val, err = GetByPath(cfg, "relay.blockedMentions.0")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	if val != "@WatcherGuru" {
		t.Fatalf("expected '@WatcherGuru', got %v", val)
	}
}

func TestGetByPath_InvalidPath(t *testing.T) {
	cfg := Defaults()
	if _, err := GetByPath(cfg, "nonexistent.path"); err == nil {
		t.Fatal("expected error for nonexistent path")
	}
	if _, err := GetByPath(cfg, "relay.blockedMentions.9"); err == nil {
		t.Fatal("expected error for out of range index")
	}
}

func TestSanitize_MasksToken(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"

	sanitized := Sanitize(cfg)

	if sanitized.Telegram.Token == cfg.Telegram.Token {
		t.Fatal("telegram token should be masked")
	}
	if cfg.Telegram.Token != "123456789:ABCdefGHIjklMNOpqrSTUvwxyz" {
		t.Fatal("original config should not be modified")
	}
}

func TestSanitize_ShortSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "short"
	if got := Sanitize(cfg).Telegram.Token; got != "***" {
		t.Fatalf("short secret should be '***', got %q", got)
	}
}

func TestListPaths_SortedLeaves(t *testing.T) {
	cfg := Defaults()
	cfg.Telegram.Token = "123456789:ABCdefGHIjklMNOpqrSTUvwxyz"

	paths, values := ListPaths(cfg)
	if len(paths) == 0 {
		t.Fatal("expected non-empty paths")
	}
	for i := 1; i < len(paths); i++ {
		if paths[i-1] > paths[i] {
			t.Fatalf("paths not sorted: %s > %s", paths[i-1], paths[i])
		}
	}
	for _, expected := range []string{"general.logLevel", "relay.busSize", "state.retentionDays"} {
		if _, ok := values[expected]; !ok {
			t.Errorf("missing expected path: %s", expected)
		}
	}
	if values["telegram.token"] == cfg.Telegram.Token {
		t.Error("listed token should be masked")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars_SimpleSubstitution(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	result := ExpandEnvVars(`{"token": "${TEST_BOT_TOKEN}"}`)
	expected := `{"token": "123:abc"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_DefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR_12345")
	result := ExpandEnvVars(`{"listen": "${NONEXISTENT_VAR_12345:-:9464}"}`)
	expected := `{"listen": ":9464"}`
	if result != expected {
		t.Fatalf("expected %q, got %q", expected, result)
	}
}

func TestExpandEnvVars_UnsetVarNoDefault_KeepsOriginal(t *testing.T) {
	os.Unsetenv("TOTALLY_UNSET_VAR_XYZ")
	result := ExpandEnvVars(`"${TOTALLY_UNSET_VAR_XYZ}"`)
	if result != `"${TOTALLY_UNSET_VAR_XYZ}"` {
		t.Fatalf("expected original kept, got %q", result)
	}
}

func TestExpandEnvVars_DollarSignWithoutBraces(t *testing.T) {
	input := `"$HOME is not substituted"`
	if result := ExpandEnvVars(input); result != input {
		t.Fatalf("expected no change for bare $VAR, got %q", result)
	}
}

func TestLoad_WithEnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_CHANRELAY_CHANNELS", "/tmp/channels.yaml")

	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.json")
	content := `{"relay": {"channelsFile": "${TEST_CHANRELAY_CHANNELS}", "busSize": 10}}`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Relay.ChannelsFile != "/tmp/channels.yaml" {
		t.Fatalf("expected channelsFile '/tmp/channels.yaml', got %q", cfg.Relay.ChannelsFile)
	}
}
