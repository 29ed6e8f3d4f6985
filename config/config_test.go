package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearConfigEnv unsets the CONFIG_* variables the tests touch so leftover
// CI environment cannot leak into assertions.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_BOT_TOKEN", "CONFIG_CHATID", "CONFIG_ERROR_CHATID",
		"CONFIG_DEVICE", "CONFIG_BUILD_TARGET", "CONFIG_BUILD_TYPE",
		"CONFIG_ROM_NAME", "CONFIG_DEFCONFIG", "CONFIG_AK3_REPO",
		"CONFIG_JOBS", "CONFIG_LOG_FILE", "CONFIG_START_MARKER",
		"CONFIG_UPDATE_INTERVAL", "CONFIG_PDUP_API", "CONFIG_GOFILE",
		"CONFIG_S3_ENABLED", "CONFIG_S3_BUCKET",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "herald.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FileOnly(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `
telegram:
  bot_token: "123:abc"
  chat_id: "-100200300"
build:
  device: raven
  target: bacon
  variant: userdebug
  jobs: 8
  update_interval: 30s
upload:
  pixeldrain_key: pd-key
  gofile: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("BotToken = %q, want %q", cfg.Telegram.BotToken, "123:abc")
	}
	if cfg.Telegram.ErrorChatID != "-100200300" {
		t.Errorf("ErrorChatID = %q, want chat id default", cfg.Telegram.ErrorChatID)
	}
	if cfg.Build.Jobs != 8 {
		t.Errorf("Jobs = %d, want 8", cfg.Build.Jobs)
	}
	if cfg.Build.UpdateInterval.Duration != 30*time.Second {
		t.Errorf("UpdateInterval = %v, want 30s", cfg.Build.UpdateInterval.Duration)
	}
	if !cfg.Upload.Gofile {
		t.Error("Gofile should be enabled")
	}
	if err := cfg.Validate(FlavorRom); err != nil {
		t.Errorf("Validate(rom) failed: %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `
telegram:
  bot_token: "file-token"
  chat_id: "file-chat"
build:
  device: raven
`)
	t.Setenv("CONFIG_BOT_TOKEN", "env-token")
	t.Setenv("CONFIG_DEVICE", "oriole")
	t.Setenv("CONFIG_UPDATE_INTERVAL", "45s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "env-token" {
		t.Errorf("BotToken = %q, env should win", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.ChatID != "file-chat" {
		t.Errorf("ChatID = %q, file value should survive", cfg.Telegram.ChatID)
	}
	if cfg.Build.Device != "oriole" {
		t.Errorf("Device = %q, env should win", cfg.Build.Device)
	}
	if cfg.Build.UpdateInterval.Duration != 45*time.Second {
		t.Errorf("UpdateInterval = %v, want 45s from env", cfg.Build.UpdateInterval.Duration)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CONFIG_BOT_TOKEN", "123:abc")
	t.Setenv("CONFIG_CHATID", "-100")
	t.Setenv("CONFIG_DEFCONFIG", "vendor/raven_defconfig")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(FlavorKernel); err != nil {
		t.Errorf("Validate(kernel) failed: %v", err)
	}
	if cfg.Build.LogFile != DefaultLogFile {
		t.Errorf("LogFile = %q, want default %q", cfg.Build.LogFile, DefaultLogFile)
	}
	if cfg.Build.StartMarker != DefaultStartMarker {
		t.Errorf("StartMarker = %q, want default", cfg.Build.StartMarker)
	}
	if cfg.Build.UpdateInterval.Duration != DefaultUpdateInterval {
		t.Errorf("UpdateInterval = %v, want default", cfg.Build.UpdateInterval.Duration)
	}
	if cfg.Build.Jobs <= 0 {
		t.Errorf("Jobs = %d, want positive default", cfg.Build.Jobs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearConfigEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{BotToken: "t", ChatID: "c"},
			Build: BuildConfig{
				Device: "raven", Target: "bacon", Variant: "userdebug",
				Defconfig: "raven_defconfig",
			},
		}
	}

	tests := []struct {
		name    string
		flavor  Flavor
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid rom", flavor: FlavorRom, mutate: func(*Config) {}},
		{name: "valid kernel", flavor: FlavorKernel, mutate: func(*Config) {}},
		{
			name:    "missing token",
			flavor:  FlavorRom,
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: true,
		},
		{
			name:    "missing chat id",
			flavor:  FlavorKernel,
			mutate:  func(c *Config) { c.Telegram.ChatID = "" },
			wantErr: true,
		},
		{
			name:    "rom missing device",
			flavor:  FlavorRom,
			mutate:  func(c *Config) { c.Build.Device = "" },
			wantErr: true,
		},
		{
			name:    "rom missing variant",
			flavor:  FlavorRom,
			mutate:  func(c *Config) { c.Build.Variant = "" },
			wantErr: true,
		},
		{
			name:    "kernel missing defconfig",
			flavor:  FlavorKernel,
			mutate:  func(c *Config) { c.Build.Defconfig = "" },
			wantErr: true,
		},
		{
			name:    "kernel ignores rom fields",
			flavor:  FlavorKernel,
			mutate:  func(c *Config) { c.Build.Device = ""; c.Build.Target = "" },
			wantErr: false,
		},
		{
			name:    "s3 enabled without bucket",
			flavor:  FlavorRom,
			mutate:  func(c *Config) { c.Upload.S3.Enabled = true },
			wantErr: true,
		},
		{
			name:    "unknown flavor",
			flavor:  Flavor("container"),
			mutate:  func(*Config) {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate(tt.flavor)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%s) error = %v, wantErr %v", tt.flavor, err, tt.wantErr)
			}
		})
	}
}

func TestJobsFlag(t *testing.T) {
	b := BuildConfig{Jobs: 16}
	if got := b.JobsFlag(); got != "-j16" {
		t.Errorf("JobsFlag() = %q, want -j16", got)
	}
}
