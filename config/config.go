// Package config handles configuration for buildherald.
//
// Configuration comes from two layers:
//  1. An optional YAML file (herald.yaml) with ${VAR} env expansion
//  2. CONFIG_* environment variables, which override file values
//
// The environment layer exists for CI hosts where mounting a config file is
// inconvenient and everything is injected via the job environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// Defaults applied by Load when neither layer provides a value.
const (
	DefaultLogFile        = "build.log"
	DefaultStartMarker    = "Starting ninja..."
	DefaultUpdateInterval = 15 * time.Second
)

// Config is the full buildherald configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Build    BuildConfig    `yaml:"build"`
	Upload   UploadConfig   `yaml:"upload"`
}

// TelegramConfig holds notification channel settings.
type TelegramConfig struct {
	// BotToken is the bot API token (required).
	BotToken string `yaml:"bot_token" env:"CONFIG_BOT_TOKEN"`
	// ChatID is the primary channel for status messages (required).
	ChatID string `yaml:"chat_id" env:"CONFIG_CHATID"`
	// ErrorChatID receives failure log attachments. Defaults to ChatID.
	ErrorChatID string `yaml:"error_chat_id" env:"CONFIG_ERROR_CHATID"`
}

// BuildConfig holds parameters of the supervised build.
type BuildConfig struct {
	// Device is the device codename (required for rom builds).
	Device string `yaml:"device" env:"CONFIG_DEVICE"`
	// Target is the make target, e.g. "bacon" (required for rom builds).
	Target string `yaml:"target" env:"CONFIG_BUILD_TARGET"`
	// Variant is the build variant: user, userdebug or eng (required for rom builds).
	Variant string `yaml:"variant" env:"CONFIG_BUILD_TYPE"`
	// RomName labels status messages. Defaults to the working directory name.
	RomName string `yaml:"rom_name" env:"CONFIG_ROM_NAME"`
	// Defconfig is the kernel defconfig (required for kernel builds).
	Defconfig string `yaml:"defconfig" env:"CONFIG_DEFCONFIG"`
	// AK3Repo is the AnyKernel3 repository used for kernel packaging.
	AK3Repo string `yaml:"ak3_repo" env:"CONFIG_AK3_REPO"`
	// Jobs is the parallelism passed to the build system and repo sync.
	// Defaults to the host CPU count.
	Jobs int `yaml:"jobs" env:"CONFIG_JOBS"`
	// LogFile is the persistent build log path, overwritten per run.
	LogFile string `yaml:"log_file" env:"CONFIG_LOG_FILE"`
	// StartMarker is the output token that opens the progress latch.
	StartMarker string `yaml:"start_marker" env:"CONFIG_START_MARKER"`
	// UpdateInterval is the minimum time between two progress edits.
	UpdateInterval Duration `yaml:"update_interval" env:"CONFIG_UPDATE_INTERVAL"`
}

// UploadConfig holds file-hosting backend settings.
// Pixeldrain is the primary backend; Gofile and S3 are feature-flagged.
type UploadConfig struct {
	// PixeldrainKey is the Pixeldrain API key (required; primary backend).
	PixeldrainKey string `yaml:"pixeldrain_key" env:"CONFIG_PDUP_API"`
	// Gofile enables the Gofile backend.
	Gofile bool `yaml:"gofile" env:"CONFIG_GOFILE"`
	// S3 configures the optional S3 mirror backend.
	S3 S3Config `yaml:"s3"`
}

// S3Config configures the S3 upload backend.
type S3Config struct {
	// Enabled turns the backend on.
	Enabled bool `yaml:"enabled" env:"CONFIG_S3_ENABLED"`
	// Bucket is the bucket name (required when enabled).
	Bucket string `yaml:"bucket" env:"CONFIG_S3_BUCKET"`
	// Prefix is the key prefix within the bucket.
	Prefix string `yaml:"prefix" env:"CONFIG_S3_PREFIX"`
	// Region is the AWS region (optional, uses default chain if empty).
	Region string `yaml:"region" env:"CONFIG_S3_REGION"`
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string `yaml:"endpoint" env:"CONFIG_S3_ENDPOINT"`
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	// Required by most S3-compatible providers.
	UsePathStyle bool `yaml:"path_style" env:"CONFIG_S3_PATH_STYLE"`
	// URLTemplate renders the shareable link, with %s replaced by the object
	// key. Empty derives a virtual-hosted AWS URL from bucket and region.
	URLTemplate string `yaml:"url_template" env:"CONFIG_S3_URL_TEMPLATE"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Flavor selects which pipeline's required fields Validate checks.
type Flavor string

// Supported build flavors.
const (
	FlavorRom    Flavor = "rom"
	FlavorKernel Flavor = "kernel"
)

// Validate checks required fields for the given flavor.
// A configuration error is fatal at startup, before any notification is sent.
func (c *Config) Validate(flavor Flavor) error {
	if c.Telegram.BotToken == "" {
		return errors.New("missing bot token (telegram.bot_token / CONFIG_BOT_TOKEN)")
	}
	if c.Telegram.ChatID == "" {
		return errors.New("missing chat id (telegram.chat_id / CONFIG_CHATID)")
	}
	switch flavor {
	case FlavorRom:
		if c.Build.Device == "" {
			return errors.New("missing device (build.device / CONFIG_DEVICE)")
		}
		if c.Build.Target == "" {
			return errors.New("missing build target (build.target / CONFIG_BUILD_TARGET)")
		}
		if c.Build.Variant == "" {
			return errors.New("missing build variant (build.variant / CONFIG_BUILD_TYPE)")
		}
	case FlavorKernel:
		if c.Build.Defconfig == "" {
			return errors.New("missing defconfig (build.defconfig / CONFIG_DEFCONFIG)")
		}
	default:
		return fmt.Errorf("unknown build flavor %q", flavor)
	}
	if c.Upload.S3.Enabled && c.Upload.S3.Bucket == "" {
		return errors.New("s3 backend enabled without a bucket (upload.s3.bucket / CONFIG_S3_BUCKET)")
	}
	return nil
}

// applyDefaults fills values neither layer provided.
func (c *Config) applyDefaults() {
	if c.Telegram.ErrorChatID == "" {
		c.Telegram.ErrorChatID = c.Telegram.ChatID
	}
	if c.Build.Jobs <= 0 {
		c.Build.Jobs = runtime.NumCPU()
	}
	if c.Build.RomName == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Build.RomName = filepath.Base(wd)
		}
	}
	if c.Build.RomName == "" || c.Build.RomName == "/" || c.Build.RomName == "." {
		c.Build.RomName = "Unknown ROM"
	}
	if c.Build.LogFile == "" {
		c.Build.LogFile = DefaultLogFile
	}
	if c.Build.StartMarker == "" {
		c.Build.StartMarker = DefaultStartMarker
	}
	if c.Build.UpdateInterval.Duration <= 0 {
		c.Build.UpdateInterval.Duration = DefaultUpdateInterval
	}
}

// JobsFlag renders the -jN flag for the build command.
func (c *BuildConfig) JobsFlag() string {
	return "-j" + strconv.Itoa(c.Jobs)
}
