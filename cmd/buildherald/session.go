package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ashwinrm/buildherald/artifact"
	"github.com/ashwinrm/buildherald/config"
	"github.com/ashwinrm/buildherald/log"
	"github.com/ashwinrm/buildherald/metrics"
	"github.com/ashwinrm/buildherald/render"
	"github.com/ashwinrm/buildherald/telegram"
	"github.com/ashwinrm/buildherald/upload"
)

// session carries the state shared by every stage of one build invocation:
// configuration, logging, the notification channel and the status message
// being edited in place.
type session struct {
	cfg    *config.Config
	logger *log.Logger
	tg     *telegram.Client
	stats  *metrics.Collector

	// msgID is the status message all subsequent edits target.
	msgID telegram.MessageID
}

// newSession loads and validates configuration and wires up the shared
// infrastructure for one build.
func newSession(c *cli.Context, flavor config.Flavor) (*session, error) {
	path := c.String("config")
	if !c.IsSet("config") {
		// The default config file is optional; an explicitly requested one
		// is not.
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(flavor); err != nil {
		return nil, err
	}

	product := cfg.Build.Device
	variant := cfg.Build.Variant
	if flavor == config.FlavorKernel {
		product = cfg.Build.Defconfig
		variant = ""
	}
	logger := log.NewLogger(log.BuildMeta{
		Flavor:  string(flavor),
		Product: product,
		Variant: variant,
	})

	return &session{
		cfg:    cfg,
		logger: logger,
		tg:     telegram.NewClient(cfg.Telegram.BotToken, logger),
		stats:  metrics.NewCollector(string(flavor), product),
	}, nil
}

// send posts the status message and remembers its id for edits. Failures
// are logged and counted; they never stop the build.
func (s *session) send(ctx context.Context, text string) {
	id, err := s.tg.SendMessage(ctx, s.cfg.Telegram.ChatID, text, nil)
	if err != nil {
		s.stats.IncNotifyFailure()
		return
	}
	s.msgID = id
}

// edit replaces the status message text.
func (s *session) edit(ctx context.Context, text string, buttons ...telegram.Button) {
	if err := s.tg.EditMessage(ctx, s.cfg.Telegram.ChatID, s.msgID, text, buttons); err != nil {
		s.stats.IncNotifyFailure()
	}
}

// sendLog attaches a log file to the error channel.
func (s *session) sendLog(ctx context.Context, path, caption string) {
	if err := s.tg.SendDocument(ctx, s.cfg.Telegram.ErrorChatID, path, caption); err != nil {
		s.stats.IncNotifyFailure()
	}
}

// backends assembles the configured upload targets in reporting order:
// Pixeldrain first, then the feature-flagged ones.
func (s *session) backends(ctx context.Context) []upload.Backend {
	var backends []upload.Backend
	if s.cfg.Upload.PixeldrainKey != "" {
		backends = append(backends, upload.NewPixeldrain(s.cfg.Upload.PixeldrainKey))
	}
	if s.cfg.Upload.Gofile {
		backends = append(backends, upload.NewGofile())
	}
	if s.cfg.Upload.S3.Enabled {
		s3cfg := s.cfg.Upload.S3
		backend, err := upload.NewS3(ctx, upload.S3Config{
			Bucket:       s3cfg.Bucket,
			Prefix:       s3cfg.Prefix,
			Region:       s3cfg.Region,
			Endpoint:     s3cfg.Endpoint,
			UsePathStyle: s3cfg.UsePathStyle,
			URLTemplate:  s3cfg.URLTemplate,
		})
		if err != nil {
			s.logger.Warn("s3 backend unavailable", map[string]any{"error": err.Error()})
		} else {
			backends = append(backends, backend)
		}
	}
	return backends
}

// uploadArtifact pushes the artifact to every backend and accounts the
// attempts. Success means at least one backend produced a URL.
func (s *session) uploadArtifact(ctx context.Context, art *artifact.Artifact, backends []upload.Backend) ([]upload.Result, time.Duration, bool) {
	dispatcher := upload.NewDispatcher(s.logger, backends...)

	start := time.Now()
	results := dispatcher.UploadAll(ctx, art.Path)
	dur := time.Since(start)

	for _, r := range results {
		s.stats.IncUploadAttempt()
		if r.Failed {
			s.stats.IncUploadFailure()
		} else {
			s.stats.IncUploadSuccess()
		}
	}
	return results, dur, upload.Succeeded(results)
}

// linkButtons turns successful upload results into inline keyboard buttons.
func linkButtons(results []upload.Result) []telegram.Button {
	links := upload.Links(results)
	buttons := make([]telegram.Button, 0, len(links))
	for _, l := range links {
		buttons = append(buttons, telegram.Button{Text: l.Backend, URL: l.URL})
	}
	return buttons
}

// printSummary draws the console summary box.
func (s *session) printSummary(state string, exitCode int, dur time.Duration, art *artifact.Artifact, links []upload.Result) {
	summary := render.Summary{
		State:    state,
		ExitCode: exitCode,
		Duration: dur,
		Links:    links,
		Stats:    s.stats.Snapshot(),
	}
	if art != nil {
		summary.Artifact = art.Name()
		summary.Size = art.SizeMB()
	}
	fmt.Println(summary.Render())
}

// failExit is the common terminal path for build and upload failures.
func failExit() error {
	return cli.Exit("", exitFailure)
}

// interruptExit is the terminal path for operator interruption: no report
// is posted, the build log stays on disk.
func interruptExit() error {
	return cli.Exit("", exitInterrupted)
}

// cleanOutput removes the build output tree when requested.
func cleanOutput(logger *log.Logger) error {
	if _, err := os.Stat("out"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	logger.Info("cleaning output directory", map[string]any{"dir": "out"})
	return os.RemoveAll("out")
}
