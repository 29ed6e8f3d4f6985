package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ashwinrm/buildherald/artifact"
	"github.com/ashwinrm/buildherald/buildinfo"
	"github.com/ashwinrm/buildherald/config"
	"github.com/ashwinrm/buildherald/progress"
	"github.com/ashwinrm/buildherald/report"
	"github.com/ashwinrm/buildherald/reposync"
	"github.com/ashwinrm/buildherald/runtime"
	"github.com/ashwinrm/buildherald/telegram"
	"github.com/ashwinrm/buildherald/upload"
)

func romCommand() *cli.Command {
	return &cli.Command{
		Name:  "rom",
		Usage: "Supervise a ROM build and upload the flashable zip",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:    "sync",
				Aliases: []string{"s"},
				Usage:   "Run repo sync before building",
			},
			&cli.BoolFlag{
				Name:    "clean",
				Aliases: []string{"c"},
				Usage:   "Remove out/ before building",
			},
		},
		Action: romAction,
	}
}

func romAction(c *cli.Context) error {
	s, err := newSession(c, config.FlavorRom)
	if err != nil {
		return err
	}
	build := s.cfg.Build

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("sync") {
		syncSources(ctx, s)
	}
	if c.Bool("clean") {
		if err := cleanOutput(s.logger); err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
	}

	vars := buildinfo.FetchRomVars(ctx, build.Device, build.Variant)
	base := report.Fields{
		{Label: "Rom", Value: build.RomName},
		{Label: "Device", Value: build.Device},
		{Label: "Android", Value: vars.Version},
		{Label: "Build ID", Value: vars.BuildID},
		{Label: "Type", Value: vars.Variant},
	}

	s.send(ctx, report.BuildStart(base))

	command := fmt.Sprintf("source build/envsetup.sh && breakfast %s %s && m %s %s",
		build.Device, build.Variant, build.Target, build.JobsFlag())

	supervisor := runtime.NewSupervisor(runtime.Config{
		LogPath:        build.LogFile,
		StartMarker:    build.StartMarker,
		UpdateInterval: build.UpdateInterval.Duration,
		Logger:         s.logger,
	})

	outcome, err := supervisor.Run(ctx, command, runtime.Hooks{
		OnRawLine: func(string) { s.stats.IncLineConsumed() },
		OnProgress: func(ev progress.Event, elapsed time.Duration) {
			s.stats.IncProgressEvent()
			s.stats.IncEditSent()
			s.edit(ctx, report.BuildProgress(report.Stats{
				Percent:   ev.Percent,
				Completed: ev.Completed,
				Total:     ev.Total,
				Remaining: ev.Remaining,
				Elapsed:   elapsed,
			}, base))
		},
		OnProgressDropped: func(progress.Event) {
			s.stats.IncProgressEvent()
			s.stats.IncEditSuppressed()
		},
	})
	if errors.Is(err, runtime.ErrInterrupted) {
		return interruptExit()
	}
	if err != nil {
		return err
	}

	if !outcome.Success() {
		s.edit(ctx, report.BuildFailed(outcome.Duration, base))
		s.sendLog(ctx, runtime.SelectErrorLog(runtime.DefaultToolErrorLog, build.LogFile), "")
		s.printSummary("failed", outcome.ExitCode, outcome.Duration, nil, nil)
		return failExit()
	}

	buildMsg := report.BuildSucceeded(outcome.Duration, base)
	s.edit(ctx, report.Uploading(buildMsg))

	outDir := "out/target/product/" + build.Device
	art, err := artifact.Resolve(outDir, build.Device, outcome.PackagePath)
	if err != nil {
		s.edit(ctx, report.UploadFailed(buildMsg, "No ZIP found."))
		s.printSummary("failed", exitFailure, outcome.Duration, nil, nil)
		return failExit()
	}

	backends := s.backends(ctx)
	if len(backends) == 0 {
		s.edit(ctx, report.UploadFailed(buildMsg, "No upload backends configured."))
		s.printSummary("failed", exitFailure, outcome.Duration, art, nil)
		return failExit()
	}

	results, uploadDur, ok := s.uploadArtifact(ctx, art, backends)
	if !ok {
		s.edit(ctx, report.UploadFailed(buildMsg, "Could not upload files."))
		s.printSummary("failed", exitFailure, outcome.Duration, art, nil)
		return failExit()
	}

	buttons := linkButtons(results)
	buttons = append(buttons, s.uploadCompanions(ctx, outDir, build.Device, backends)...)

	s.edit(ctx, report.Final(buildMsg, uploadDur, art.Name(), art.SizeMB(), art.Checksum), buttons...)
	s.printSummary("succeeded", exitSuccess, outcome.Duration, art, results)
	return nil
}

// syncSources runs repo sync with its own status message. Sync failure is
// reported but never stops the build.
func syncSources(ctx context.Context, s *session) {
	build := s.cfg.Build
	details := report.Fields{
		{Label: "Rom", Value: build.RomName},
		{Label: "Jobs", Value: strconv.Itoa(build.Jobs)},
	}
	s.send(ctx, report.SyncStart(details))

	syncer := reposync.NewSyncer(build.Jobs, s.logger)
	dur, err := syncer.Sync(ctx)
	if err != nil {
		s.logger.Warn("source sync did not complete", map[string]any{"error": err.Error()})
	}

	s.edit(ctx, report.SyncDone(report.Fields{{Label: "Rom", Value: build.RomName}}, dur))
	// The build gets its own status message below.
	s.msgID = 0
}

// uploadCompanions pushes secondary artifacts (the OTA metadata JSON) to the
// primary backend. A missing or failed companion never affects the outcome.
func (s *session) uploadCompanions(ctx context.Context, outDir, device string, backends []upload.Backend) []telegram.Button {
	companion, err := artifact.ResolveGlob(outDir, "*"+device+"*.json", "JSON")
	if err != nil {
		return nil
	}

	s.stats.IncUploadAttempt()
	url, err := backends[0].Upload(ctx, companion.Path)
	if err != nil {
		s.stats.IncUploadFailure()
		s.logger.Warn("companion upload failed", map[string]any{
			"file": companion.Path, "error": err.Error(),
		})
		return nil
	}
	s.stats.IncUploadSuccess()
	return []telegram.Button{{Text: companion.Label, URL: url}}
}
