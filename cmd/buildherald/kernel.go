package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ashwinrm/buildherald/anykernel"
	"github.com/ashwinrm/buildherald/artifact"
	"github.com/ashwinrm/buildherald/buildinfo"
	"github.com/ashwinrm/buildherald/config"
	"github.com/ashwinrm/buildherald/progress"
	"github.com/ashwinrm/buildherald/report"
	"github.com/ashwinrm/buildherald/runtime"
)

// kernelConfigPath is where the configure step leaves the resolved config.
const kernelConfigPath = "out/.config"

func kernelCommand() *cli.Command {
	return &cli.Command{
		Name:  "kernel",
		Usage: "Supervise a kernel build and upload the AnyKernel3 zip",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:    "clean",
				Aliases: []string{"c"},
				Usage:   "Remove out/ before building",
			},
		},
		Action: kernelAction,
	}
}

func kernelAction(c *cli.Context) error {
	s, err := newSession(c, config.FlavorKernel)
	if err != nil {
		return err
	}
	build := s.cfg.Build

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("clean") {
		if err := cleanOutput(s.logger); err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}
	}

	head, _ := buildinfo.FetchHead(ctx)
	compiler := buildinfo.CompilerVersion(ctx)

	base := kernelBaseInfo(head, "", build.Defconfig, build.Jobs, compiler)
	s.send(ctx, report.BuildStart(base))

	// Configure first so the resolved local version can join the metadata.
	configure := fmt.Sprintf("make O=out ARCH=arm64 LLVM=1 %s", build.Defconfig)
	if err := runConsole(ctx, configure); err != nil {
		s.logger.Warn("configure step failed", map[string]any{"error": err.Error()})
	}
	base = kernelBaseInfo(head, buildinfo.LocalVersion(kernelConfigPath), build.Defconfig, build.Jobs, compiler)

	command := fmt.Sprintf("make %s O=out ARCH=arm64 LLVM=1 Image.gz dtbo.img dtb.img", build.JobsFlag())

	supervisor := runtime.NewSupervisor(runtime.Config{
		LogPath:        build.LogFile,
		StartMarker:    build.StartMarker,
		UpdateInterval: build.UpdateInterval.Duration,
		Logger:         s.logger,
	})

	// Kernel output has no percentage lines, so status edits carry elapsed
	// time only, throttled the same way as ROM progress.
	gate := progress.NewGate(build.UpdateInterval.Duration)
	start := time.Now()
	outcome, err := supervisor.Run(ctx, command, runtime.Hooks{
		OnRawLine: func(string) {
			s.stats.IncLineConsumed()
			now := time.Now()
			if !gate.Allow(now) {
				s.stats.IncEditSuppressed()
				return
			}
			s.stats.IncEditSent()
			s.edit(ctx, report.BuildProgress(report.Stats{Elapsed: now.Sub(start)}, base))
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
		s.sendLog(ctx, build.LogFile, "")
		s.printSummary("failed", outcome.ExitCode, outcome.Duration, nil, nil)
		return failExit()
	}

	buildMsg := report.BuildSucceeded(outcome.Duration, base)
	s.edit(ctx, report.Uploading(buildMsg))

	release, _ := buildinfo.KernelRelease(anykernel.DefaultBootDir + "/Image")
	packager := anykernel.NewPackager(build.AK3Repo, s.logger)
	zipPath, err := packager.Package(ctx, release)
	if err != nil {
		s.logger.Error("packaging failed", map[string]any{"error": err.Error()})
		s.edit(ctx, report.UploadFailed(buildMsg, "Could not create ZIP."))
		s.printSummary("failed", exitFailure, outcome.Duration, nil, nil)
		return failExit()
	}

	art, err := artifact.Describe(zipPath, "")
	if err != nil {
		s.edit(ctx, report.UploadFailed(buildMsg, "Could not create ZIP."))
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

	s.edit(ctx, report.Final(buildMsg, uploadDur, art.Name(), art.SizeMB(), art.Checksum), linkButtons(results)...)
	s.printSummary("succeeded", exitSuccess, outcome.Duration, art, results)
	return nil
}

// kernelBaseInfo assembles the kernel metadata block. The local version line
// only appears once the configure step has produced a config.
func kernelBaseInfo(head buildinfo.Head, localVersion, defconfig string, jobs int, compiler string) report.Fields {
	fields := report.Fields{
		{Label: "Head", Value: head.Link(), Raw: true},
	}
	if localVersion != "" {
		fields = append(fields, report.Field{Label: "Local Version", Value: localVersion})
	}
	return append(fields,
		report.Field{Label: "Defconfig", Value: defconfig},
		report.Field{Label: "Jobs", Value: strconv.Itoa(jobs)},
		report.Field{Label: "Compiler", Value: compiler},
	)
}

// runConsole executes a shell command wired to the console, for build steps
// that are not supervised.
func runConsole(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
