package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashwinrm/buildherald/metrics"
	"github.com/ashwinrm/buildherald/report"
	"github.com/ashwinrm/buildherald/upload"
)

// Summary is the data behind the console summary box.
type Summary struct {
	// State is "succeeded", "failed", or "interrupted".
	State string
	// ExitCode is the build's exit code, meaningful when State is "failed".
	ExitCode int
	// Duration is total build wall time.
	Duration time.Duration
	// Artifact is the primary artifact name, empty when the build failed.
	Artifact string
	// Size is the rendered artifact size ("500.00 MB").
	Size string
	// Links are the successful upload results.
	Links []upload.Result
	// Stats are the per-build counters.
	Stats metrics.Snapshot
}

// Render draws the summary box.
func (s Summary) Render() string {
	var rows []string

	title := "Build Summary"
	if s.Stats.Product != "" {
		title = fmt.Sprintf("Build Summary — %s (%s)", s.Stats.Product, s.Stats.Flavor)
	}
	rows = append(rows, TitleStyle.Render(title), "")

	state := StateStyle(s.State).Render(strings.ToUpper(s.State))
	if s.State == "failed" {
		state += ValueStyle.Render(fmt.Sprintf(" (exit %d)", s.ExitCode))
	}
	rows = append(rows,
		row("State", state),
		row("Duration", ValueStyle.Render(report.FormatDuration(s.Duration))),
	)

	if s.Artifact != "" {
		rows = append(rows, row("Artifact", ValueStyle.Render(s.Artifact)))
		if s.Size != "" {
			rows = append(rows, row("Size", ValueStyle.Render(s.Size)))
		}
	}

	for i, link := range s.Links {
		label := ""
		if i == 0 {
			label = "Links"
		}
		rows = append(rows, row(label, LinkStyle.Render(link.URL)+ValueStyle.Render(" ("+link.Backend+")")))
	}

	rows = append(rows, "",
		row("Lines", ValueStyle.Render(fmt.Sprintf("%d consumed, %d progress", s.Stats.LinesConsumed, s.Stats.ProgressEvents))),
		row("Edits", ValueStyle.Render(fmt.Sprintf("%d sent, %d suppressed", s.Stats.EditsSent, s.Stats.EditsSuppressed))),
	)
	if s.Stats.UploadAttempts > 0 {
		rows = append(rows, row("Uploads", ValueStyle.Render(fmt.Sprintf("%d/%d succeeded", s.Stats.UploadSuccesses, s.Stats.UploadAttempts))))
	}
	if s.Stats.NotifyFailures > 0 {
		rows = append(rows, row("Notify errors", WarningStyle.Render(fmt.Sprintf("%d", s.Stats.NotifyFailures))))
	}

	return BoxStyle.Render(strings.Join(rows, "\n"))
}

func row(label, value string) string {
	return LabelStyle.Render(label) + value
}
