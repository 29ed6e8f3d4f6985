// Package report renders the notification messages posted during a build.
//
// Every message is a deterministic function of a structured payload, so the
// same build state always produces byte-identical text. Messages use HTML
// markup; user-controlled values (device names, filenames, versions) are
// escaped at render time.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashwinrm/buildherald/telegram"
)

// Field is one labelled line of build metadata, rendered as
// "<b>Label:</b> <code>value</code>" with the value escaped. Raw fields
// carry pre-rendered markup (the git head anchor) and skip both the code
// wrapper and escaping.
type Field struct {
	Label string
	Value string
	Raw   bool
}

// Fields is the ordered metadata block shown under every message.
type Fields []Field

// Render joins the fields into the base-info block.
func (f Fields) Render() string {
	lines := make([]string, 0, len(f))
	for _, field := range f {
		value := telegram.Code(field.Value)
		if field.Raw {
			value = field.Value
		}
		lines = append(lines, fmt.Sprintf("<b>%s:</b> %s", field.Label, value))
	}
	return strings.Join(lines, "\n")
}

// FormatDuration renders a duration as HH:MM:SS, hours unbounded.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Stats is the progress block of an in-flight build message.
type Stats struct {
	// Percent is the completion percentage, valid when Total > 0.
	Percent int
	// Completed and Total are action counts from the build tool.
	Completed int
	Total     int
	// Remaining is the tool's time-left estimate ("12s"), may be empty.
	Remaining string
	// Elapsed is wall time since the build started.
	Elapsed time.Duration
}

// Render produces the stats block. Before the first progress event only the
// elapsed line is shown.
func (s Stats) Render() string {
	var b strings.Builder
	if s.Total > 0 {
		fmt.Fprintf(&b, "<b>Progress:</b> <code>%d%% (%d/%d)</code>\n", s.Percent, s.Completed, s.Total)
		if s.Remaining != "" {
			fmt.Fprintf(&b, "<b>Remaining:</b> %s\n", telegram.Code(s.Remaining))
		}
	}
	fmt.Fprintf(&b, "<b>Elapsed:</b> <code>%s</code>", FormatDuration(s.Elapsed))
	return b.String()
}

// SyncStart announces the start of source synchronization.
func SyncStart(details Fields) string {
	return "<b>ℹ️ | Starting Synchronization...</b>\n" + details.Render()
}

// SyncDone announces completed synchronization with its duration.
func SyncDone(details Fields, dur time.Duration) string {
	return fmt.Sprintf("<b>✅ | Synchronization Complete!</b>\n%s\n<b>Time:</b> %s",
		details.Render(), FormatDuration(dur))
}

// BuildStart announces a starting build.
func BuildStart(base Fields) string {
	return "<b>ℹ️ | Starting Build...</b>\n\n" + base.Render()
}

// BuildProgress renders the throttled in-flight status message.
func BuildProgress(stats Stats, base Fields) string {
	return fmt.Sprintf("<b>🔄 | Building...</b>\n%s\n\n%s", stats.Render(), base.Render())
}

// BuildFailed renders the terminal failure message.
func BuildFailed(elapsed time.Duration, base Fields) string {
	return fmt.Sprintf("<b>⚠️ | Build Failed</b>\n\nFailed after %s\n\n%s",
		FormatDuration(elapsed), base.Render())
}

// BuildSucceeded renders the success message. The result doubles as the
// prefix every post-build message (uploading, final) builds on.
func BuildSucceeded(elapsed time.Duration, base Fields) string {
	return fmt.Sprintf("<b>✅ | Build Complete!</b>\n<b>Build Time:</b> <code>%s</code>\n\n%s",
		FormatDuration(elapsed), base.Render())
}

// Uploading appends the upload-in-progress banner to the success message.
func Uploading(buildMsg string) string {
	return buildMsg + "\n\n<b>🔄 | Uploading Files...</b>"
}

// UploadFailed appends an upload failure with its reason.
func UploadFailed(buildMsg, reason string) string {
	return fmt.Sprintf("%s\n\n<b>⚠️ | Upload Failed</b>\n\n%s", buildMsg, telegram.Escape(reason))
}

// Final renders the complete message with artifact details. Share links
// ride alongside as inline keyboard buttons, not in the text.
func Final(buildMsg string, uploadDur time.Duration, filename, size, md5 string) string {
	return fmt.Sprintf(
		"%s\n\n<b>✅ | Upload Complete</b>\n<b>Upload Time:</b> <code>%s</code>\n\n"+
			"<b>File:</b> %s\n<b>Size:</b> %s\n<b>MD5:</b> %s",
		buildMsg, FormatDuration(uploadDur),
		telegram.Code(filename), telegram.Code(size), telegram.Code(md5))
}
