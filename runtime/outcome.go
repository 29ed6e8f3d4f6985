package runtime

import "os"

// DefaultToolErrorLog is the build system's own condensed error log. When a
// build fails it usually holds just the failing commands, which makes a far
// better attachment than the full multi-gigabyte stream.
const DefaultToolErrorLog = "out/error.log"

// SelectErrorLog picks the log file to attach to a failure report: the
// build-tool error log if it exists on disk, otherwise the full persistent
// log the supervisor captured.
func SelectErrorLog(toolLog, fullLog string) string {
	if toolLog != "" {
		if _, err := os.Stat(toolLog); err == nil {
			return toolLog
		}
	}
	return fullLog
}
