// Package artifact locates and describes build outputs.
//
// Resolution order: an explicit path announced in the build output
// ("Package Complete: <path>") is authoritative when it exists on disk;
// otherwise the output directory is searched by glob, newest file first.
// A missing artifact is a distinct condition from a failed build — the
// compiler succeeding does not guarantee a packaged deliverable.
package artifact

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoArtifact signals that resolution found nothing. Callers treat it as
// a terminal failure for the primary artifact and as a non-event for
// companions.
var ErrNoArtifact = errors.New("no artifact found")

// ChecksumUnavailable is the sentinel recorded when the content hash could
// not be computed. A checksum failure degrades the report, never aborts it.
const ChecksumUnavailable = "N/A"

// Artifact describes one resolved build output.
type Artifact struct {
	// Path is the absolute or workspace-relative file path.
	Path string
	// SizeBytes is the file size.
	SizeBytes int64
	// Checksum is the MD5 content hash in hex, or ChecksumUnavailable.
	Checksum string
	// Label tags companion artifacts (e.g. "JSON"). Empty for the primary.
	Label string
}

// Name returns the artifact's base file name.
func (a *Artifact) Name() string {
	return filepath.Base(a.Path)
}

// SizeMB renders the size in megabytes for display.
func (a *Artifact) SizeMB() string {
	return fmt.Sprintf("%.2f MB", float64(a.SizeBytes)/(1024*1024))
}

// Resolve locates the primary build artifact. A detected path from the
// build output wins when it exists, even if the glob would also match;
// otherwise the newest "*<tag>*.zip" under outputDir is used.
func Resolve(outputDir, tag, detected string) (*Artifact, error) {
	if detected != "" {
		if _, err := os.Stat(detected); err == nil {
			return Describe(detected, "")
		}
	}
	return ResolveGlob(outputDir, "*"+tag+"*.zip", "")
}

// ResolveGlob locates the newest file matching pattern under outputDir.
// Returns ErrNoArtifact when nothing matches.
func ResolveGlob(outputDir, pattern, label string) (*Artifact, error) {
	matches, err := filepath.Glob(filepath.Join(outputDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad artifact pattern %q: %w", pattern, err)
	}

	newest := pickNewest(matches)
	if newest == "" {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoArtifact, pattern, outputDir)
	}
	return Describe(newest, label)
}

// pickNewest selects the most recently modified path. Candidates that fail
// to stat are skipped. Equal timestamps resolve to the lexicographically
// last path so ties never crash and stay deterministic.
func pickNewest(paths []string) string {
	sort.Strings(paths)

	var best string
	var bestInfo fs.FileInfo
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if bestInfo == nil || !info.ModTime().Before(bestInfo.ModTime()) {
			best, bestInfo = p, info
		}
	}
	return best
}

// Describe stats path and computes its content checksum. The checksum
// degrades to ChecksumUnavailable on read errors; a stat failure is a real
// error since size and existence are load-bearing for the report.
func Describe(path, label string) (*Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat artifact %q: %w", path, err)
	}

	return &Artifact{
		Path:      path,
		SizeBytes: info.Size(),
		Checksum:  checksum(path),
		Label:     label,
	}, nil
}

// checksum computes the streaming MD5 of the file at path.
func checksum(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ChecksumUnavailable
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return ChecksumUnavailable
	}
	return hex.EncodeToString(h.Sum(nil))
}
