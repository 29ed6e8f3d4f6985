// Package buildinfo probes the build environment for the metadata shown in
// notifications: platform variables, git head, toolchain and kernel versions.
//
// Every probe degrades to a placeholder instead of failing; missing metadata
// never stops a build.
package buildinfo

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/ashwinrm/buildherald/iox"
)

// Unknown is the placeholder for metadata a probe could not determine.
const Unknown = "N/A"

// runOutput executes a command and returns its stdout. Swapped out in tests.
var runOutput = func(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// runShell executes a bash command line and returns its stdout. The platform
// probes need shell syntax to source envsetup.sh.
var runShell = func(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "bash", "-c", command).Output()
	return string(out), err
}

// RomVars is platform metadata from the ROM build system.
type RomVars struct {
	// Version is PLATFORM_VERSION.
	Version string
	// BuildID is BUILD_ID.
	BuildID string
	// Variant is TARGET_BUILD_VARIANT, the variant the build system actually
	// resolved rather than the one configured.
	Variant string
}

// FetchRomVars sources the build environment and queries platform variables.
// Failures yield placeholders, with the configured variant standing in for
// the resolved one.
func FetchRomVars(ctx context.Context, device, variant string) RomVars {
	vars := RomVars{Version: Unknown, BuildID: Unknown, Variant: variant}

	cmd := fmt.Sprintf(
		"source build/envsetup.sh && breakfast %s %s >/dev/null 2>&1 && "+
			`echo "VER=$(get_build_var PLATFORM_VERSION)" && `+
			`echo "BID=$(get_build_var BUILD_ID)" && `+
			`echo "TYPE=$(get_build_var TARGET_BUILD_VARIANT)"`,
		device, variant)

	out, err := runShell(ctx, cmd)
	if err != nil {
		return vars
	}

	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case "VER":
			vars.Version = value
		case "BID":
			vars.BuildID = value
		case "TYPE":
			vars.Variant = value
		}
	}
	return vars
}

// Head identifies the checked-out commit.
type Head struct {
	// Short and Full are the abbreviated and complete commit hashes.
	Short string
	Full  string
	// Origin is the origin remote URL with any trailing ".git" removed.
	Origin string
}

// FetchHead queries git for the current commit and origin. Returns false
// when the tree is not a usable git checkout.
func FetchHead(ctx context.Context) (Head, bool) {
	short, err := runOutput(ctx, "git", "rev-parse", "--short", "HEAD")
	if err != nil {
		return Head{}, false
	}
	full, err := runOutput(ctx, "git", "rev-parse", "HEAD")
	if err != nil {
		return Head{}, false
	}
	origin, err := runOutput(ctx, "git", "remote", "get-url", "origin")
	if err != nil {
		return Head{}, false
	}

	return Head{
		Short:  strings.TrimSpace(short),
		Full:   strings.TrimSpace(full),
		Origin: strings.TrimSuffix(strings.TrimSpace(origin), ".git"),
	}, true
}

// Link renders the head as an HTML anchor to the commit on the forge, or
// "Unknown" for the zero Head.
func (h Head) Link() string {
	if h.Full == "" || h.Origin == "" {
		return "Unknown"
	}
	return fmt.Sprintf("<a href='%s/commit/%s'>%s</a>", h.Origin, h.Full, h.Short)
}

// LocalVersion reads CONFIG_LOCALVERSION from a kernel .config file.
func LocalVersion(configPath string) string {
	f, err := os.Open(configPath)
	if err != nil {
		return Unknown
	}
	defer iox.DiscardClose(f)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if value, found := strings.CutPrefix(line, "CONFIG_LOCALVERSION="); found {
			return strings.Trim(value, `"`)
		}
	}
	return Unknown
}

var clangVersionPattern = regexp.MustCompile(`clang version \d+\.\d+\.\d+`)

// CompilerVersion probes the clang toolchain version.
func CompilerVersion(ctx context.Context) string {
	out, err := runOutput(ctx, "clang", "--version")
	if err != nil {
		return "Clang/LLVM"
	}

	firstLine, _, _ := strings.Cut(out, "\n")
	if match := clangVersionPattern.FindString(firstLine); match != "" {
		return match
	}
	if _, rest, found := strings.Cut(firstLine, "clang version"); found {
		if fields := strings.Fields(rest); len(fields) > 0 {
			return "Clang " + fields[0]
		}
	}
	return "Clang/LLVM"
}

var kernelReleasePattern = regexp.MustCompile(`Linux version ([0-9]\S*)`)

// KernelRelease extracts the compiled kernel release string from the
// uncompressed Image's embedded version banner.
func KernelRelease(imagePath string) (string, bool) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", false
	}
	match := kernelReleasePattern.FindSubmatch(data)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}
