package buildinfo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func interceptShell(t *testing.T, out string, err error) *string {
	t.Helper()
	var gotCmd string
	orig := runShell
	runShell = func(ctx context.Context, command string) (string, error) {
		gotCmd = command
		return out, err
	}
	t.Cleanup(func() { runShell = orig })
	return &gotCmd
}

func interceptOutput(t *testing.T, results map[string]struct {
	out string
	err error
}) {
	t.Helper()
	orig := runOutput
	runOutput = func(ctx context.Context, name string, args ...string) (string, error) {
		key := name + " " + strings.Join(args, " ")
		r, ok := results[key]
		if !ok {
			t.Fatalf("unexpected command %q", key)
		}
		return r.out, r.err
	}
	t.Cleanup(func() { runOutput = orig })
}

func TestFetchRomVars(t *testing.T) {
	gotCmd := interceptShell(t, "VER=15\nBID=BP1A.250505.005\nTYPE=userdebug\n", nil)

	vars := FetchRomVars(context.Background(), "raven", "user")
	if vars.Version != "15" || vars.BuildID != "BP1A.250505.005" || vars.Variant != "userdebug" {
		t.Errorf("vars = %+v", vars)
	}
	if !strings.Contains(*gotCmd, "breakfast raven user") {
		t.Errorf("command = %q", *gotCmd)
	}
	if !strings.Contains(*gotCmd, "source build/envsetup.sh") {
		t.Errorf("command does not source envsetup: %q", *gotCmd)
	}
}

func TestFetchRomVars_ProbeFails(t *testing.T) {
	interceptShell(t, "", errors.New("no build/envsetup.sh"))

	vars := FetchRomVars(context.Background(), "raven", "user")
	if vars.Version != Unknown || vars.BuildID != Unknown {
		t.Errorf("vars = %+v, want placeholders", vars)
	}
	if vars.Variant != "user" {
		t.Errorf("variant = %q, want configured fallback", vars.Variant)
	}
}

func TestFetchRomVars_PartialOutput(t *testing.T) {
	interceptShell(t, "VER=15\nBID=\ngarbage line\n", nil)

	vars := FetchRomVars(context.Background(), "raven", "user")
	if vars.Version != "15" {
		t.Errorf("Version = %q", vars.Version)
	}
	if vars.BuildID != Unknown {
		t.Errorf("empty BID should keep placeholder, got %q", vars.BuildID)
	}
}

func TestFetchHead(t *testing.T) {
	interceptOutput(t, map[string]struct {
		out string
		err error
	}{
		"git rev-parse --short HEAD":  {out: "abc1234\n"},
		"git rev-parse HEAD":          {out: "abc1234def5678abc1234def5678abc1234def56\n"},
		"git remote get-url origin":   {out: "https://github.com/example/kernel.git\n"},
	})

	head, ok := FetchHead(context.Background())
	if !ok {
		t.Fatal("FetchHead failed")
	}
	if head.Origin != "https://github.com/example/kernel" {
		t.Errorf("Origin = %q, want .git stripped", head.Origin)
	}
	want := "<a href='https://github.com/example/kernel/commit/abc1234def5678abc1234def5678abc1234def56'>abc1234</a>"
	if got := head.Link(); got != want {
		t.Errorf("Link() = %q, want %q", got, want)
	}
}

func TestFetchHead_NotARepo(t *testing.T) {
	interceptOutput(t, map[string]struct {
		out string
		err error
	}{
		"git rev-parse --short HEAD": {err: errors.New("not a git repository")},
	})

	if _, ok := FetchHead(context.Background()); ok {
		t.Error("FetchHead succeeded outside a repo")
	}
}

func TestHeadLink_Zero(t *testing.T) {
	if got := (Head{}).Link(); got != "Unknown" {
		t.Errorf("Link() = %q", got)
	}
}

func TestLocalVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".config")
	content := "CONFIG_CC_IS_CLANG=y\nCONFIG_LOCALVERSION=\"-sultan\"\nCONFIG_LOCALVERSION_AUTO=n\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := LocalVersion(path); got != "-sultan" {
		t.Errorf("LocalVersion = %q", got)
	}
}

func TestLocalVersion_Missing(t *testing.T) {
	if got := LocalVersion(filepath.Join(t.TempDir(), "no-config")); got != Unknown {
		t.Errorf("LocalVersion = %q", got)
	}

	path := filepath.Join(t.TempDir(), ".config")
	if err := os.WriteFile(path, []byte("CONFIG_CC_IS_CLANG=y\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := LocalVersion(path); got != Unknown {
		t.Errorf("LocalVersion without the option = %q", got)
	}
}

func TestCompilerVersion(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want string
	}{
		{
			name: "standard banner",
			out:  "Android (12470510) clang version 19.0.1 (https://android.googlesource.com/toolchain/llvm-project)\nTarget: x86_64\n",
			want: "clang version 19.0.1",
		},
		{
			name: "nonstandard version token",
			out:  "clang version 19-rc2 custom\n",
			want: "Clang 19-rc2",
		},
		{
			name: "no clang",
			err:  errors.New("exec: clang: not found"),
			want: "Clang/LLVM",
		},
		{
			name: "unparseable banner",
			out:  "some other compiler\n",
			want: "Clang/LLVM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptOutput(t, map[string]struct {
				out string
				err error
			}{
				"clang --version": {out: tt.out, err: tt.err},
			})

			if got := CompilerVersion(context.Background()); got != tt.want {
				t.Errorf("CompilerVersion = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKernelRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Image")
	blob := append([]byte{0x1f, 0x8b, 0x00, 0x00},
		[]byte("Linux version 6.1.99-sultan-g1234abcd (builder@host) #1 SMP")...)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}

	got, ok := KernelRelease(path)
	if !ok {
		t.Fatal("KernelRelease failed")
	}
	if got != "6.1.99-sultan-g1234abcd" {
		t.Errorf("KernelRelease = %q", got)
	}
}

func TestKernelRelease_NoBanner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Image")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := KernelRelease(path); ok {
		t.Error("KernelRelease matched bannerless blob")
	}

	if _, ok := KernelRelease(filepath.Join(t.TempDir(), "missing")); ok {
		t.Error("KernelRelease succeeded on missing file")
	}
}
