// Package anykernel packages compiled kernel images into a flashable
// AnyKernel3 zip.
//
// The AnyKernel3 skeleton is cloned fresh for every build, the boot images
// are copied in, and everything except repository housekeeping files is
// zipped under a timestamped name.
package anykernel

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashwinrm/buildherald/iox"
	"github.com/ashwinrm/buildherald/log"
)

// DefaultBootDir is where the kernel build drops its images.
const DefaultBootDir = "out/arch/arm64/boot"

// cloneDir is the working directory the skeleton is cloned into.
const cloneDir = "AnyKernel3"

// zipTimestamp matches names like "6.1.99-sultan-2025MonAug25-143000.zip".
const zipTimestamp = "2006MonJan02-150405"

// bootImages maps image names in the boot directory to their names inside
// the zip. Missing images are skipped; AnyKernel3 handles partial sets.
var bootImages = map[string]string{
	"Image.gz": "Image.gz",
	"dtbo.img": "dtbo.img",
	"dtb.img":  "dtb",
}

// skeletonExclusions are AnyKernel3 repository files that have no business
// in a flashable zip.
var skeletonExclusions = []string{".git", ".github", ".gitignore", "README.md"}

// gitClone clones a repository. Swapped out in tests.
var gitClone = func(ctx context.Context, repo, dir string) error {
	return exec.CommandContext(ctx, "git", "clone", "-q", repo, dir).Run()
}

// Packager builds flashable zips from kernel images.
type Packager struct {
	// Repo is the AnyKernel3 skeleton repository URL.
	Repo string
	// BootDir is the kernel image directory (DefaultBootDir if empty).
	BootDir string
	// OutDir is where the finished zip lands (cwd if empty).
	OutDir string

	logger *log.Logger
	now    func() time.Time
}

// NewPackager creates a packager for the given skeleton repository.
func NewPackager(repo string, logger *log.Logger) *Packager {
	return &Packager{
		Repo:    repo,
		BootDir: DefaultBootDir,
		logger:  logger,
		now:     time.Now,
	}
}

// Package clones the skeleton, copies the boot images in, and zips the
// result. versionTag usually carries the compiled kernel release; empty
// falls back to a generic tag. Returns the absolute zip path.
func (p *Packager) Package(ctx context.Context, versionTag string) (string, error) {
	if p.Repo == "" {
		return "", fmt.Errorf("anykernel: no skeleton repository configured")
	}

	workDir := filepath.Join(p.OutDir, cloneDir)
	if err := os.RemoveAll(workDir); err != nil {
		return "", fmt.Errorf("anykernel: clear %q: %w", workDir, err)
	}
	if err := gitClone(ctx, p.Repo, workDir); err != nil {
		return "", fmt.Errorf("anykernel: clone %q: %w", p.Repo, err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	copied, err := p.copyImages(workDir)
	if err != nil {
		return "", err
	}
	if copied == 0 {
		return "", fmt.Errorf("anykernel: no kernel images found in %q", p.BootDir)
	}

	if versionTag == "" {
		versionTag = "Unknown-Kernel"
	}
	zipName := fmt.Sprintf("%s-%s.zip", versionTag, p.now().Format(zipTimestamp))
	zipPath := filepath.Join(p.OutDir, zipName)

	if err := zipTree(workDir, zipPath); err != nil {
		_ = os.Remove(zipPath)
		return "", err
	}

	abs, err := filepath.Abs(zipPath)
	if err != nil {
		return "", fmt.Errorf("anykernel: resolve %q: %w", zipPath, err)
	}
	p.logger.Info("flashable zip packaged", map[string]any{
		"zip": abs, "images": copied,
	})
	return abs, nil
}

// copyImages moves whichever boot images exist into the skeleton.
func (p *Packager) copyImages(workDir string) (int, error) {
	bootDir := p.BootDir
	if bootDir == "" {
		bootDir = DefaultBootDir
	}

	copied := 0
	for src, dst := range bootImages {
		srcPath := filepath.Join(bootDir, src)
		if _, err := os.Stat(srcPath); err != nil {
			continue
		}
		if err := copyFile(srcPath, filepath.Join(workDir, dst)); err != nil {
			return 0, fmt.Errorf("anykernel: copy %q: %w", src, err)
		}
		copied++
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(in)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// excluded reports whether a skeleton-relative path is repository
// housekeeping rather than flashable content.
func excluded(rel string) bool {
	top := rel
	if i := strings.IndexByte(rel, filepath.Separator); i >= 0 {
		top = rel[:i]
	}
	for _, name := range skeletonExclusions {
		if top == name {
			return true
		}
	}
	return strings.HasSuffix(rel, "placeholder")
}

// zipTree archives the directory's contents at the zip root, honoring the
// exclusion list.
func zipTree(dir, zipPath string) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("anykernel: create %q: %w", zipPath, err)
	}

	zw := zip.NewWriter(f)
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, in)
		iox.DiscardClose(in)
		return err
	})
	if walkErr != nil {
		_ = zw.Close()
		_ = f.Close()
		return fmt.Errorf("anykernel: archive %q: %w", dir, walkErr)
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("anykernel: finalize %q: %w", zipPath, err)
	}
	return f.Close()
}
