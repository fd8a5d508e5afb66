// Package cache implements the ELM_HOME package cache: content-addressed,
// download-and-extract package storage plus the deduplicating mirror
// manifest that backs it. Every mutation lands in a temp location first
// and renames into place, so a partially-materialized package is never
// visible.
package cache

import (
	"archive/zip"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
	"github.com/termie/go-shutil"
)

// Cache is the ELM_HOME/packages tree: extracted package directories keyed
// by (author, name, version), plus the mirror manifest used for SHA
// verification and cross-package dedup.
type Cache struct {
	Root     string // ELM_HOME
	Mirror   *MirrorManifest
	Meta     *Metastore // may be nil: bolt memoization is an accelerator, not required
	HTTP     *http.Client
}

// New returns a Cache rooted at elmHome, creating the packages directory
// tree if it does not already exist.
func New(elmHome string, mirror *MirrorManifest, meta *Metastore) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(elmHome, "packages"), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating package cache root under %s", elmHome)
	}
	return &Cache{Root: elmHome, Mirror: mirror, Meta: meta, HTTP: http.DefaultClient}, nil
}

// PackagePath returns the on-disk location of (author, name, version),
// whether or not anything currently lives there.
func (c *Cache) PackagePath(author, name string, v pgsolver.Version) string {
	return filepath.Join(c.Root, "packages", author, name, v.String())
}

// Exists is the single source of truth for "is this package on disk". It
// is a plain stat, deliberately bypassing any bolt memoization: the
// filesystem is authoritative.
func (c *Cache) Exists(author, name string, v pgsolver.Version) bool {
	fi, err := os.Stat(c.PackagePath(author, name, v))
	return err == nil && fi.IsDir()
}

// DownloadOpts configures a single download/extract operation.
type DownloadOpts struct {
	// URL overrides the computed archive URL entirely, the --from-url
	// escape hatch. A non-empty URL implies IgnoreHash.
	URL string
	// IgnoreHash skips SHA-1 verification against the mirror manifest.
	// Documented escape hatch; using it disables integrity verification.
	IgnoreHash bool
}

// HashMismatchError is returned when a downloaded archive's SHA-1 does not
// match the mirror manifest's recorded hash for (author, name, version).
type HashMismatchError struct {
	Author, Name string
	Version      pgsolver.Version
	Want, Got    string
}

func (e *HashMismatchError) Error() string {
	return errors.Errorf("hash mismatch for %s/%s %s: want %s got %s",
		e.Author, e.Name, e.Version, e.Want, e.Got).Error()
}

// ExtractionError wraps a failure partway through unzipping an archive.
// Partial extractions never become visible.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return errors.Wrapf(e.Err, "extracting archive for %s", e.Path).Error()
}
func (e *ExtractionError) Unwrap() error { return e.Err }

// Download streams the archive to a temp file, hashes it, verifies the
// SHA-1 against the mirror manifest (unless IgnoreHash), extracts into a
// sibling temp directory, and atomically renames into place. Any failure
// along the way leaves no partial artifact visible: Exists transitions
// from false to true exactly once, on success.
func (c *Cache) Download(author, name string, v pgsolver.Version, opts DownloadOpts) error {
	url := opts.URL
	if url == "" {
		url = c.archiveURL(author, name, v)
	}
	ignoreHash := opts.IgnoreHash || opts.URL != ""

	dest := c.PackagePath(author, name, v)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent directory for %s", dest)
	}

	// A warm process that already hashed this URL can reject a known
	// mismatch before touching the network at all.
	if !ignoreHash && c.Meta != nil {
		if known, ok := c.Meta.LookupHash(url); ok {
			if want, recorded := c.Mirror.Hash(author, name, v); recorded && want != known {
				return &HashMismatchError{Author: author, Name: name, Version: v, Want: want, Got: known}
			}
		}
	}

	tmpArchive, sum, err := c.fetchAndHash(url)
	if err != nil {
		return err
	}
	defer os.Remove(tmpArchive)

	if c.Meta != nil {
		// The metastore is an accelerator; a lost memo is not worth
		// failing the download over.
		_ = c.Meta.RememberHash(url, sum)
	}

	if !ignoreHash {
		want, ok := c.Mirror.Hash(author, name, v)
		if ok && want != sum {
			return &HashMismatchError{Author: author, Name: name, Version: v, Want: want, Got: sum}
		}
	}

	tmpDir := dest + ".extracting"
	os.RemoveAll(tmpDir)
	if err := extractZip(tmpArchive, tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return &ExtractionError{Path: tmpArchive, Err: err}
	}

	os.RemoveAll(dest) // clear whatever occupied the slot before the rename
	if err := os.Rename(tmpDir, dest); err != nil {
		os.RemoveAll(tmpDir)
		return errors.Wrapf(err, "renaming extracted package into place at %s", dest)
	}

	c.Mirror.Add(author, name, v, sum, url)
	return nil
}

func (c *Cache) archiveURL(author, name string, v pgsolver.Version) string {
	return "https://package.elm-lang.org/packages/" + author + "/" + name + "/" + v.String() + "/endpoint.zip"
}

func (c *Cache) fetchAndHash(url string) (path, sum string, err error) {
	resp, err := c.HTTP.Get(url)
	if err != nil {
		return "", "", errors.Wrapf(err, "downloading %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", errors.Errorf("downloading %s: status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp("", "wrap-pkg-*.zip")
	if err != nil {
		return "", "", errors.Wrap(err, "creating temp archive file")
	}
	defer tmp.Close()

	h := sha1.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", "", errors.Wrapf(err, "streaming %s to disk", url)
	}
	return tmp.Name(), hex.EncodeToString(h.Sum(nil)), nil
}

// extractZip unpacks archivePath into dest, which must not already exist.
// Single-root-directory archives (the elm package host's convention: one
// top-level "<author>-<name>-<version>/" directory) are flattened so dest
// itself becomes the package root rather than holding it one level down.
func extractZip(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	stageDir, err := os.MkdirTemp(filepath.Dir(dest), "wrap-zip-stage-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stageDir)

	for _, f := range r.File {
		target := filepath.Join(stageDir, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}

	root := singleRootDir(stageDir)
	cfg := &shutil.CopyTreeOptions{Symlinks: true, CopyFunction: shutil.Copy}
	return shutil.CopyTree(root, dest, cfg)
}

// singleRootDir returns the lone entry under dir if it's the only one and
// is itself a directory, matching the "one top-level dir per archive"
// convention of Elm package zips; otherwise it returns dir unchanged.
func singleRootDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}
