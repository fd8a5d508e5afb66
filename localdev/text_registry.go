package localdev

import (
	"bufio"
	"os"
	"strings"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// TextRegistry is the local-dev text registry file living under the
// tracking directory (WRAP_HOME/local-dev/registry-local-dev.dat, not the
// V2 repository). It records one line per active local-dev package:
// "author/name version source-path".
type TextRegistry struct {
	Path string
}

// NewTextRegistry returns a TextRegistry at wrapHome/local-dev/registry-local-dev.dat.
func NewTextRegistry(wrapHome string) *TextRegistry {
	return &TextRegistry{Path: wrapHome + "/local-dev/registry-local-dev.dat"}
}

// Block is one recorded local-dev package.
type Block struct {
	Author, Name string
	Version      pgsolver.Version
	SourcePath   string
}

// Load reads every recorded block, tolerating a missing file (an empty
// result, not an error, no local-dev packages have been registered yet).
func (t *TextRegistry) Load() ([]Block, error) {
	f, err := os.Open(t.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", t.Path)
	}
	defer f.Close()

	var out []Block
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue // tolerate stray lines rather than fail the whole read
		}
		author, name, ok := cut(fields[0], '/')
		if !ok {
			continue
		}
		v, err := pgsolver.ParseVersion(fields[1])
		if err != nil {
			continue
		}
		out = append(out, Block{Author: author, Name: name, Version: v, SourcePath: fields[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning %s", t.Path)
	}
	return out, nil
}

func cut(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// Append adds a block for (author, name, v, sourcePath), replacing any
// existing block for the same (author, name, version), registration is
// idempotent.
func (t *TextRegistry) Append(author, name string, v pgsolver.Version, sourcePath string) error {
	blocks, err := t.Load()
	if err != nil {
		return err
	}
	replaced := false
	for i, b := range blocks {
		if b.Author == author && b.Name == name && b.Version.Equal(v) {
			blocks[i].SourcePath = sourcePath
			replaced = true
			break
		}
	}
	if !replaced {
		blocks = append(blocks, Block{Author: author, Name: name, Version: v, SourcePath: sourcePath})
	}
	return t.write(blocks)
}

// Remove deletes the block for (author, name, v), if present.
func (t *TextRegistry) Remove(author, name string, v pgsolver.Version) error {
	blocks, err := t.Load()
	if err != nil {
		return err
	}
	out := blocks[:0]
	for _, b := range blocks {
		if b.Author == author && b.Name == name && b.Version.Equal(v) {
			continue
		}
		out = append(out, b)
	}
	return t.write(out)
}

func (t *TextRegistry) write(blocks []Block) error {
	if err := os.MkdirAll(dirOf(t.Path), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", t.Path)
	}
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(blk.Author + "/" + blk.Name + " " + blk.Version.String() + " " + blk.SourcePath + "\n")
	}

	tmp := t.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, "writing temp file for %s", t.Path)
	}
	if err := os.Rename(tmp, t.Path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming into place %s", t.Path)
	}
	return nil
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}
