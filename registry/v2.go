package registry

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// v2Header is the first line of the text format. The line following it
// names the compiler and its version; both are preserved verbatim but
// otherwise unused here.
const v2Header = "format 2"

// V2Meta carries the header fields LoadV2/WriteV2 preserve but that have no
// home in Registry itself.
type V2Meta struct {
	Compiler        string
	CompilerVersion string
}

// LoadV2 reads the line-based text format: a header, then
// blank-line-separated per-package blocks. Readers tolerate any ordering
// of within-block attributes and ignore unknown ones, so older readers
// keep working as the format grows attributes.
func LoadV2(path string) (*Registry, V2Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, V2Meta{}, errors.Wrapf(err, "opening registry %s", path)
	}
	defer f.Close()

	reg, meta, err := decodeV2(f)
	if err != nil {
		return nil, V2Meta{}, &CorruptError{Path: path, Err: err}
	}
	return reg, meta, nil
}

func decodeV2(r io.Reader) (*Registry, V2Meta, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		return nil, V2Meta{}, errors.New("empty registry file")
	}
	if strings.TrimSpace(sc.Text()) != v2Header {
		return nil, V2Meta{}, errors.Errorf("bad header %q, want %q", sc.Text(), v2Header)
	}

	var meta V2Meta
	if sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 1 {
			meta.Compiler = fields[0]
		}
		if len(fields) >= 2 {
			meta.CompilerVersion = fields[1]
		}
	}
	// Blank line separating the header from the first block.
	sc.Scan()

	reg := New()
	var cur *blockState
	flush := func() error {
		if cur == nil {
			return nil
		}
		if err := cur.applyTo(reg); err != nil {
			return err
		}
		cur = nil
		return nil
	}

	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if err := flush(); err != nil {
				return nil, V2Meta{}, err
			}
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "package:"):
			if err := flush(); err != nil {
				return nil, V2Meta{}, err
			}
			author, name, err := splitAuthorName(strings.TrimSpace(strings.TrimPrefix(trimmed, "package:")))
			if err != nil {
				return nil, V2Meta{}, err
			}
			cur = &blockState{author: author, name: name}
		case strings.HasPrefix(trimmed, "version:"):
			if cur == nil {
				return nil, V2Meta{}, errors.New("version: outside a package block")
			}
			v, err := pgsolver.ParseVersion(strings.TrimSpace(strings.TrimPrefix(trimmed, "version:")))
			if err != nil {
				return nil, V2Meta{}, err
			}
			cur.version = v
			cur.haveVersion = true
		case strings.HasPrefix(trimmed, "status:"):
			if cur == nil {
				return nil, V2Meta{}, errors.New("status: outside a package block")
			}
			cur.status = ParseStatus(strings.TrimSpace(strings.TrimPrefix(trimmed, "status:")))
		case strings.HasPrefix(trimmed, "license:"):
			// Preserved by no field on Entry; ignored per the "readers must
			// ignore unknown attributes" forward-compatibility rule.
		case trimmed == "dependencies:":
			// Nothing to do; the indented lines that follow are the deps.
		default:
			// Indented "author/name  constraint" dependency line, or any
			// other unknown attribute. Dependencies aren't part of the
			// Registry type (installenv's Provider reads them from each
			// cached package's elm.json), so
			// this is intentionally ignored here too.
		}
	}
	if err := flush(); err != nil {
		return nil, V2Meta{}, err
	}
	if err := sc.Err(); err != nil {
		return nil, V2Meta{}, errors.Wrap(err, "scanning registry")
	}

	reg.SortEntries()
	return reg, meta, nil
}

type blockState struct {
	author, name string
	version      pgsolver.Version
	haveVersion  bool
	status       Status
}

func (b *blockState) applyTo(reg *Registry) error {
	if !b.haveVersion {
		return errors.Errorf("package %s/%s block has no version:", b.author, b.name)
	}
	reg.addVersionStatus(b.author, b.name, b.version, b.status, false)
	return nil
}

func splitAuthorName(s string) (author, name string, err error) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return "", "", errors.Errorf("malformed package line %q: want author/name", s)
	}
	return s[:i], s[i+1:], nil
}

// WriteV2 atomically writes reg in the text format. Attribute ordering
// within a block is not guaranteed to match a prior read: V2 round-trips
// semantically, not byte-for-byte.
func WriteV2(path string, reg *Registry, meta V2Meta) error {
	reg.SortEntries()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	w := bufio.NewWriter(f)

	writeErr := func() error {
		if _, err := io.WriteString(w, v2Header+"\n"); err != nil {
			return err
		}
		if _, err := io.WriteString(w, meta.Compiler+" "+meta.CompilerVersion+"\n\n"); err != nil {
			return err
		}
		for i, e := range reg.Entries() {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			for _, vs := range e.versions {
				if _, err := io.WriteString(w, "package: "+e.Author+"/"+e.Name+"\n"); err != nil {
					return err
				}
				if _, err := io.WriteString(w, "    version: "+vs.v.String()+"\n"); err != nil {
					return err
				}
				if _, err := io.WriteString(w, "    status: "+vs.status.String()+"\n"); err != nil {
					return err
				}
			}
		}
		return w.Flush()
	}()

	if writeErr != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(writeErr, "writing registry %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "closing temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming into place %s", path)
	}
	return nil
}
