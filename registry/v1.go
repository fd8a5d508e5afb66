package registry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// v1Magic tags the binary format's header.
const v1Magic uint32 = 0x57524131 // "WRA1"

// LoadV1 reads the binary registry.dat format: a length-prefixed sequence
// of (author, name, version_count, versions[])
// entries, versions packed as (u16, u16, u16) newest-first, with a header
// carrying a format tag and the opaque since_count.
func LoadV1(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening registry %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	reg, err := decodeV1(r)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	reg.ETag, _ = readSidecar(path + ".etag")
	if sc, err := readSidecar(path + ".since"); err == nil {
		if n, perr := parseUint(sc); perr == nil {
			reg.SinceCount = n
		}
	}
	return reg, nil
}

func decodeV1(r io.Reader) (*Registry, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "reading magic")
	}
	if magic != v1Magic {
		return nil, errors.Errorf("bad magic %x", magic)
	}

	var sinceCount uint64
	if err := binary.Read(r, binary.BigEndian, &sinceCount); err != nil {
		return nil, errors.Wrap(err, "reading since_count")
	}

	var entryCount uint32
	if err := binary.Read(r, binary.BigEndian, &entryCount); err != nil {
		return nil, errors.Wrap(err, "reading entry count")
	}

	reg := New()
	reg.SinceCount = sinceCount

	for i := uint32(0); i < entryCount; i++ {
		author, name, err := readString(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading entry %d author/name", i)
		}
		var versionCount uint32
		if err := binary.Read(r, binary.BigEndian, &versionCount); err != nil {
			return nil, errors.Wrapf(err, "reading entry %d version count", i)
		}
		for j := uint32(0); j < versionCount; j++ {
			var major, minor, patch uint16
			if err := binary.Read(r, binary.BigEndian, &major); err != nil {
				return nil, errors.Wrapf(err, "reading %s version %d major", name, j)
			}
			if err := binary.Read(r, binary.BigEndian, &minor); err != nil {
				return nil, errors.Wrapf(err, "reading %s version %d minor", name, j)
			}
			if err := binary.Read(r, binary.BigEndian, &patch); err != nil {
				return nil, errors.Wrapf(err, "reading %s version %d patch", name, j)
			}
			v := pgsolver.Version{Major: int(major), Minor: int(minor), Patch: int(patch)}
			reg.addVersionStatus(author, name, v, StatusValid, false)
		}
	}
	reg.SortEntries()
	return reg, nil
}

func readString(r io.Reader) (author, name string, err error) {
	a, err := readLenPrefixed(r)
	if err != nil {
		return "", "", err
	}
	n, err := readLenPrefixed(r)
	if err != nil {
		return "", "", err
	}
	return a, n, nil
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeLenPrefixed(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return errors.Errorf("string too long to encode: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// WriteV1 atomically writes reg in the binary format, plus its ETag and
// since_count sidecar files, preserving the invariant that on-disk state
// is always a complete, sorted, de-duplicated registry.
func WriteV1(path string, reg *Registry) error {
	reg.SortEntries()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	w := bufio.NewWriter(f)

	writeErr := func() error {
		if err := binary.Write(w, binary.BigEndian, v1Magic); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, reg.SinceCount); err != nil {
			return err
		}
		entries := reg.Entries()
		if err := binary.Write(w, binary.BigEndian, uint32(len(entries))); err != nil {
			return err
		}
		for _, e := range entries {
			if err := writeLenPrefixed(w, e.Author); err != nil {
				return err
			}
			if err := writeLenPrefixed(w, e.Name); err != nil {
				return err
			}
			if err := binary.Write(w, binary.BigEndian, uint32(len(e.versions))); err != nil {
				return err
			}
			for _, vs := range e.versions {
				if err := binary.Write(w, binary.BigEndian, uint16(vs.v.Major)); err != nil {
					return err
				}
				if err := binary.Write(w, binary.BigEndian, uint16(vs.v.Minor)); err != nil {
					return err
				}
				if err := binary.Write(w, binary.BigEndian, uint16(vs.v.Patch)); err != nil {
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

	if reg.ETag != "" {
		_ = writeSidecar(path+".etag", reg.ETag)
	}
	_ = writeSidecar(path+".since", formatUint(reg.SinceCount))
	return nil
}

func readSidecar(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeSidecar(path, content string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func parseUint(s string) (uint64, error) {
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.Errorf("invalid digit in %q", s)
		}
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}

func formatUint(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
