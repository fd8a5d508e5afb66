package registry

import "github.com/pkg/errors"

var errOverflow = errors.New("since_count overflow: cannot apply incremental update")

// CorruptError is returned by Load when the on-disk registry's prefix is
// malformed. The load fails whole: no partial mutation, and the on-disk
// file keeps its prior good contents.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return errors.Wrapf(e.Err, "registry file %s is corrupt", e.Path).Error()
}

func (e *CorruptError) Unwrap() error { return e.Err }
