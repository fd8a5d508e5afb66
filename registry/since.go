package registry

import (
	"strings"

	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/pkg/errors"
)

// parseSinceEntry parses one "author/name@version" /since entry.
func parseSinceEntry(s string) (author, name string, v pgsolver.Version, err error) {
	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return "", "", pgsolver.Version{}, errors.Errorf("malformed /since entry %q: missing @version", s)
	}
	nameAndAuthor, verStr := s[:at], s[at+1:]
	slash := strings.IndexByte(nameAndAuthor, '/')
	if slash < 0 {
		return "", "", pgsolver.Version{}, errors.Errorf("malformed /since entry %q: missing author/name", s)
	}
	author, name = nameAndAuthor[:slash], nameAndAuthor[slash+1:]
	v, perr := pgsolver.ParseVersion(verStr)
	if perr != nil {
		return "", "", pgsolver.Version{}, errors.Wrapf(perr, "malformed /since entry %q", s)
	}
	return author, name, v, nil
}
