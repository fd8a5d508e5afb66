package manifest

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// PackageChange is one entry in an InstallPlan: the delta for a single
// package between the current manifest and a resolved assignment.
type PackageChange struct {
	Author     string `json:"author"`
	Name       string `json:"name"`
	OldVersion string `json:"old_version,omitempty"`
	NewVersion string `json:"new_version"`
}

// InstallPlan is the ordered list of PackageChanges produced by a
// successful solve.
type InstallPlan struct {
	Changes []PackageChange `json:"changes"`
}

// WriteJSON persists the plan, e.g. as elm-stuff/wrap-plan.json, so a
// driver can replay or audit the delta later.
func (p *InstallPlan) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(err, "encoding install plan")
	}
	return nil
}

// ReadJSON loads a previously written plan.
func ReadJSON(r io.Reader) (*InstallPlan, error) {
	var p InstallPlan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(err, "decoding install plan")
	}
	return &p, nil
}
