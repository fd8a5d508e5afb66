package localdev

import (
	"github.com/elm-wrap/wrap/pgsolver"
	"github.com/elm-wrap/wrap/registry"
)

// Manager composes Overlay, TextRegistry, and Tracking into the full
// register/unregister lifecycle, so callers don't have to remember the
// three places a local-dev package's state lives.
type Manager struct {
	Overlay *Overlay
	Text    *TextRegistry
	Track   *Tracking
}

// NewManager wires the three collaborators together given ELM_HOME, the
// active V1 registry, and WRAP_HOME.
func NewManager(elmHome string, v1reg *registry.Registry, wrapHome string) *Manager {
	return &Manager{
		Overlay: &Overlay{ElmHome: elmHome, V1Registry: v1reg},
		Text:    NewTextRegistry(wrapHome),
		Track:   NewTracking(wrapHome),
	}
}

// Register performs the full registration: symlink, V1 registry insert,
// and the text local-dev block append.
func (m *Manager) Register(author, name string, v pgsolver.Version, sourcePath string) error {
	if err := m.Overlay.Register(author, name, v, sourcePath); err != nil {
		return err
	}
	return m.Text.Append(author, name, v, sourcePath)
}

// Unregister removes the symlink, the tracking subtree, the V1 registry
// entry, and the local-dev text block.
func (m *Manager) Unregister(author, name string, v pgsolver.Version) error {
	if err := m.Overlay.Unregister(author, name, v); err != nil {
		return err
	}
	if err := m.Track.Unregister(author, name, v); err != nil {
		return err
	}
	return m.Text.Remove(author, name, v)
}
