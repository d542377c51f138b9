package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrUnknownScene = errors.New("unknown scene")

// Panel is the visibility side of a scene's control panel.
type Panel interface {
	Show()
	Hide()
}

type Entry struct {
	Index int
	Scene Scene
	Panel Panel
}

// Registry keeps at most one scene running. It only drives the public
// Build/Run/Stop surface and panel visibility.
type Registry struct {
	entries []*Entry
	byID    map[uuid.UUID]*Entry
	active  *Entry
	log     Logger
}

func NewRegistry(log Logger) *Registry {
	if log == nil {
		log = NopLogger()
	}
	return &Registry{
		byID: make(map[uuid.UUID]*Entry),
		log:  log,
	}
}

// Register adds scene with its panel (may be nil) and returns its index.
// Panels start hidden.
func (r *Registry) Register(scene Scene, panel Panel) int {
	if e, ok := r.byID[scene.ID()]; ok {
		return e.Index
	}
	e := &Entry{Index: len(r.entries), Scene: scene, Panel: panel}
	r.entries = append(r.entries, e)
	r.byID[scene.ID()] = e
	if panel != nil {
		panel.Hide()
	}
	return e.Index
}

func (r *Registry) Len() int { return len(r.entries) }

func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Active returns the running entry, or nil.
func (r *Registry) Active() *Entry { return r.active }

// Activate switches to the scene at index.
func (r *Registry) Activate(index int) error {
	if index < 0 || index >= len(r.entries) {
		return fmt.Errorf("scene %d: %w", index, ErrUnknownScene)
	}
	return r.activate(r.entries[index])
}

func (r *Registry) ActivateID(id uuid.UUID) error {
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("scene %s: %w", id, ErrUnknownScene)
	}
	return r.activate(e)
}

// ActivateName switches to the first scene with the given name.
func (r *Registry) ActivateName(name string) error {
	for _, e := range r.entries {
		if e.Scene.Name() == name {
			return r.activate(e)
		}
	}
	return fmt.Errorf("scene %q: %w", name, ErrUnknownScene)
}

func (r *Registry) activate(e *Entry) error {
	if r.active == e && e.Scene.State() == StateRunning {
		return nil
	}
	if r.active != nil {
		r.active.Scene.Stop()
	}
	for _, other := range r.entries {
		if other.Panel != nil {
			other.Panel.Hide()
		}
	}
	if e.Panel != nil {
		e.Panel.Show()
	}
	r.active = e
	if err := e.Scene.Run(); err != nil {
		r.log.Errorf("Scene %s failed to start: %v", e.Scene.Name(), err)
		return err
	}
	r.log.Infof("Scene switched to %s (#%d)", e.Scene.Name(), e.Index)
	return nil
}

// Resize forwards a surface resize to every scene that cares.
func (r *Registry) Resize(width, height uint32) {
	for _, e := range r.entries {
		if rs, ok := e.Scene.(Resizer); ok {
			rs.Resize(width, height)
		}
	}
}

// Close stops the active scene and disposes all of them.
func (r *Registry) Close() {
	if r.active != nil {
		r.active.Scene.Stop()
		r.active = nil
	}
	for _, e := range r.entries {
		e.Scene.Dispose()
	}
}
