package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDisposed = errors.New("scene disposed")
	ErrNotBuilt = errors.New("scene has no resources")
)

type State int

const (
	StateConstructed State = iota
	StateBuilt
	StateRunning
	StateStopped
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateBuilt:
		return "built"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDisposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Scene is what the registry and the shell see of a visual scene. GPU
// handles stay inside the implementation.
type Scene interface {
	ID() uuid.UUID
	Name() string
	State() State
	Build() error
	Run() error
	Stop()
	Dispose()
}

// Resizer is implemented by scenes with size dependent resources.
type Resizer interface {
	Resize(width, height uint32)
}

// Lifecycle is the state machine shared by every scene. Scenes embed it and
// call Built, Reset and Disposed from their own Build/Dispose.
type Lifecycle struct {
	id    uuid.UUID
	name  string
	state State

	loop      *FrameLoop
	frame     func()
	scheduled bool
	// resume is set when a running scene lost its resources to a failed
	// build. The next Built puts it back to Running.
	resume bool
}

// NewLifecycle binds frame to loop. frame runs once per tick while Running.
func NewLifecycle(name string, loop *FrameLoop, frame func()) Lifecycle {
	return Lifecycle{
		id:    uuid.New(),
		name:  name,
		state: StateConstructed,
		loop:  loop,
		frame: frame,
	}
}

func (l *Lifecycle) ID() uuid.UUID { return l.id }
func (l *Lifecycle) Name() string  { return l.name }
func (l *Lifecycle) State() State  { return l.state }

func (l *Lifecycle) Running() bool {
	return l.state == StateRunning
}

// CheckUsable fails once the scene has been disposed.
func (l *Lifecycle) CheckUsable() error {
	if l.state == StateDisposed {
		return fmt.Errorf("%s: %w", l.name, ErrDisposed)
	}
	return nil
}

// Built records a finished generation. A running scene keeps running on
// the new generation, and one reset while running starts again.
func (l *Lifecycle) Built() {
	switch {
	case l.state == StateDisposed, l.state == StateRunning:
	case l.resume:
		l.resume = false
		l.state = StateRunning
		l.schedule()
	default:
		l.state = StateBuilt
	}
}

// Reset drops back to Constructed after a build failed mid way. It reports
// whether the scene was running.
func (l *Lifecycle) Reset() bool {
	if l.state == StateDisposed {
		return false
	}
	wasRunning := l.state == StateRunning
	if wasRunning {
		l.resume = true
	}
	l.state = StateConstructed
	return wasRunning
}

// Run marks the scene running and schedules its frame callback.
func (l *Lifecycle) Run() error {
	switch l.state {
	case StateDisposed:
		return fmt.Errorf("%s: %w", l.name, ErrDisposed)
	case StateConstructed:
		return fmt.Errorf("%s: %w", l.name, ErrNotBuilt)
	case StateRunning:
		return nil
	}
	l.state = StateRunning
	l.schedule()
	return nil
}

// Stop clears the running flag. A callback already queued exits without
// side effects when it fires.
func (l *Lifecycle) Stop() {
	l.resume = false
	if l.state == StateRunning {
		l.state = StateStopped
	}
}

func (l *Lifecycle) Disposed() {
	l.state = StateDisposed
}

func (l *Lifecycle) schedule() {
	if l.scheduled || l.loop == nil {
		return
	}
	l.scheduled = true
	l.loop.RequestFrame(l.tick)
}

func (l *Lifecycle) tick() {
	l.scheduled = false
	if l.state != StateRunning {
		return
	}
	l.frame()
	if l.state == StateRunning {
		l.schedule()
	}
}
