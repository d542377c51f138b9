package panel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/gekko3d/gallery/galleryrt/rt/core"
)

// Change is one parsed override waiting to be applied.
type Change struct {
	Panel string
	Param string
	Value Value
}

// FileSource feeds panel values from a TOML file of the form
//
//	[particles]
//	amount = 500
//	color = [0.7, 0.5, 0.3, 0.9]
//
// The watcher goroutine only parses and queues; Apply runs on the main loop
// so listeners never see another goroutine.
type FileSource struct {
	path     string
	log      core.Logger
	debounce time.Duration

	panels map[string]*Panel

	mu      sync.Mutex
	queue   []Change
	watcher *fsnotify.Watcher
}

func NewFileSource(path string, log core.Logger) *FileSource {
	if log == nil {
		log = core.NopLogger()
	}
	return &FileSource{
		path:     path,
		log:      log,
		debounce: 200 * time.Millisecond,
		panels:   make(map[string]*Panel),
	}
}

func (s *FileSource) Bind(p *Panel) {
	s.panels[p.Name()] = p
}

// Load reads the file once and queues its values.
func (s *FileSource) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read panel overrides: %w", err)
	}
	changes, err := ParseOverrides(data, s.panels)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.queue = append(s.queue, changes...)
	s.mu.Unlock()
	return nil
}

// Start watches the file's directory (editors often replace files) and
// reloads after writes settle. It stops when ctx is done.
func (s *FileSource) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	s.watcher = w

	timer := time.NewTimer(0)
	<-timer.C
	target := filepath.Clean(s.path)

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				timer.Reset(s.debounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Errorf("Panel watcher error: %v", err)
			case <-timer.C:
				if err := s.Load(); err != nil {
					s.log.Warnf("Panel overrides not applied: %v", err)
				} else {
					s.log.Infof("Panel overrides reloaded from %s", s.path)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Apply sets every queued change and returns the ones that failed.
func (s *FileSource) Apply() []error {
	s.mu.Lock()
	changes := s.queue
	s.queue = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range changes {
		p, ok := s.panels[c.Panel]
		if !ok {
			continue
		}
		if err := p.Set(c.Param, c.Value); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *FileSource) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *FileSource) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// ParseOverrides decodes data against the parameter kinds of panels.
// Tables for unknown panels are ignored; unknown keys and ill-typed values
// fail the whole parse.
func ParseOverrides(data []byte, panels map[string]*Panel) ([]Change, error) {
	var doc map[string]map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse panel overrides: %w", err)
	}

	panelNames := make([]string, 0, len(doc))
	for name := range doc {
		panelNames = append(panelNames, name)
	}
	sort.Strings(panelNames)

	var changes []Change
	for _, pname := range panelNames {
		p, ok := panels[pname]
		if !ok {
			continue
		}
		table := doc[pname]
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			param := p.Get(key)
			if param == nil {
				return nil, fmt.Errorf("%s.%s: %w", pname, key, ErrUnknownParam)
			}
			v, err := decodeValue(param.Kind, table[key])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", pname, key, err)
			}
			changes = append(changes, Change{Panel: pname, Param: key, Value: v})
		}
	}
	return changes, nil
}

func decodeValue(k Kind, raw any) (Value, error) {
	switch k {
	case KindCheckbox, KindButton, KindKey:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("want bool, got %T: %w", raw, ErrKindMismatch)
		}
		return Value{Kind: k, Bool: b}, nil
	case KindNumber:
		switch n := raw.(type) {
		case int64:
			return NumberValue(int(n)), nil
		case float64:
			if n != float64(int64(n)) {
				return Value{}, fmt.Errorf("want integer, got %g: %w", n, ErrKindMismatch)
			}
			return NumberValue(int(n)), nil
		}
		return Value{}, fmt.Errorf("want integer, got %T: %w", raw, ErrKindMismatch)
	case KindSlider:
		f, ok := toFloat(raw)
		if !ok {
			return Value{}, fmt.Errorf("want number, got %T: %w", raw, ErrKindMismatch)
		}
		return SliderValue(f), nil
	case KindColor:
		arr, ok := raw.([]any)
		if !ok || len(arr) != 4 {
			return Value{}, fmt.Errorf("want 4 component array: %w", ErrKindMismatch)
		}
		var c [4]float32
		for i, e := range arr {
			f, ok := toFloat(e)
			if !ok {
				return Value{}, fmt.Errorf("color component %d is %T: %w", i, e, ErrKindMismatch)
			}
			c[i] = f
		}
		return ColorValue(c), nil
	}
	return Value{}, fmt.Errorf("%s cannot be set from a file: %w", k, ErrKindMismatch)
}

func toFloat(raw any) (float32, bool) {
	switch n := raw.(type) {
	case float64:
		return float32(n), true
	case int64:
		return float32(n), true
	}
	return 0, false
}
