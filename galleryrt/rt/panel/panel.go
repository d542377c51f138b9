// Package panel is the control panel boundary of the gallery: named
// tunables with typed values, change listeners and visibility.
package panel

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrKindMismatch = errors.New("value kind does not match parameter")
	ErrOutOfRange   = errors.New("value out of range")
	ErrUnknownParam = errors.New("unknown parameter")
	ErrDuplicate    = errors.New("parameter already defined")
)

// Listener is called synchronously after a parameter changes.
type Listener func(Value)

type Param struct {
	Name  string
	Label string
	Kind  Kind
	// Min, Max and Step bound number and slider values.
	Min, Max, Step float64
	// Key names the keyboard key a KindKey parameter follows.
	Key string

	value     Value
	listeners map[int]Listener
	order     []int
	nextID    int
}

func (p *Param) Value() Value { return p.value }

func (p *Param) Bool() bool          { return p.value.Bool }
func (p *Param) Int() int            { return p.value.Int }
func (p *Param) Float() float32      { return p.value.Float }
func (p *Param) Color() [4]float32   { return p.value.Color }
func (p *Param) CursorValue() Cursor { return p.value.Cursor }

// Listen registers fn and returns a func that removes it.
func (p *Param) Listen(fn Listener) func() {
	if p.listeners == nil {
		p.listeners = make(map[int]Listener)
	}
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.order = append(p.order, id)
	return func() {
		delete(p.listeners, id)
		for i, o := range p.order {
			if o == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
}

// Set validates v and notifies listeners. Buttons and cursors notify even
// when the value is unchanged; other kinds only on change.
func (p *Param) Set(v Value) error {
	if v.Kind != p.Kind {
		return fmt.Errorf("%s: %s into %s: %w", p.Name, v.Kind, p.Kind, ErrKindMismatch)
	}
	if err := p.validate(v); err != nil {
		return err
	}
	if v == p.value && p.Kind != KindButton && p.Kind != KindCursor {
		return nil
	}
	p.value = v
	p.notify()
	return nil
}

// Press toggles a button and notifies listeners.
func (p *Param) Press() error {
	if p.Kind != KindButton {
		return fmt.Errorf("%s: press on %s: %w", p.Name, p.Kind, ErrKindMismatch)
	}
	return p.Set(ButtonValue(!p.value.Bool))
}

func (p *Param) notify() {
	ids := make([]int, len(p.order))
	copy(ids, p.order)
	for _, id := range ids {
		if fn, ok := p.listeners[id]; ok {
			fn(p.value)
		}
	}
}

func (p *Param) validate(v Value) error {
	switch v.Kind {
	case KindNumber:
		if float64(v.Int) < p.Min || float64(v.Int) > p.Max {
			return fmt.Errorf("%s: %d not in [%g, %g]: %w", p.Name, v.Int, p.Min, p.Max, ErrOutOfRange)
		}
	case KindSlider:
		f := float64(v.Float)
		if math.IsNaN(f) || math.IsInf(f, 0) || f < p.Min || f > p.Max {
			return fmt.Errorf("%s: %g not in [%g, %g]: %w", p.Name, v.Float, p.Min, p.Max, ErrOutOfRange)
		}
	case KindColor:
		for _, c := range v.Color {
			if math.IsNaN(float64(c)) || c < 0 || c > 1 {
				return fmt.Errorf("%s: color component %g not in [0, 1]: %w", p.Name, c, ErrOutOfRange)
			}
		}
	}
	return nil
}

// Panel groups the parameters of one scene.
type Panel struct {
	name    string
	params  []*Param
	byName  map[string]*Param
	visible bool
	onVis   []func(bool)
}

func New(name string) *Panel {
	return &Panel{
		name:   name,
		byName: make(map[string]*Param),
	}
}

func (p *Panel) Name() string { return p.name }

func (p *Panel) add(param *Param, initial Value) *Param {
	if _, ok := p.byName[param.Name]; ok {
		panic(fmt.Sprintf("panel %s: %s: %v", p.name, param.Name, ErrDuplicate))
	}
	if err := param.validate(initial); err != nil {
		panic(fmt.Sprintf("panel %s: %v", p.name, err))
	}
	param.value = initial
	p.params = append(p.params, param)
	p.byName[param.Name] = param
	return param
}

func (p *Panel) AddCheckbox(name, label string, v bool) *Param {
	return p.add(&Param{Name: name, Label: label, Kind: KindCheckbox}, CheckboxValue(v))
}

func (p *Panel) AddNumber(name, label string, v, min, max int) *Param {
	return p.add(&Param{Name: name, Label: label, Kind: KindNumber, Min: float64(min), Max: float64(max), Step: 1}, NumberValue(v))
}

func (p *Panel) AddSlider(name, label string, v, min, max, step float32) *Param {
	return p.add(&Param{Name: name, Label: label, Kind: KindSlider, Min: float64(min), Max: float64(max), Step: float64(step)}, SliderValue(v))
}

func (p *Panel) AddColor(name, label string, c [4]float32) *Param {
	return p.add(&Param{Name: name, Label: label, Kind: KindColor}, ColorValue(c))
}

func (p *Panel) AddButton(name, label string) *Param {
	return p.add(&Param{Name: name, Label: label, Kind: KindButton}, ButtonValue(false))
}

func (p *Panel) AddCursor(name string) *Param {
	return p.add(&Param{Name: name, Label: name, Kind: KindCursor}, CursorValue(Cursor{}))
}

func (p *Panel) AddKey(name, key string) *Param {
	return p.add(&Param{Name: name, Label: key, Kind: KindKey, Key: key}, KeyValue(false))
}

// Get returns the named parameter or nil.
func (p *Panel) Get(name string) *Param {
	return p.byName[name]
}

func (p *Panel) Set(name string, v Value) error {
	param, ok := p.byName[name]
	if !ok {
		return fmt.Errorf("panel %s: %q: %w", p.name, name, ErrUnknownParam)
	}
	return param.Set(v)
}

// Params returns parameters in definition order.
func (p *Panel) Params() []*Param {
	out := make([]*Param, len(p.params))
	copy(out, p.params)
	return out
}

// Find returns every parameter of kind k.
func (p *Panel) Find(k Kind) []*Param {
	var out []*Param
	for _, param := range p.params {
		if param.Kind == k {
			out = append(out, param)
		}
	}
	return out
}

// Data snapshots all current values by name.
func (p *Panel) Data() map[string]Value {
	out := make(map[string]Value, len(p.params))
	for _, param := range p.params {
		out[param.Name] = param.value
	}
	return out
}

// Names returns parameter names sorted, mostly for logs.
func (p *Panel) Names() []string {
	names := make([]string, 0, len(p.params))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Panel) Show() { p.setVisible(true) }
func (p *Panel) Hide() { p.setVisible(false) }

func (p *Panel) Visible() bool { return p.visible }

// OnVisibility is called whenever Show or Hide changes visibility.
func (p *Panel) OnVisibility(fn func(bool)) {
	p.onVis = append(p.onVis, fn)
}

func (p *Panel) setVisible(v bool) {
	if p.visible == v {
		return
	}
	p.visible = v
	for _, fn := range p.onVis {
		fn(v)
	}
}
