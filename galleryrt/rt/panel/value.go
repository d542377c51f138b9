package panel

import "fmt"

type Kind int

const (
	KindCheckbox Kind = iota
	KindNumber
	KindSlider
	KindColor
	KindButton
	KindCursor
	KindKey
)

func (k Kind) String() string {
	switch k {
	case KindCheckbox:
		return "checkbox"
	case KindNumber:
		return "number"
	case KindSlider:
		return "slider"
	case KindColor:
		return "color"
	case KindButton:
		return "button"
	case KindCursor:
		return "cursor"
	case KindKey:
		return "key"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Cursor is a pointer position in surface pixels.
type Cursor struct {
	X, Y     float32
	Dragging bool
}

// Value is a widget value tagged by Kind. Only the field matching Kind is
// meaningful: Bool for checkbox, button and key, Int for number, Float for
// slider, Color for color, Cursor for cursor.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int
	Float  float32
	Color  [4]float32
	Cursor Cursor
}

func CheckboxValue(b bool) Value    { return Value{Kind: KindCheckbox, Bool: b} }
func NumberValue(n int) Value       { return Value{Kind: KindNumber, Int: n} }
func SliderValue(f float32) Value   { return Value{Kind: KindSlider, Float: f} }
func ColorValue(c [4]float32) Value { return Value{Kind: KindColor, Color: c} }
func ButtonValue(b bool) Value      { return Value{Kind: KindButton, Bool: b} }
func CursorValue(c Cursor) Value    { return Value{Kind: KindCursor, Cursor: c} }
func KeyValue(pressed bool) Value   { return Value{Kind: KindKey, Bool: pressed} }

func (v Value) String() string {
	switch v.Kind {
	case KindCheckbox, KindButton, KindKey:
		return fmt.Sprintf("%s(%t)", v.Kind, v.Bool)
	case KindNumber:
		return fmt.Sprintf("number(%d)", v.Int)
	case KindSlider:
		return fmt.Sprintf("slider(%g)", v.Float)
	case KindColor:
		return fmt.Sprintf("color(%g, %g, %g, %g)", v.Color[0], v.Color[1], v.Color[2], v.Color[3])
	case KindCursor:
		return fmt.Sprintf("cursor(%g, %g, dragging=%t)", v.Cursor.X, v.Cursor.Y, v.Cursor.Dragging)
	}
	return v.Kind.String()
}
