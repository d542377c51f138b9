package panel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func particlesPanel() *Panel {
	p := New("particles")
	p.AddButton("refresh", "Refresh")
	p.AddCheckbox("debug", "Debug", false)
	p.AddNumber("amount", "Amount", 100, 0, 100000)
	p.AddSlider("size", "Size", 0.01, 0.001, 0.3, 0.001)
	p.AddColor("color", "Particles color", [4]float32{0.72, 0.54, 0.33, 0.9})
	p.AddCursor("cursor")
	p.AddKey("w", "W")
	return p
}

func TestParam_ListenAndUnsubscribe(t *testing.T) {
	p := particlesPanel()
	var got []int
	stop := p.Get("amount").Listen(func(v Value) { got = append(got, v.Int) })

	require.NoError(t, p.Set("amount", NumberValue(500)))
	// Same value does not notify.
	require.NoError(t, p.Set("amount", NumberValue(500)))
	stop()
	require.NoError(t, p.Set("amount", NumberValue(50)))

	assert.Equal(t, []int{500}, got)
	assert.Equal(t, 50, p.Get("amount").Int())
}

func TestParam_ListenersRunInOrder(t *testing.T) {
	p := particlesPanel()
	var order []string
	p.Get("debug").Listen(func(Value) { order = append(order, "a") })
	p.Get("debug").Listen(func(Value) { order = append(order, "b") })
	require.NoError(t, p.Set("debug", CheckboxValue(true)))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestParam_SetRejectsWrongKind(t *testing.T) {
	p := particlesPanel()
	err := p.Set("amount", SliderValue(3))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Equal(t, 100, p.Get("amount").Int())
}

func TestParam_SetRejectsOutOfRange(t *testing.T) {
	p := particlesPanel()
	assert.ErrorIs(t, p.Set("amount", NumberValue(-1)), ErrOutOfRange)
	assert.ErrorIs(t, p.Set("size", SliderValue(0.5)), ErrOutOfRange)
	assert.ErrorIs(t, p.Set("color", ColorValue([4]float32{2, 0, 0, 1})), ErrOutOfRange)
	assert.ErrorIs(t, p.Set("nope", NumberValue(1)), ErrUnknownParam)
}

func TestParam_ButtonPressAlwaysNotifies(t *testing.T) {
	p := particlesPanel()
	presses := 0
	p.Get("refresh").Listen(func(Value) { presses++ })
	require.NoError(t, p.Get("refresh").Press())
	require.NoError(t, p.Get("refresh").Press())
	assert.Equal(t, 2, presses)
	assert.False(t, p.Get("refresh").Bool())
	assert.ErrorIs(t, p.Get("amount").Press(), ErrKindMismatch)
}

func TestParam_CursorNotifiesOnEveryMove(t *testing.T) {
	p := particlesPanel()
	moves := 0
	p.Get("cursor").Listen(func(Value) { moves++ })
	c := CursorValue(Cursor{X: 10, Y: 20})
	require.NoError(t, p.Set("cursor", c))
	require.NoError(t, p.Set("cursor", c))
	assert.Equal(t, 2, moves)
}

func TestPanel_DataAndVisibility(t *testing.T) {
	p := particlesPanel()
	data := p.Data()
	assert.Equal(t, NumberValue(100), data["amount"])
	assert.Equal(t, KindColor, data["color"].Kind)
	assert.Len(t, p.Find(KindKey), 1)

	var seen []bool
	p.OnVisibility(func(v bool) { seen = append(seen, v) })
	p.Show()
	p.Show()
	p.Hide()
	assert.Equal(t, []bool{true, false}, seen)
	assert.False(t, p.Visible())
}

func TestPanel_DuplicateParamPanics(t *testing.T) {
	p := New("x")
	p.AddCheckbox("a", "A", false)
	assert.Panics(t, func() { p.AddCheckbox("a", "A", true) })
	assert.Panics(t, func() { p.AddNumber("n", "N", 10, 0, 5) })
}

func TestParseOverrides(t *testing.T) {
	p := particlesPanel()
	data := []byte(`
[particles]
amount = 500
size = 0.02
debug = true
color = [0.1, 0.2, 0.3, 1]

[unknown]
x = 1
`)
	changes, err := ParseOverrides(data, map[string]*Panel{"particles": p})
	require.NoError(t, err)
	require.Len(t, changes, 4)
	assert.Equal(t, Change{Panel: "particles", Param: "amount", Value: NumberValue(500)}, changes[0])
	assert.Equal(t, ColorValue([4]float32{0.1, 0.2, 0.3, 1}), changes[1].Value)
	assert.Equal(t, CheckboxValue(true), changes[2].Value)
	assert.InDelta(t, 0.02, changes[3].Value.Float, 1e-6)
}

func TestParseOverrides_Errors(t *testing.T) {
	panels := map[string]*Panel{"particles": particlesPanel()}

	_, err := ParseOverrides([]byte("[particles]\nmissing = 1\n"), panels)
	assert.ErrorIs(t, err, ErrUnknownParam)

	_, err = ParseOverrides([]byte("[particles]\namount = 1.5\n"), panels)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = ParseOverrides([]byte("[particles]\ncursor = true\n"), panels)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = ParseOverrides([]byte("[particles\n"), panels)
	assert.Error(t, err)
}

func TestFileSource_LoadThenApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.toml")
	require.NoError(t, os.WriteFile(path, []byte("[particles]\namount = 250\nsize = 0.9\n"), 0o644))

	p := particlesPanel()
	notified := 0
	p.Get("amount").Listen(func(Value) { notified++ })

	src := NewFileSource(path, nil)
	src.Bind(p)
	require.NoError(t, src.Load())
	assert.Equal(t, 2, src.Pending())
	assert.Equal(t, 100, p.Get("amount").Int(), "nothing applies before Apply")

	errs := src.Apply()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrOutOfRange)
	assert.Equal(t, 250, p.Get("amount").Int())
	assert.Equal(t, 1, notified)
	assert.Equal(t, 0, src.Pending())
	assert.NoError(t, src.Close())
}
