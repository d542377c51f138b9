package gallery

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

func TestApp_changeState(t *testing.T) {
	app := newApp()
	app.stateful = true
	app.initialState = StateBooting
	app.state = StateBooting
	app.finalState = StateClosing

	app.changeState(StateRunning)
	if app.nextState != StateRunning {
		t.Errorf("The nextState should be set correctly.")
	}
	if !app.stateTransitioning {
		t.Errorf("The stateTransitioning flag should be true.")
	}

	app.executeChangeState(StateRunning)
	if app.state != StateRunning {
		t.Errorf("The app state should change correctly.")
	}
}

func TestApp_addResources(t *testing.T) {
	app := newApp()

	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")

	require.Panics(t, func() { app.addResources(MockResource2{}) })
}

func TestApp_Resource(t *testing.T) {
	app := newApp()
	app.addResources(NewMockResource1("one"))

	r, ok := Resource[MockResource1](app)
	require.True(t, ok)
	assert.Equal(t, "one", r.name)

	_, ok = Resource[MockResource2](app)
	assert.False(t, ok)
}

type injectModule struct {
	seen *[]string
}

func (m injectModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(NewMockResource1("first"), NewMockResource2("second"))
	app.UseSystem(System(func(r1 *MockResource1, r2 *MockResource2, c *Commands) {
		*m.seen = append(*m.seen, fmt.Sprintf("%s+%s:%v", r1.name, r2.name, c != nil))
	}))
}

func TestApp_SystemResourceInjection(t *testing.T) {
	var seen []string
	app := NewAppBuilder().UseModule(injectModule{seen: &seen}).Build()

	assert.False(t, app.Step())
	assert.False(t, app.Step())
	assert.Equal(t, []string{"first+second:true", "first+second:true"}, seen)
}

func TestApp_UnresolvedDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(*MockResource1) {}))

	assert.Panics(t, func() { app.Step() })
}

func TestApp_StagesRunInOrder(t *testing.T) {
	var order []string
	app := NewAppBuilder().Build()
	custom := Stage{Name: "Simulate"}
	app.UseStage(custom, AfterStage(Update))

	for _, s := range []Stage{Render, custom, PreUpdate, Update} {
		name := s.Name
		app.UseSystem(System(func() { order = append(order, name) }).InStage(s))
	}
	app.Step()

	assert.Equal(t, []string{"PreUpdate", "Update", "Simulate", "Render"}, order)
	assert.Panics(t, func() { app.UseStage(Stage{Name: "X"}, BeforeStage(Stage{Name: "Missing"})) })
}

func TestApp_StatePhases(t *testing.T) {
	var log []string
	record := func(s string) func() {
		return func() { log = append(log, s) }
	}
	app := NewAppBuilder().UseStates(StateBooting, StateClosing).Build()
	app.UseSystem(System(record("boot:enter")).InState(OnEnter(StateBooting)))
	app.UseSystem(System(func(cmd *Commands) {
		log = append(log, "boot:execute")
		cmd.ChangeState(StateRunning)
	}).InState(OnExecute(StateBooting)))
	app.UseSystem(System(record("boot:exit")).InState(OnExit(StateBooting)))
	app.UseSystem(System(record("run:enter")).InState(OnEnter(StateRunning)))
	app.UseSystem(System(func(cmd *Commands) {
		log = append(log, "run:execute")
		cmd.ChangeState(StateClosing)
	}).InState(OnExecute(StateRunning)))
	app.UseSystem(System(record("close:enter")).InState(OnEnter(StateClosing)))
	app.UseSystem(System(record("close:exit")).InState(OnExit(StateClosing)))
	app.UseSystem(System(record("always")).InState(Always()).InStage(PostRender))

	assert.False(t, app.Step())
	assert.Equal(t, StateRunning, app.State())
	assert.True(t, app.Step())
	assert.Equal(t, StateClosing, app.State())

	assert.Equal(t, []string{
		"boot:enter",
		"boot:execute", "always", "boot:exit", "run:enter",
		"run:execute", "always", "close:enter", "close:exit",
	}, log)
}

func TestApp_StatefulSystemInStatelessAppPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	assert.Panics(t, func() {
		app.UseSystem(System(func() {}).InState(OnEnter(StateRunning)))
	})
}

func TestApp_LoggerFallsBackToNop(t *testing.T) {
	var nilApp *App
	assert.NotNil(t, nilApp.Logger())

	app := NewAppBuilder().Build()
	assert.False(t, app.Logger().DebugEnabled())

	l := NewDefaultLogger("test", true)
	app.addResources(l)
	assert.Same(t, l, app.Logger())
}
