package gallery

import (
	"time"
)

type Time struct {
	Time   time.Time
	Dt     time.Duration
	Frames uint64

	now func() time.Time
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(newTime(time.Now))
	app.UseSystem(
		System(timeSystem).
			InStage(PreUpdate).
			RunAlways(),
	)
}

func newTime(now func() time.Time) *Time {
	return &Time{Time: now(), now: now}
}

func timeSystem(t *Time) {
	now := t.now()
	t.Dt = now.Sub(t.Time)
	t.Time = now
	t.Frames++
}
