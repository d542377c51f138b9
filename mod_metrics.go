package gallery

import (
	"context"

	rtapp "github.com/gekko3d/gallery/galleryrt/rt/app"
)

// Telemetry holds the Prometheus collectors scenes report to.
type Telemetry struct {
	Metrics *rtapp.Metrics
	Addr    string

	stop context.CancelFunc
}

// Stop shuts the /metrics server down, if one was started.
func (t *Telemetry) Stop() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

// MetricsModule installs Telemetry and serves /metrics when Addr is set.
// Install it before GalleryModule so the scenes pick the recorder up.
type MetricsModule struct {
	Addr string
}

func (m MetricsModule) Install(app *App, cmd *Commands) {
	t := &Telemetry{Metrics: rtapp.NewMetrics(), Addr: m.Addr}
	if m.Addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		t.stop = cancel
		t.Metrics.Serve(ctx, m.Addr, app.Logger())
	}
	cmd.AddResources(t)

	if app.stateful {
		app.UseSystem(
			System(stopMetricsSystem).
				InState(OnEnter(StateClosing)).
				InStage(PostRender),
		)
	}
}

func stopMetricsSystem(t *Telemetry) {
	t.Stop()
}
