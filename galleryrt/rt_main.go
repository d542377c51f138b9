package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/gallery"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	scene := flag.String("scene", "", "Scene shown first (particles, balls, cube, grid, triangle, text)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	workgroupSize := flag.Int("workgroup-size", 0, "Compute workgroup size, a power of two up to 256")
	flag.Parse()

	cfg, err := gallery.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Log.Debug = *debug
		case "scene":
			cfg.Gallery.Scene = *scene
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		case "workgroup-size":
			cfg.GPU.WorkgroupSize = *workgroupSize
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	gallery.NewAppBuilder().
		UseStates(gallery.StateBooting, gallery.StateClosing).
		UseModule(
			gallery.LoggingModule{Prefix: cfg.Log.Prefix, Debug: cfg.Log.Debug},
			gallery.TimeModule{},
			gallery.NewWindowModule(cfg.Window, cfg.GPU.Power),
			gallery.InputModule{},
			gallery.MetricsModule{Addr: cfg.Metrics.Addr},
			gallery.GalleryModule{Config: cfg},
		).
		Build().
		Run()
}
