package core

import "time"

// Logger is the logging surface scenes use. gallery.Logger satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}

// Recorder receives per-scene counters. app.Metrics implements it on top of
// Prometheus.
type Recorder interface {
	FrameSubmitted(scene string, elapsed time.Duration)
	BuildFinished(scene string, err error)
	LiveBuffers(n int)
}

type nopRecorder struct{}

func NopRecorder() Recorder { return nopRecorder{} }

func (nopRecorder) FrameSubmitted(string, time.Duration) {}
func (nopRecorder) BuildFinished(string, error)          {}
func (nopRecorder) LiveBuffers(int)                      {}

type multiRecorder []Recorder

// Recorders fans every call out to rs in order. Nil entries are skipped.
func Recorders(rs ...Recorder) Recorder {
	var m multiRecorder
	for _, r := range rs {
		if r != nil {
			m = append(m, r)
		}
	}
	if len(m) == 0 {
		return NopRecorder()
	}
	return m
}

func (m multiRecorder) FrameSubmitted(scene string, elapsed time.Duration) {
	for _, r := range m {
		r.FrameSubmitted(scene, elapsed)
	}
}

func (m multiRecorder) BuildFinished(scene string, err error) {
	for _, r := range m {
		r.BuildFinished(scene, err)
	}
}

func (m multiRecorder) LiveBuffers(n int) {
	for _, r := range m {
		r.LiveBuffers(n)
	}
}
