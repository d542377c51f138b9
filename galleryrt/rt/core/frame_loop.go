package core

// FrameLoop queues callbacks for the next display tick, the way
// requestAnimationFrame does. Callbacks requested while a tick is running
// wait for the following tick. Not safe for concurrent use: the window loop
// owns it.
type FrameLoop struct {
	pending []func()
	ticks   uint64
}

func NewFrameLoop() *FrameLoop {
	return &FrameLoop{}
}

func (f *FrameLoop) RequestFrame(cb func()) {
	f.pending = append(f.pending, cb)
}

// Tick runs every callback queued before the call.
func (f *FrameLoop) Tick() {
	f.ticks++
	batch := f.pending
	f.pending = nil
	for _, cb := range batch {
		cb()
	}
}

// Pending reports how many callbacks wait for the next tick.
func (f *FrameLoop) Pending() int {
	return len(f.pending)
}

func (f *FrameLoop) Ticks() uint64 {
	return f.ticks
}
