package viewer

import (
	"sync"
	"time"
)

// StageNames labels the four processing stages shown while materials are generated.
var StageNames = [4]string{
	"Analyzing documents",
	"Extracting key information",
	"Generating study materials",
	"Finalizing content",
}

// ProcessingOverlay runs the cosmetic percentage clock shown during
// processing. Its clock is independent of the real requests: it climbs one
// point per tick and signals completion once it reaches 100.
type ProcessingOverlay struct {
	mu         sync.Mutex
	tick       time.Duration
	stage      int
	percent    int
	done       bool
	stopped    bool
	stop       chan struct{}
	stopOnce   sync.Once
	onTick     func(percent int)
	onComplete func()
}

func NewProcessingOverlay(tick time.Duration, onTick func(percent int), onComplete func()) *ProcessingOverlay {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	return &ProcessingOverlay{
		tick:       tick,
		stop:       make(chan struct{}),
		onTick:     onTick,
		onComplete: onComplete,
	}
}

// Start runs the clock in its own goroutine until it completes or Stop is called.
func (o *ProcessingOverlay) Start() {
	go o.run()
}

func (o *ProcessingOverlay) run() {
	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			if !o.Advance() {
				return
			}
		}
	}
}

// Advance moves the clock one point. It reports whether the clock is still running.
func (o *ProcessingOverlay) Advance() bool {
	o.mu.Lock()
	if o.done || o.stopped {
		o.mu.Unlock()
		return false
	}
	o.percent++
	percent := o.percent
	finished := percent >= 100
	if finished {
		o.done = true
	}
	o.mu.Unlock()

	if o.onTick != nil {
		o.onTick(percent)
	}
	if finished && o.onComplete != nil {
		o.onComplete()
	}
	return !finished
}

// Stop halts the clock without signalling completion.
func (o *ProcessingOverlay) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
	o.stopOnce.Do(func() { close(o.stop) })
}

func (o *ProcessingOverlay) SetStage(stage int) {
	if stage < 0 || stage >= len(StageNames) {
		return
	}
	o.mu.Lock()
	o.stage = stage
	o.mu.Unlock()
}

type OverlayState struct {
	Stage     int    `json:"stage"`
	StageName string `json:"stageName"`
	Percent   int    `json:"percent"`
	Completed bool   `json:"completed"`
}

func (o *ProcessingOverlay) State() OverlayState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OverlayState{
		Stage:     o.stage,
		StageName: StageNames[o.stage],
		Percent:   o.percent,
		Completed: o.done,
	}
}
