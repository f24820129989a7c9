// Package recorder turns the driver's raw UI event stream into ordered
// Step records with DOM/screenshot artifacts. Events arrive on a bounded
// channel and artifact capture runs on a background worker, so nothing
// here ever blocks page rendering or input delivery.
package recorder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/entity"
)

// Capturer takes visual artifacts for a step. *browser.Service satisfies it.
type Capturer interface {
	CaptureScreenshot(path string) error
	CaptureDOMSnapshot(path string) error
}

// Sink receives finished steps. *bundle.Writer satisfies it.
type Sink interface {
	AppendStep(entity.Step) error
}

// Paths maps step artifacts to bundle-relative and absolute locations.
// *bundle.Writer satisfies it.
type Paths interface {
	ScreenshotPath(seq int64, kind entity.StepKind) string
	DOMPath(seq int64) string
	Abs(rel string) string
}

// Options tune capture behavior.
type Options struct {
	// ScrollQuiet is the quiet period after which coalesced scroll input
	// becomes one step.
	ScrollQuiet time.Duration
	// ScreenshotThrottle is the minimum gap between two screenshots.
	ScreenshotThrottle time.Duration
}

type job struct {
	step     entity.Step
	wantShot bool
	wantDOM  bool
}

// Recorder assigns sequence numbers, coalesces scroll noise and schedules
// artifact capture. One goroutine owns the event loop; one worker consumes
// artifact jobs.
type Recorder struct {
	events chan entity.RawEvent
	jobs   chan job

	sink  Sink
	cap   Capturer
	paths Paths
	opts  Options
	log   *zap.SugaredLogger

	seq      int64
	lastTS   time.Time
	lastShot time.Time

	pendingScroll *entity.RawEvent
	scrollTimer   *time.Timer

	wg sync.WaitGroup
}

// New builds a recorder. Run must be called before events are handled.
func New(sink Sink, cap Capturer, paths Paths, opts Options, log *zap.SugaredLogger) *Recorder {
	if opts.ScrollQuiet <= 0 {
		opts.ScrollQuiet = 250 * time.Millisecond
	}
	if opts.ScreenshotThrottle <= 0 {
		opts.ScreenshotThrottle = 500 * time.Millisecond
	}
	return &Recorder{
		events: make(chan entity.RawEvent, 256),
		jobs:   make(chan job, 64),
		sink:   sink,
		cap:    cap,
		paths:  paths,
		opts:   opts,
		log:    log,
	}
}

// Handle enqueues one raw event. Safe to call from event-poll goroutines.
func (r *Recorder) Handle(ev entity.RawEvent) {
	select {
	case r.events <- ev:
	default:
		// Dropping UI events beats stalling the producer; the step log
		// stays consistent either way.
		r.log.Warnw("event buffer full, dropping event", "kind", ev.Kind)
	}
}

// Run consumes events until ctx is cancelled, then drains: the pending
// scroll is flushed and every queued artifact job completes before return.
func (r *Recorder) Run(ctx context.Context) {
	r.wg.Add(1)
	go r.artifactWorker()

	r.scrollTimer = time.NewTimer(r.opts.ScrollQuiet)
	if !r.scrollTimer.Stop() {
		<-r.scrollTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			r.drainEvents()
			r.flushScroll()
			close(r.jobs)
			r.wg.Wait()
			return
		case <-r.scrollTimer.C:
			r.flushScroll()
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

func (r *Recorder) handle(ev entity.RawEvent) {
	if ev.Kind == entity.StepScroll {
		// One step per quiet period, not one per pixel. The latest event
		// wins; the timer restarts on every scroll tick.
		r.pendingScroll = &ev
		if !r.scrollTimer.Stop() {
			select {
			case <-r.scrollTimer.C:
			default:
			}
		}
		r.scrollTimer.Reset(r.opts.ScrollQuiet)
		return
	}

	// A non-scroll event ends the scroll burst; flush it first so step
	// order matches interaction order.
	r.flushScroll()
	r.emit(ev)
}

// drainEvents processes events already delivered to the buffer so nothing
// the driver handed over is lost to cancellation.
func (r *Recorder) drainEvents() {
	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
		default:
			return
		}
	}
}

func (r *Recorder) flushScroll() {
	if r.pendingScroll == nil {
		return
	}
	ev := *r.pendingScroll
	r.pendingScroll = nil
	r.emit(ev)
}

func (r *Recorder) emit(ev entity.RawEvent) {
	r.seq++
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	// Timestamps must be non-decreasing in sequence order even when event
	// sources report slightly stale clocks.
	if ts.Before(r.lastTS) {
		ts = r.lastTS
	}
	r.lastTS = ts

	step := entity.Step{
		Sequence:  r.seq,
		Timestamp: ts,
		Kind:      ev.Kind,
		Target:    ev.Target,
		URL:       ev.URL,
		Value:     ev.Value,
		Key:       ev.Key,
		X:         ev.X,
		Y:         ev.Y,
	}

	wantShot := r.wantScreenshot(ev.Kind, ts)
	wantDOM := wantDOMSnapshot(ev.Kind)
	if !wantShot && !wantDOM {
		r.append(step)
		return
	}

	select {
	case r.jobs <- job{step: step, wantShot: wantShot, wantDOM: wantDOM}:
	default:
		// Worker is saturated; keep the step, skip its visuals.
		step.ArtifactError = "artifact queue full"
		r.append(step)
	}
}

// wantScreenshot skips high-frequency events entirely and throttles the rest.
func (r *Recorder) wantScreenshot(kind entity.StepKind, ts time.Time) bool {
	switch kind {
	case entity.StepKeydown, entity.StepInput, entity.StepScroll:
		return false
	}
	if ts.Sub(r.lastShot) < r.opts.ScreenshotThrottle {
		return false
	}
	r.lastShot = ts
	return true
}

func wantDOMSnapshot(kind entity.StepKind) bool {
	switch kind {
	case entity.StepClick, entity.StepInput, entity.StepContextMenu, entity.StepNavigate:
		return true
	}
	return false
}

func (r *Recorder) artifactWorker() {
	defer r.wg.Done()
	for j := range r.jobs {
		step := j.step
		if j.wantShot {
			rel := r.paths.ScreenshotPath(step.Sequence, step.Kind)
			if err := r.cap.CaptureScreenshot(r.paths.Abs(rel)); err != nil {
				// Page mid-navigation or already gone: keep the step,
				// mark it as having no visual artifact.
				step.ArtifactError = err.Error()
			} else {
				step.Screenshot = rel
			}
		}
		if j.wantDOM {
			rel := r.paths.DOMPath(step.Sequence)
			if err := r.cap.CaptureDOMSnapshot(r.paths.Abs(rel)); err != nil {
				if step.ArtifactError == "" {
					step.ArtifactError = err.Error()
				}
			} else {
				step.DOMSnapshot = rel
			}
		}
		r.append(step)
	}
}

func (r *Recorder) append(step entity.Step) {
	if err := r.sink.AppendStep(step); err != nil {
		r.log.Warnw("step dropped by sink", "seq", step.Sequence, "err", err)
	}
}
