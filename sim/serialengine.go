package sim

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sync"

	log "github.com/sirupsen/logrus"
)

var packageLogger = log.WithField("package", "sim")

// An Engine keeps the discrete event simulation running.
type Engine interface {
	Hookable

	// Schedule registers an event to happen in the future.
	Schedule(e Event)

	// Run processes all the events until no event is left or the context is
	// cancelled.
	Run(ctx context.Context) error

	// CurrentTime returns the time of the event being handled.
	CurrentTime() VTimeInSec

	// Pause temporarily stops the engine from triggering more events.
	Pause()

	// Continue resumes a paused engine.
	Continue()
}

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	HookableBase

	timeLock sync.RWMutex
	time     VTimeInSec
	queue    EventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)
	e.queue = NewEventQueue()

	return e
}

// Schedule registers an event to happen in the future. Scheduling an event
// in the past is a programming error and panics.
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		packageLogger.Panicf(
			"scheduling %s @ %.10f, earlier than current time %.10f",
			reflect.TypeOf(evt), evt.Time(), now)
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	defer e.timeLock.RUnlock()

	return e.time
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	defer e.timeLock.Unlock()

	e.time = t
}

// Run processes all the events scheduled in the SerialEngine.
func (e *SerialEngine) Run(ctx context.Context) error {
	return e.RunUntil(ctx, VTimeInSec(math.Inf(1)))
}

// RunUntil processes events that happen no later than end. Later events stay
// in the queue.
func (e *SerialEngine) RunUntil(ctx context.Context, end VTimeInSec) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.queue.Len() == 0 || e.queue.Peek().Time() > end {
			return nil
		}

		if err := e.runOne(); err != nil {
			return err
		}
	}
}

func (e *SerialEngine) runOne() error {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	evt := e.queue.Pop()
	e.writeNow(evt.Time())

	hookCtx := HookCtx{
		Domain: e,
		Now:    evt.Time(),
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := evt.Handler().Handle(evt)
	if err != nil {
		return fmt.Errorf("handling %s @ %.10f: %w",
			reflect.TypeOf(evt), evt.Time(), err)
	}

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return nil
}

// Pending returns the number of events waiting in the queue.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return e.readNow()
}
