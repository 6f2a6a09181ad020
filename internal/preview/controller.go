// Package preview implements the live preview controller: the top-level
// orchestrator that turns edit and theme-change events into rendered,
// sanitized artifacts for the presentation surface.
//
// The controller is a small state machine. An incoming event (re)starts a
// debounce timer; when the timer fires the controller captures a
// monotonically increasing sequence number, classifies the source, consults
// the cache, and dispatches to the backend registry on a miss. A completed
// render is surfaced only while its sequence number is still the latest one
// issued, the staleness guard that makes rapid typing race-safe without
// cancelling in-flight subprocess or HTTP work.
//
// The controller never holds a reference to concrete presentation objects;
// it emits typed events on an outbound channel.
package preview

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"diaview/internal/backend"
	"diaview/internal/cache"
	"diaview/internal/classify"
	"diaview/internal/logging"
	"diaview/internal/types"
)

// EventState is the controller's outward-visible state.
type EventState int

const (
	// StateLoading precedes a dispatched render.
	StateLoading EventState = iota
	// StateResult carries a rendered artifact.
	StateResult
	// StateError carries a render failure's diagnostic.
	StateError
)

// String returns the string representation of the event state.
func (s EventState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateResult:
		return "result"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one update for the presentation surface.
type Event struct {
	State   EventState
	Seq     uint64
	Format  types.OutputFormat
	Content []byte
	Message string
}

// SelectFallback settles an unresolved classification, typically by asking
// the user. The choice applies to the current render only; it is never
// persisted as a new mapping. Returning false leaves the source
// unclassified.
type SelectFallback func(src types.DiagramSource) (types.ClassificationResult, bool)

// Controller orchestrates one preview session.
type Controller struct {
	classifier *classify.Classifier
	cache      *cache.RenderCache
	registry   *backend.Registry
	logger     logging.Logger
	fallback   SelectFallback
	debounce   time.Duration

	seq    atomic.Uint64
	events chan Event

	mutex   sync.Mutex
	timer   *time.Timer
	pending *types.DiagramSource
	last    *types.DiagramSource
	theme   string
	closed  bool
}

// NewController creates a preview controller. fallback may be nil, in which
// case unclassifiable sources settle to an error event.
func NewController(
	classifier *classify.Classifier,
	renderCache *cache.RenderCache,
	registry *backend.Registry,
	logger logging.Logger,
	debounce time.Duration,
	theme string,
	fallback SelectFallback,
) *Controller {
	return &Controller{
		classifier: classifier,
		cache:      renderCache,
		registry:   registry,
		logger:     logger.WithComponent("preview_controller"),
		fallback:   fallback,
		debounce:   debounce,
		theme:      theme,
		events:     make(chan Event, 16),
	}
}

// Events returns the outbound event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// OnSourceChange schedules a render for the changed source. A change while
// one is already scheduled restarts the debounce timer rather than stacking
// requests.
func (c *Controller) OnSourceChange(src types.DiagramSource) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return
	}

	c.pending = &src
	c.restartTimerLocked()
}

// OnThemeChange switches the session theme and re-renders the current
// source. The cache is keyed by content, not theme, so it is discarded
// wholesale to avoid serving artifacts rendered under the old theme.
func (c *Controller) OnThemeChange(theme string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed || theme == c.theme {
		return
	}

	c.theme = theme
	c.cache.Clear()

	if c.pending != nil || c.last != nil {
		c.restartTimerLocked()
	}
}

// restartTimerLocked (re)arms the debounce timer. Caller holds the mutex.
func (c *Controller) restartTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, c.fire)
}

// fire runs when the debounce timer settles: it captures the next sequence
// number and dispatches the render off the timer goroutine.
func (c *Controller) fire() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	src := c.pending
	if src == nil {
		src = c.last
	}
	c.pending = nil
	c.last = src
	theme := c.theme
	c.mutex.Unlock()

	if src == nil {
		return
	}

	seq := c.seq.Add(1)
	c.emit(Event{State: StateLoading, Seq: seq})

	go c.render(seq, *src, theme)
}

// render executes one request end to end and settles it to a result or an
// error event, subject to the staleness guard.
func (c *Controller) render(seq uint64, src types.DiagramSource, theme string) {
	ctx := context.Background()

	classification, ok := c.classifier.Classify(src.Path, src.Text)
	if !ok && c.fallback != nil {
		classification, ok = c.fallback(src)
	}
	if !ok {
		c.emit(Event{
			State:   StateError,
			Seq:     seq,
			Message: fmt.Sprintf("cannot determine diagram type of %s; select a backend manually", src.Path),
		})
		return
	}

	key := types.CacheKey(src.Path, src.Text)
	if result, hit := c.cache.Get(key); hit {
		c.logger.Debug(ctx, "cache hit", "path", src.Path)
		c.emitResult(seq, result)
		return
	}

	result := c.registry.Render(ctx, classification.Backend, types.RenderRequest{
		Content:  src.Text,
		Type:     classification.Type,
		Theme:    theme,
		CacheKey: key,
	})

	if result.IsError() {
		c.emit(Event{State: StateError, Seq: seq, Message: result.Message})
		return
	}

	c.cache.Set(key, result)
	c.emitResult(seq, result)
}

// emitResult surfaces a successful render.
func (c *Controller) emitResult(seq uint64, result types.RenderResult) {
	c.emit(Event{
		State:   StateResult,
		Seq:     seq,
		Format:  result.Format(),
		Content: result.Payload,
	})
}

// emit delivers an event unless it is stale or the session is closed. A
// full channel evicts its oldest buffered event to make room; the newest
// event is the one the consumer must not miss.
func (c *Controller) emit(ev Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if latest := c.seq.Load(); ev.Seq != latest {
		c.logger.Debug(context.Background(), "discarding stale result",
			"seq", ev.Seq, "latest", latest)
		return
	}

	if c.closed {
		return
	}

	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

// Close tears down the session: the debounce timer stops, the backends are
// disposed, the cache is cleared, and the event channel is closed. Renders
// already in flight run to completion and are then discarded.
func (c *Controller) Close() error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.events)
	c.mutex.Unlock()

	c.cache.Clear()
	return c.registry.Close()
}
