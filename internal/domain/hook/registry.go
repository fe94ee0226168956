package hook

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Registry dispatches events to handlers registered against each Point.
// Static handlers are added once at startup; dynamic handlers (loaded from
// HOOK.toml manifests) are swapped in atomically as a whole generation so a
// dispatch in flight never observes a half-updated list.
type Registry struct {
	mu      sync.Mutex
	static  map[Point][]Handler
	dynamic atomic.Pointer[map[Point][]Handler]
	logger  *zap.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		static: make(map[Point][]Handler),
		logger: logger.With(zap.String("component", "hook-registry")),
	}
	empty := make(map[Point][]Handler)
	r.dynamic.Store(&empty)
	return r
}

// AddStatic registers a compiled-in handler. Intended for startup wiring
// only — not safe to call concurrently with Dispatch.
func (r *Registry) AddStatic(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[point(h)] = append(r.static[point(h)], h)
}

// point is a helper so AddStatic can be called with a handler that already
// knows which point(s) it serves via a wrapper; most callers instead use
// AddStaticAt.
func point(h Handler) Point {
	if ph, ok := h.(interface{ Point() Point }); ok {
		return ph.Point()
	}
	return ""
}

// AddStaticAt registers a compiled-in handler for a specific point.
func (r *Registry) AddStaticAt(p Point, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[p] = append(r.static[p], h)
}

// ReplaceDynamic atomically swaps the entire dynamic (manifest-loaded) hook
// set. Called by the manifest loader after each reload; a malformed
// manifest is skipped by the loader and the set is replaced with the hooks
// that did load, so the skipped hook's previous version is dropped too
// (fail-open).
func (r *Registry) ReplaceDynamic(byPoint map[Point][]Handler) {
	cp := make(map[Point][]Handler, len(byPoint))
	for p, hs := range byPoint {
		cp[p] = hs
	}
	r.dynamic.Store(&cp)
}

// handlersFor returns the combined, priority-ordered handler list for a
// point: higher Priority first, ties broken by Name ascending, static and
// dynamic handlers merged into one ordering (origin does not affect order).
func (r *Registry) handlersFor(p Point) []Handler {
	r.mu.Lock()
	staticList := append([]Handler(nil), r.static[p]...)
	r.mu.Unlock()

	dyn := r.dynamic.Load()
	all := append(staticList, (*dyn)[p]...)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Priority() != all[j].Priority() {
			return all[i].Priority() > all[j].Priority()
		}
		return all[i].Name() < all[j].Name()
	})
	return all
}

// Dispatch runs every handler registered at ev.Point in priority order.
// For a Void point the return value is the original ev.Value, unaffected
// by handler output. For a Modifying point each handler's returned Value
// becomes the input to the next handler, and the final Value is returned.
// A handler panic is caught, logged, and treated as Continue(unchanged) —
// one misbehaving hook never takes down the turn.
func (r *Registry) Dispatch(ctx context.Context, ev Event) (interface{}, error) {
	current := ev.Value
	for _, h := range r.handlersFor(ev.Point) {
		verdict := r.runSafely(ctx, h, Event{Point: ev.Point, SessionID: ev.SessionID, Step: ev.Step, Value: current})
		if verdict.Cancelled {
			return current, &CancelledError{Point: ev.Point, Handler: h.Name(), Reason: verdict.Reason}
		}
		if h.Kind() == Modifying {
			current = verdict.Value
		}
	}
	return current, nil
}

func (r *Registry) runSafely(ctx context.Context, h Handler, ev Event) (verdict Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("hook panicked, continuing",
				zap.String("hook", h.Name()),
				zap.String("point", string(ev.Point)),
				zap.Any("recover", rec),
			)
			verdict = Continue(ev.Value)
		}
	}()
	return h.Run(ctx, ev)
}

// Handlers returns a snapshot of the effective ordering at a point, for
// introspection/tests.
func (r *Registry) Handlers(p Point) []string {
	names := make([]string, 0)
	for _, h := range r.handlersFor(p) {
		names = append(names, h.Name())
	}
	return names
}
