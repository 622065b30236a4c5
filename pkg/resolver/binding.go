package resolver

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// State is what a Binding consumer observes
type State struct {
	URLs       []string `json:"urls"`
	Busy       bool     `json:"busy"`
	Generation uint64   `json:"generation"`
}

// Binding keeps a result list in step with a changing (ids, viewer) input.
// Each input change starts a new batch; results from superseded batches are discarded.
type Binding struct {
	resolver *Resolver

	mu     sync.Mutex
	ids    []string
	viewer string
	bound  bool
	closed bool
	state  State
	cancel context.CancelFunc
	notify chan struct{}

	wg sync.WaitGroup
}

// NewBinding creates an empty binding
func NewBinding(r *Resolver) *Binding {
	return &Binding{
		resolver: r,
		state:    State{URLs: []string{}},
		notify:   make(chan struct{}),
	}
}

// Update sets the inputs and starts a resolution when they changed.
// Returns false when ids and viewer equal the current inputs or the binding is closed.
func (b *Binding) Update(ids []string, viewer string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if b.bound && slices.Equal(b.ids, ids) && b.viewer == viewer {
		return false
	}

	if b.cancel != nil {
		b.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())

	b.ids = slices.Clone(ids)
	b.viewer = viewer
	b.bound = true
	b.cancel = cancel
	b.state.Generation++
	b.state.Busy = true

	b.wg.Add(1)
	go b.run(ctx, b.state.Generation, b.ids, viewer)

	return true
}

// State returns a snapshot
func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		URLs:       slices.Clone(b.state.URLs),
		Busy:       b.state.Busy,
		Generation: b.state.Generation,
	}
}

// Wait blocks until no batch is in flight or ctx ends, then returns the current state
func (b *Binding) Wait(ctx context.Context) (State, error) {
	for {
		b.mu.Lock()
		busy := b.state.Busy
		notify := b.notify
		b.mu.Unlock()

		if !busy {
			return b.State(), nil
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return b.State(), ctx.Err()
		}
	}
}

// Close cancels the active batch and waits for running batches to return.
// Later updates are ignored.
func (b *Binding) Close() {
	b.mu.Lock()
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Binding) run(ctx context.Context, generation uint64, ids []string, viewer string) {
	defer b.wg.Done()

	urls := b.resolver.Resolve(ctx, ids, viewer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.state.Generation {
		b.resolver.logger.Debug("Discarding superseded batch",
			zap.Uint64("generation", generation),
			zap.Uint64("current", b.state.Generation))
		return
	}

	b.state.URLs = urls
	b.state.Busy = false
	close(b.notify)
	b.notify = make(chan struct{})
}
