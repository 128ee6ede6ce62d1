// Package pager accumulates cursor-paginated results for one query key at a
// time, the way an infinite-scroll list consumes the catalog API.
package pager

import (
	"context"
	"slices"
	"sync"
)

// Key identifies a listing. Changing any field starts the listing over.
type Key struct {
	Slug   string
	Search string
	Group  string
	Stock  string
	Sort   string
}

// Idle reports whether the key names nothing to fetch.
func (k Key) Idle() bool { return k.Slug == "" && k.Search == "" }

// Page is one fetched page. A nil Cursor marks the last page.
type Page[T any] struct {
	Items  []T
	Cursor *string
}

// FetchFunc loads the page at cursor for key. A nil cursor asks for the first page.
type FetchFunc[T any] func(ctx context.Context, key Key, cursor *string) (Page[T], error)

type State int

const (
	StateIdle State = iota
	StateLoadingFirstPage
	StateReady
	StateLoadingNextPage
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingFirstPage:
		return "loading_first_page"
	case StateReady:
		return "ready"
	case StateLoadingNextPage:
		return "loading_next_page"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Pager holds the pages fetched so far for the current key. Fetches run in
// the background; results that arrive for a superseded key are discarded.
type Pager[T any] struct {
	base  context.Context
	fetch FetchFunc[T]

	mu     sync.Mutex
	key    Key
	gen    uint64
	state  State
	pages  []Page[T]
	err    error
	cancel context.CancelFunc
	done   chan struct{}

	wg sync.WaitGroup
}

// New returns an idle Pager. Fetch contexts derive from ctx.
func New[T any](ctx context.Context, fetch FetchFunc[T]) *Pager[T] {
	return &Pager[T]{base: ctx, fetch: fetch}
}

// SetKey switches the listing to key. The same key is a no-op; a different
// one cancels any in-flight fetch, drops accumulated pages and starts over.
func (p *Pager[T]) SetKey(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key == p.key && p.state != StateIdle {
		return
	}
	p.key = key
	p.restartLocked()
}

// Refresh discards everything and reloads the first page for the current key.
// It is the way out of StateError.
func (p *Pager[T]) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restartLocked()
}

func (p *Pager[T]) restartLocked() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel, p.done = nil, nil
	p.pages = nil
	p.err = nil
	if p.key.Idle() {
		p.state = StateIdle
		return
	}
	p.startLocked(nil, StateLoadingFirstPage)
}

// FetchNextPage requests the page after the last one. It does nothing, and
// returns false, unless the pager is ready and the last page had a cursor.
func (p *Pager[T]) FetchNextPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady || !p.hasNextLocked() {
		return false
	}
	cursor := *p.pages[len(p.pages)-1].Cursor
	p.startLocked(&cursor, StateLoadingNextPage)
	return true
}

func (p *Pager[T]) startLocked(cursor *string, state State) {
	ctx, cancel := context.WithCancel(p.base)
	done := make(chan struct{})
	gen, key := p.gen, p.key

	p.state = state
	p.cancel = cancel
	p.done = done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(done)
		defer cancel()

		page, err := p.fetch(ctx, key, cursor)

		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			return
		}
		p.cancel, p.done = nil, nil
		if err != nil {
			p.state = StateError
			p.err = err
			return
		}
		p.pages = append(p.pages, page)
		p.state = StateReady
	}()
}

func (p *Pager[T]) hasNextLocked() bool {
	return len(p.pages) > 0 && p.pages[len(p.pages)-1].Cursor != nil
}

// HasNextPage reports whether the last fetched page had a cursor.
func (p *Pager[T]) HasNextPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasNextLocked()
}

func (p *Pager[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pager[T]) Key() Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

// Err is the error that moved the pager into StateError, if any.
func (p *Pager[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Pages is the number of pages fetched for the current key.
func (p *Pager[T]) Pages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

// Items concatenates every fetched page in fetch order.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []T
	for _, page := range p.pages {
		out = append(out, page.Items...)
	}
	return slices.Clip(out)
}

// Wait blocks until no fetch for the current key is in flight.
func (p *Pager[T]) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		done := p.done
		p.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Collect fetches every remaining page and returns all items.
func (p *Pager[T]) Collect(ctx context.Context) ([]T, error) {
	for {
		if err := p.Wait(ctx); err != nil {
			return nil, err
		}
		if err := p.Err(); err != nil {
			return nil, err
		}
		if !p.FetchNextPage() {
			// a fetch may have been started between Wait and here
			if p.State() == StateLoadingFirstPage || p.State() == StateLoadingNextPage {
				continue
			}
			return p.Items(), nil
		}
	}
}

// Close cancels in-flight work and waits for every fetch goroutine, stale
// ones included, to return.
func (p *Pager[T]) Close() {
	p.mu.Lock()
	p.gen++
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel, p.done = nil, nil
	if p.state == StateLoadingFirstPage || p.state == StateLoadingNextPage {
		p.state = StateIdle
	}
	p.mu.Unlock()
	p.wg.Wait()
}
