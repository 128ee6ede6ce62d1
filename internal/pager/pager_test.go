package pager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// pagedSource serves total items in pages of size, labelled with the key's slug.
type pagedSource struct {
	total, size int
	calls       atomic.Int32
	failAt      int // cursor offset that fails once, 0 disables
	failed      atomic.Bool
}

func (s *pagedSource) fetch(ctx context.Context, key Key, cursor *string) (Page[string], error) {
	s.calls.Add(1)
	start := 0
	if cursor != nil {
		start, _ = strconv.Atoi(*cursor)
	}
	if s.failAt != 0 && start == s.failAt && !s.failed.Swap(true) {
		return Page[string]{}, errors.New("upstream unavailable")
	}
	end := min(start+s.size, s.total)
	var page Page[string]
	for i := start; i < end; i++ {
		page.Items = append(page.Items, fmt.Sprintf("%s-%d", key.Slug, i))
	}
	if end < s.total {
		next := strconv.Itoa(end)
		page.Cursor = &next
	}
	return page, nil
}

func waitReady(t *testing.T, p interface{ Wait(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
}

func TestPager_IdleKeyDoesNotFetch(t *testing.T) {
	src := &pagedSource{total: 3, size: 2}
	p := New(context.Background(), src.fetch)
	defer p.Close()

	p.SetKey(Key{Group: "general", Sort: "name_asc"})
	assert.Equal(t, StateIdle, p.State())
	assert.False(t, p.FetchNextPage())
	assert.Zero(t, src.calls.Load())
	assert.Empty(t, p.Items())
}

func TestPager_ConcatenatesPagesAndStopsAtNullCursor(t *testing.T) {
	src := &pagedSource{total: 5, size: 2}
	p := New(context.Background(), src.fetch)
	defer p.Close()

	p.SetKey(Key{Slug: "pokemon"})
	waitReady(t, p)
	assert.Equal(t, StateReady, p.State())
	assert.Equal(t, []string{"pokemon-0", "pokemon-1"}, p.Items())
	assert.True(t, p.HasNextPage())

	items, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pokemon-0", "pokemon-1", "pokemon-2", "pokemon-3", "pokemon-4"}, items)
	assert.Equal(t, 3, p.Pages())
	assert.False(t, p.HasNextPage())

	assert.False(t, p.FetchNextPage())
	assert.EqualValues(t, 3, src.calls.Load())
}

func TestPager_SameKeyIsNoop(t *testing.T) {
	src := &pagedSource{total: 1, size: 1}
	p := New(context.Background(), src.fetch)
	defer p.Close()

	p.SetKey(Key{Slug: "sleeves"})
	waitReady(t, p)
	p.SetKey(Key{Slug: "sleeves"})
	waitReady(t, p)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestPager_FetchNextPageIgnoredWhileLoading(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	p := New(context.Background(), func(ctx context.Context, key Key, cursor *string) (Page[int], error) {
		calls.Add(1)
		<-release
		next := "more"
		return Page[int]{Items: []int{1}, Cursor: &next}, nil
	})
	defer p.Close()

	p.SetKey(Key{Search: "charizard"})
	assert.Equal(t, StateLoadingFirstPage, p.State())
	assert.False(t, p.FetchNextPage())
	release <- struct{}{}
	waitReady(t, p)

	assert.True(t, p.FetchNextPage())
	assert.Equal(t, StateLoadingNextPage, p.State())
	assert.False(t, p.FetchNextPage())
	release <- struct{}{}
	waitReady(t, p)
	assert.Equal(t, []int{1, 1}, p.Items())
	assert.EqualValues(t, 2, calls.Load())
}

func TestPager_StaleResultsAreDiscarded(t *testing.T) {
	var mu sync.Mutex
	gates := map[string]chan struct{}{"old": make(chan struct{}), "new": make(chan struct{})}
	oldCancelled := make(chan struct{})

	p := New(context.Background(), func(ctx context.Context, key Key, cursor *string) (Page[string], error) {
		mu.Lock()
		gate := gates[key.Slug]
		mu.Unlock()
		if key.Slug == "old" {
			<-ctx.Done()
			close(oldCancelled)
			<-gate
			// return a result anyway; the pager must ignore it
			return Page[string]{Items: []string{"stale"}}, nil
		}
		<-gate
		return Page[string]{Items: []string{"fresh"}}, nil
	})
	defer p.Close()

	p.SetKey(Key{Slug: "old"})
	p.SetKey(Key{Slug: "new"})

	select {
	case <-oldCancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight fetch for the old key was not cancelled")
	}
	close(gates["old"])
	close(gates["new"])
	waitReady(t, p)

	assert.Equal(t, Key{Slug: "new"}, p.Key())
	assert.Equal(t, []string{"fresh"}, p.Items())
	assert.Equal(t, 1, p.Pages())
}

func TestPager_ErrorHaltsUntilRefresh(t *testing.T) {
	src := &pagedSource{total: 4, size: 2, failAt: 2}
	p := New(context.Background(), src.fetch)
	defer p.Close()

	p.SetKey(Key{Slug: "mtg"})
	_, err := p.Collect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, p.State())
	assert.ErrorContains(t, p.Err(), "upstream unavailable")
	assert.False(t, p.FetchNextPage())

	calls := src.calls.Load()
	p.SetKey(Key{Slug: "mtg"})
	assert.Equal(t, calls, src.calls.Load(), "same key must not retry")

	p.Refresh()
	items, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mtg-0", "mtg-1", "mtg-2", "mtg-3"}, items)
	assert.NoError(t, p.Err())
}

func TestPager_NewKeyClearsError(t *testing.T) {
	src := &pagedSource{total: 4, size: 2, failAt: 2}
	p := New(context.Background(), src.fetch)
	defer p.Close()

	p.SetKey(Key{Slug: "mtg"})
	_, err := p.Collect(context.Background())
	require.Error(t, err)

	p.SetKey(Key{Slug: "mtg", Sort: "name_desc"})
	items, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 4)
}

func TestPager_WaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	p := New(context.Background(), func(ctx context.Context, key Key, cursor *string) (Page[int], error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return Page[int]{}, ctx.Err()
	})
	defer p.Close()
	defer close(release)

	p.SetKey(Key{Slug: "slow"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
}
