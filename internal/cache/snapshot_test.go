package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/order-tracker/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var soOptions = dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"}

// scriptedFetcher returns the queued responses in order and repeats the last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	calls     int32
	responses []fetchResponse
	delay     time.Duration
}

type fetchResponse struct {
	payload string
	err     error
}

func (f *scriptedFetcher) Name() string { return "test://sheet" }

func (f *scriptedFetcher) Fetch(ctx context.Context) ([]byte, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := int(n) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.payload), nil
}

func (f *scriptedFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(f Fetcher, raw RawCache, opts SnapshotOptions) (*SnapshotCache, *fakeClock) {
	opts.Normalize = soOptions
	c := NewSnapshotCache(f, raw, opts)
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

const (
	sheetV1 = "so_number,status\n40100,Shipping\n"
	sheetV2 = "so_number,status\n40100,Arrived\n"
)

func TestSnapshotCache_ServesWithinTTL(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}, {payload: sheetV2}}}
	c, clock := newTestCache(f, nil, SnapshotOptions{TTL: time.Minute})
	ctx := context.Background()

	ds, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shipping", ds.Rows[0]["status"])

	clock.Advance(59 * time.Second)
	again, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, ds, again)
	assert.Equal(t, 1, f.Calls())

	clock.Advance(2 * time.Second)
	refreshed, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "arrived", refreshed.Rows[0]["status"])
	assert.Equal(t, 2, f.Calls())

	// the previous snapshot is untouched by the refresh
	assert.Equal(t, "shipping", ds.Rows[0]["status"])
}

func TestSnapshotCache_UnboundedTTLFetchesOnce(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}, {payload: sheetV2}}}
	c, clock := newTestCache(f, nil, SnapshotOptions{})

	for i := 0; i < 5; i++ {
		_, err := c.Load(context.Background())
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
	}
	assert.Equal(t, 1, f.Calls())
	assert.True(t, c.Status().ExpiresAt.IsZero())
}

func TestSnapshotCache_FailureIsMemoizedForTheWindow(t *testing.T) {
	timeout := context.DeadlineExceeded
	f := &scriptedFetcher{responses: []fetchResponse{{err: timeout}, {payload: sheetV1}}}
	c, clock := newTestCache(f, nil, SnapshotOptions{TTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ds, err := c.Load(ctx)
		require.Error(t, err)
		assert.Nil(t, ds)
		assert.True(t, errors.Is(err, dataset.ErrFetch))
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		clock.Advance(10 * time.Second)
	}
	assert.Equal(t, 1, f.Calls(), "no retry inside the window")

	clock.Advance(time.Minute)
	ds, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 2, f.Calls())
}

func TestSnapshotCache_UnboundedTTLRetriesAfterFailureWindow(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{err: errors.New("dial tcp: refused")}, {payload: sheetV1}}}
	c, clock := newTestCache(f, nil, SnapshotOptions{FailureTTL: 30 * time.Second})

	_, err := c.Load(context.Background())
	require.Error(t, err)

	clock.Advance(31 * time.Second)
	_, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.Calls())
}

func TestSnapshotCache_ParseFailure(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{payload: "so_number,status\n\"broken,x\n"}}}
	c, _ := newTestCache(f, nil, SnapshotOptions{TTL: time.Minute})

	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrParse))
	assert.NotEmpty(t, c.Status().LastError)
}

func TestSnapshotCache_FailedRefreshDropsPreviousByDefault(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}, {err: errors.New("boom")}}}
	c, clock := newTestCache(f, nil, SnapshotOptions{TTL: time.Minute})

	_, err := c.Load(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	ds, err := c.Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, ds)
}

func TestSnapshotCache_ServeStaleKeepsPrevious(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}, {err: errors.New("boom")}}}
	c, clock := newTestCache(f, nil, SnapshotOptions{TTL: time.Minute, ServeStale: true})

	first, err := c.Load(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	ds, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, ds)

	status := c.Status()
	assert.True(t, status.Loaded)
	assert.Contains(t, status.LastError, "boom")
}

func TestSnapshotCache_ConcurrentLoadsShareOneFetch(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}}, delay: 50 * time.Millisecond}
	c := NewSnapshotCache(f, nil, SnapshotOptions{TTL: time.Minute, Normalize: soOptions})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := c.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 1, ds.Len())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.Calls())
}

func TestSnapshotCache_Invalidate(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}, {payload: sheetV2}}}
	c, _ := newTestCache(f, nil, SnapshotOptions{})

	_, err := c.Load(context.Background())
	require.NoError(t, err)

	c.Invalidate(context.Background())
	ds, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arrived", ds.Rows[0]["status"])
	assert.Equal(t, 2, f.Calls())
}

// memoryRawCache stands in for the shared Redis copy.
type memoryRawCache struct {
	mu   sync.Mutex
	data map[string]RawPayload
	sets int
}

func (m *memoryRawCache) Get(ctx context.Context, source string) (RawPayload, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[source]
	return v, ok, nil
}

func (m *memoryRawCache) Set(ctx context.Context, source string, payload RawPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[source] = payload
	m.sets++
	return nil
}

func (m *memoryRawCache) Invalidate(ctx context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, source)
	return nil
}

func TestSnapshotCache_SharedPayloadSkipsUpstream(t *testing.T) {
	fetchedElsewhere := time.Date(2025, 3, 1, 8, 59, 30, 0, time.UTC)
	raw := &memoryRawCache{data: map[string]RawPayload{
		"test://sheet": {Data: []byte(sheetV2), FetchedAt: fetchedElsewhere},
	}}
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}}}
	c, _ := newTestCache(f, raw, SnapshotOptions{TTL: time.Minute})

	ds, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arrived", ds.Rows[0]["status"])
	assert.Equal(t, 0, f.Calls())

	// the replica that fetched upstream set the time, not this decode
	assert.True(t, fetchedElsewhere.Equal(ds.FetchedAt))
	assert.True(t, fetchedElsewhere.Equal(c.Status().FetchedAt))
}

func TestSnapshotCache_SharedPayloadWithoutTimeUsesLoadTime(t *testing.T) {
	raw := &memoryRawCache{data: map[string]RawPayload{"test://sheet": {Data: []byte(sheetV1)}}}
	c, clock := newTestCache(&scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}}}, raw, SnapshotOptions{TTL: time.Minute})

	ds, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(ds.FetchedAt))
}

func TestSnapshotCache_UpstreamFetchTimeIsShared(t *testing.T) {
	raw := &memoryRawCache{data: map[string]RawPayload{}}
	f := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}}}
	c, clock := newTestCache(f, raw, SnapshotOptions{TTL: time.Minute})

	ds, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, clock.Now().Equal(ds.FetchedAt))

	stored := raw.data["test://sheet"]
	assert.Equal(t, sheetV1, string(stored.Data))
	assert.True(t, ds.FetchedAt.Equal(stored.FetchedAt))
}

func TestSnapshotCache_StoresSharedPayloadOnlyWhenParsed(t *testing.T) {
	raw := &memoryRawCache{data: map[string]RawPayload{}}
	bad := &scriptedFetcher{responses: []fetchResponse{{payload: ""}}}
	c, _ := newTestCache(bad, raw, SnapshotOptions{TTL: time.Minute})

	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, raw.sets)

	good := &scriptedFetcher{responses: []fetchResponse{{payload: sheetV1}}}
	c2, _ := newTestCache(good, raw, SnapshotOptions{TTL: time.Minute})
	_, err = c2.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, raw.sets)
}

func TestRawPayloadKey(t *testing.T) {
	a := rawPayloadKey("order_tracker", "https://docs.google.com/a")
	b := rawPayloadKey("order_tracker", "https://docs.google.com/b")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^order_tracker:payload:[0-9a-f]{40}$`, a)
}
