package cache

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/andresuchdata/order-tracker/internal/dataset"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the upstream the snapshot is loaded from; see package source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

type SnapshotOptions struct {
	// TTL of a loaded snapshot. Zero keeps the first good snapshot for the
	// life of the process.
	TTL time.Duration
	// FailureTTL is how long a failed load is reported before the next
	// attempt when TTL is zero. With a TTL the failure lasts one TTL.
	FailureTTL time.Duration
	// FetchTimeout bounds one upstream fetch.
	FetchTimeout time.Duration
	// ServeStale keeps answering from the previous snapshot when a refresh fails.
	ServeStale bool
	Normalize  dataset.NormalizeOptions
}

// OptionsFromConfig maps the cache and source settings onto SnapshotOptions.
func OptionsFromConfig(cfg *config.Config) SnapshotOptions {
	return SnapshotOptions{
		TTL:          cfg.Cache.SnapshotTTL(),
		FailureTTL:   cfg.Cache.FailureTTL(),
		FetchTimeout: cfg.Source.FetchTimeout(),
		ServeStale:   cfg.Cache.ServeStaleOnFailure,
		Normalize: dataset.NormalizeOptions{
			KeyColumn:    cfg.Source.KeyColumn,
			StatusColumn: cfg.Source.StatusColumn,
		},
	}
}

// SnapshotStatus describes the cache for operators.
type SnapshotStatus struct {
	Source    string    `json:"source"`
	Loaded    bool      `json:"loaded"`
	Rows      int       `json:"rows"`
	Columns   []string  `json:"columns,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Stale     bool      `json:"stale"`
	LastError string    `json:"last_error,omitempty"`
}

// snapshotState is replaced as a whole, never modified.
type snapshotState struct {
	data      *dataset.Dataset
	err       error
	lastErr   error
	checkedAt time.Time
	expiresAt time.Time // zero: never
}

// SnapshotCache holds the current order sheet snapshot and reloads it after
// its TTL on the next call. There is no background refresh.
type SnapshotCache struct {
	fetcher Fetcher
	raw     RawCache
	opts    SnapshotOptions
	now     func() time.Time
	group   singleflight.Group

	mu    sync.RWMutex
	state *snapshotState
}

func NewSnapshotCache(fetcher Fetcher, raw RawCache, opts SnapshotOptions) *SnapshotCache {
	if raw == nil {
		raw = NewNoopRawCache()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.FailureTTL <= 0 {
		opts.FailureTTL = time.Minute
	}
	return &SnapshotCache{
		fetcher: fetcher,
		raw:     raw,
		opts:    opts,
		now:     time.Now,
	}
}

// Load returns the current snapshot, refreshing it first when stale. A
// failed load is returned as a *dataset.LoadError for the whole failure window.
func (c *SnapshotCache) Load(ctx context.Context) (*dataset.Dataset, error) {
	c.RefreshIfStale(ctx)

	st := c.current()
	return st.data, st.err
}

// RefreshIfStale reloads the snapshot when none was loaded yet or the
// current one expired. Concurrent callers share a single reload. It
// reports whether a reload took place.
func (c *SnapshotCache) RefreshIfStale(ctx context.Context) bool {
	if c.fresh(c.current()) {
		return false
	}

	c.group.Do("snapshot", func() (any, error) {
		if c.fresh(c.current()) {
			return nil, nil
		}
		c.swap(c.refresh(ctx))
		return nil, nil
	})
	return true
}

// Invalidate drops the shared payload and marks the snapshot stale so the
// next Load fetches from upstream.
func (c *SnapshotCache) Invalidate(ctx context.Context) {
	if err := c.raw.Invalidate(ctx, c.fetcher.Name()); err != nil {
		log.Warn().Err(err).Msg("snapshot cache: shared payload invalidate failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return
	}
	expired := *c.state
	expired.expiresAt = c.now().Add(-time.Nanosecond)
	c.state = &expired
}

func (c *SnapshotCache) Status() SnapshotStatus {
	st := c.current()
	status := SnapshotStatus{Source: c.fetcher.Name()}
	if st == nil {
		return status
	}

	status.CheckedAt = st.checkedAt
	status.ExpiresAt = st.expiresAt
	status.Stale = !c.fresh(st)
	if st.data != nil {
		status.Loaded = true
		status.Rows = st.data.Len()
		status.Columns = append([]string(nil), st.data.Columns...)
		status.FetchedAt = st.data.FetchedAt
	}
	if err := st.err; err != nil {
		status.LastError = err.Error()
	} else if st.lastErr != nil {
		status.LastError = st.lastErr.Error()
	}
	return status
}

func (c *SnapshotCache) current() *snapshotState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *SnapshotCache) swap(st *snapshotState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st
}

func (c *SnapshotCache) fresh(st *snapshotState) bool {
	if st == nil {
		return false
	}
	if st.expiresAt.IsZero() {
		return true
	}
	return c.now().Before(st.expiresAt)
}

func (c *SnapshotCache) refresh(ctx context.Context) *snapshotState {
	name := c.fetcher.Name()
	logger := log.With().Str("source", name).Logger()

	// The reload is shared by every waiting caller, so it must not die
	// with the first caller's request.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
	defer cancel()

	start := c.now()
	ds, fromShared, err := c.load(fetchCtx, name)
	checkedAt := c.now()

	if err == nil {
		logger.Info().
			Int("rows", ds.Len()).
			Bool("shared", fromShared).
			Dur("took", checkedAt.Sub(start)).
			Msg("snapshot loaded")

		st := &snapshotState{data: ds, checkedAt: checkedAt}
		if c.opts.TTL > 0 {
			st.expiresAt = checkedAt.Add(c.opts.TTL)
		}
		return st
	}

	window := c.opts.TTL
	if window <= 0 {
		window = c.opts.FailureTTL
	}
	st := &snapshotState{checkedAt: checkedAt, expiresAt: checkedAt.Add(window)}

	if prev := c.current(); c.opts.ServeStale && prev != nil && prev.data != nil {
		logger.Warn().Err(err).Msg("snapshot refresh failed, serving previous snapshot")
		st.data = prev.data
		st.lastErr = err
		return st
	}

	logger.Error().Err(err).Msg("snapshot load failed")
	st.err = err
	return st
}

func (c *SnapshotCache) load(ctx context.Context, name string) (*dataset.Dataset, bool, error) {
	shared, hit, err := c.raw.Get(ctx, name)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot cache: shared payload get failed")
	}
	if hit {
		ds, err := c.decode(shared, name)
		if err == nil {
			return ds, true, nil
		}
		log.Warn().Err(err).Msg("snapshot cache: shared payload unreadable, fetching upstream")
	}

	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, false, dataset.NewFetchError(name, err)
	}
	fetched := RawPayload{Data: data, FetchedAt: c.now()}

	ds, err := c.decode(fetched, name)
	if err != nil {
		return nil, false, err
	}

	if err := c.raw.Set(ctx, name, fetched); err != nil {
		log.Warn().Err(err).Msg("snapshot cache: shared payload set failed")
	}
	return ds, false, nil
}

// decode parses payload and stamps the dataset with the upstream fetch time.
// The dataset is not shared yet, so setting the field here is safe.
func (c *SnapshotCache) decode(payload RawPayload, name string) (*dataset.Dataset, error) {
	ds, err := dataset.Decode(payload.Data, name, c.opts.Normalize)
	if err != nil {
		return nil, err
	}
	if !payload.FetchedAt.IsZero() {
		ds.FetchedAt = payload.FetchedAt
	} else {
		ds.FetchedAt = c.now()
	}
	return ds, nil
}
