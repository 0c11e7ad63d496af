package crawl_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/crawl"
	"github.com/equinegpt/racecal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discovering(keys ...racecal.MeetingKey) *mock.Discoverer {
	return &mock.Discoverer{
		DiscoverFn: func(context.Context, racecal.Window) ([]racecal.MeetingKey, error) {
			return keys, nil
		},
	}
}

func racesFor(k racecal.MeetingKey, n int) []*racecal.RaceRecord {
	var out []*racecal.RaceRecord
	for i := 1; i <= n; i++ {
		out = append(out, &racecal.RaceRecord{Key: k, RaceNo: i})
	}
	return out
}

// memoryStore captures ReplaceMeeting calls.
type memoryStore struct {
	mu     sync.Mutex
	stored map[racecal.MeetingKey][]*racecal.RaceRecord
}

func (s *memoryStore) service() *mock.RaceService {
	s.stored = make(map[racecal.MeetingKey][]*racecal.RaceRecord)
	return &mock.RaceService{
		ReplaceMeetingFn: func(_ context.Context, key racecal.MeetingKey, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.stored[key] = races
			return racecal.UpsertResult{Inserted: len(races)}, nil
		},
	}
}

func TestCrawler_Run(t *testing.T) {
	t.Parallel()

	win := racecal.Window{Start: day0, End: day0.AddDate(0, 0, 1)}
	flem := keyOn(0, racecal.VIC, "Flemington")
	rand := keyOn(0, racecal.NSW, "Randwick")
	eagle := keyOn(1, racecal.QLD, "Eagle Farm")

	t.Run("returns zero result when nothing is discovered", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		c := &crawl.Crawler{
			Discoverer: discovering(),
			Harvester:  &mock.Harvester{},
			Races:      store.service(),
		}

		result, err := c.Run(context.Background(), win, crawl.RunOptions{}, nil)

		require.NoError(t, err)
		assert.NotEmpty(t, result.RunID)
		assert.Equal(t, 0, result.Keys)
		assert.Equal(t, 0, result.Races)
		assert.Empty(t, store.stored)
	})

	t.Run("harvests stamps and stores every meeting", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		c := &crawl.Crawler{
			Discoverer: discovering(flem, rand, eagle),
			Harvester: &mock.Harvester{
				HarvestFn: func(_ context.Context, k racecal.MeetingKey, _ bool) ([]*racecal.RaceRecord, error) {
					return racesFor(k, 3), nil
				},
			},
			Reconciler: &mock.Reconciler{
				ReconcileFn: func(_ context.Context, date time.Time, venues []racecal.VenueRef) (*racecal.Reconciliation, error) {
					rec := &racecal.Reconciliation{Date: date, Matches: map[racecal.VenueKey]racecal.Match{}}
					for _, v := range venues {
						if v.Venue == "Flemington" {
							rec.Matches[racecal.VenueKey{Region: v.Region, Canonical: "flemington"}] = racecal.Match{Venue: v, ProviderID: "777", Tier: racecal.MatchExact}
							continue
						}
						rec.Unmatched = append(rec.Unmatched, v)
					}
					return rec, nil
				},
			},
			Races:       store.service(),
			RetryDelays: []time.Duration{0},
		}

		result, err := c.Run(context.Background(), win, crawl.RunOptions{}, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Keys)
		assert.Equal(t, 3, result.Harvested)
		assert.Equal(t, 9, result.Races)
		assert.Equal(t, 9, result.Inserted)
		assert.Equal(t, 1, result.Matched)
		assert.Equal(t, 2, result.Unmatched)

		require.Len(t, store.stored, 3)
		for _, r := range store.stored[flem] {
			require.NotNil(t, r.ProviderID)
			assert.Equal(t, "777", *r.ProviderID)
		}
		for _, r := range store.stored[rand] {
			assert.Nil(t, r.ProviderID)
		}
	})

	t.Run("counts failed harvests and stores the rest", func(t *testing.T) {
		t.Parallel()

		var (
			buf      bytes.Buffer
			flemSeen atomic.Int32
		)
		store := &memoryStore{}
		c := &crawl.Crawler{
			Discoverer: discovering(flem, rand),
			Harvester: &mock.Harvester{
				HarvestFn: func(_ context.Context, k racecal.MeetingKey, _ bool) ([]*racecal.RaceRecord, error) {
					if k == rand {
						return nil, racecal.Errorf(racecal.ENOTFOUND, "no program")
					}
					if flemSeen.Add(1) == 1 {
						return nil, racecal.Errorf(racecal.EUNAVAILABLE, "HTTP 503")
					}
					return racesFor(k, 2), nil
				},
			},
			Races:       store.service(),
			RetryDelays: []time.Duration{0},
			Logger:      slog.New(slog.NewTextHandler(&buf, nil)),
		}

		result, err := c.Run(context.Background(), win, crawl.RunOptions{}, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Harvested)
		assert.Equal(t, 1, result.Failed)
		assert.Len(t, store.stored, 1)
		assert.Equal(t, int32(2), flemSeen.Load())
		assert.Contains(t, buf.String(), "retry "+flem.String()+" (attempt 2)")
		assert.NotContains(t, buf.String(), "retry "+rand.String())
	})

	t.Run("isolates reconcile failure to its date", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		c := &crawl.Crawler{
			Discoverer: discovering(flem, eagle),
			Harvester: &mock.Harvester{
				HarvestFn: func(_ context.Context, k racecal.MeetingKey, _ bool) ([]*racecal.RaceRecord, error) {
					return racesFor(k, 1), nil
				},
			},
			Reconciler: &mock.Reconciler{
				ReconcileFn: func(_ context.Context, date time.Time, venues []racecal.VenueRef) (*racecal.Reconciliation, error) {
					if date.Equal(day0) {
						return nil, errors.New("provider down")
					}
					return &racecal.Reconciliation{Date: date, Unmatched: venues}, nil
				},
			},
			Races:       store.service(),
			RetryDelays: []time.Duration{0},
		}

		result, err := c.Run(context.Background(), win, crawl.RunOptions{}, nil)

		require.NoError(t, err)
		require.Len(t, result.DateErrors, 1)
		assert.EqualError(t, result.DateErrors["2025-09-20"], "provider down")
		assert.Equal(t, 1, result.Unmatched)
		assert.Len(t, store.stored, 2)
	})

	t.Run("skips reconcile when asked", func(t *testing.T) {
		t.Parallel()

		store := &memoryStore{}
		c := &crawl.Crawler{
			Discoverer: discovering(flem),
			Harvester: &mock.Harvester{
				HarvestFn: func(_ context.Context, k racecal.MeetingKey, _ bool) ([]*racecal.RaceRecord, error) {
					return racesFor(k, 1), nil
				},
			},
			Reconciler: &mock.Reconciler{
				ReconcileFn: func(context.Context, time.Time, []racecal.VenueRef) (*racecal.Reconciliation, error) {
					t.Error("reconcile should be skipped")
					return nil, nil
				},
			},
			Races: store.service(),
		}

		_, err := c.Run(context.Background(), win, crawl.RunOptions{SkipReconcile: true}, nil)

		require.NoError(t, err)
	})

	t.Run("passes force to harvester", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var forced []bool
		store := &memoryStore{}
		c := &crawl.Crawler{
			Discoverer: discovering(flem, rand),
			Harvester: &mock.Harvester{
				HarvestFn: func(_ context.Context, k racecal.MeetingKey, force bool) ([]*racecal.RaceRecord, error) {
					mu.Lock()
					forced = append(forced, force)
					mu.Unlock()
					return racesFor(k, 1), nil
				},
			},
			Races: store.service(),
		}

		_, err := c.Run(context.Background(), win, crawl.RunOptions{Force: true}, nil)

		require.NoError(t, err)
		assert.Equal(t, []bool{true, true}, forced)
	})

	t.Run("returns discovery error", func(t *testing.T) {
		t.Parallel()

		c := &crawl.Crawler{
			Discoverer: &mock.Discoverer{
				DiscoverFn: func(context.Context, racecal.Window) ([]racecal.MeetingKey, error) {
					return nil, racecal.Errorf(racecal.EINVALID, "window end before start")
				},
			},
		}

		_, err := c.Run(context.Background(), win, crawl.RunOptions{}, nil)

		assert.Equal(t, racecal.EINVALID, racecal.ErrorCode(err))
	})

	t.Run("returns store error", func(t *testing.T) {
		t.Parallel()

		c := &crawl.Crawler{
			Discoverer: discovering(flem),
			Harvester: &mock.Harvester{
				HarvestFn: func(_ context.Context, k racecal.MeetingKey, _ bool) ([]*racecal.RaceRecord, error) {
					return racesFor(k, 1), nil
				},
			},
			Races: &mock.RaceService{
				ReplaceMeetingFn: func(context.Context, racecal.MeetingKey, []*racecal.RaceRecord) (racecal.UpsertResult, error) {
					return racecal.UpsertResult{}, errors.New("disk full")
				},
			},
		}

		_, err := c.Run(context.Background(), win, crawl.RunOptions{}, nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestCrawler_HarvestAll(t *testing.T) {
	t.Parallel()

	t.Run("reports progress for every key", func(t *testing.T) {
		t.Parallel()

		keys := []racecal.MeetingKey{
			keyOn(0, racecal.VIC, "Flemington"),
			keyOn(0, racecal.NSW, "Randwick"),
			keyOn(0, racecal.QLD, "Doomben"),
		}
		c := &crawl.Crawler{
			Harvester: &mock.Harvester{
				HarvestFn: func(_ context.Context, k racecal.MeetingKey, _ bool) ([]*racecal.RaceRecord, error) {
					if k.Venue == "Doomben" {
						return nil, racecal.Errorf(racecal.ENOTFOUND, "gone")
					}
					return racesFor(k, 4), nil
				},
			},
			Concurrency: 2,
			RetryDelays: []time.Duration{0},
		}

		var events []crawl.ProgressEvent
		results := c.HarvestAll(context.Background(), keys, false, func(e crawl.ProgressEvent) {
			events = append(events, e)
		})

		require.Len(t, results, 3)
		for i, r := range results {
			assert.Equal(t, keys[i], r.Key)
		}
		assert.Len(t, results[0].Records, 4)
		assert.Error(t, results[2].Err)

		require.Len(t, events, 4)
		assert.Equal(t, crawl.ProgressStarted, events[0].Type)
		assert.Equal(t, 3, events[0].Total)
		failed := 0
		for _, e := range events[1:] {
			if e.Type == crawl.ProgressFailed {
				failed++
				assert.Equal(t, "2025Sep20,QLD,Doomben", e.Key)
			}
		}
		assert.Equal(t, 1, failed)
		assert.Equal(t, 3, events[3].Completed)
	})
}
