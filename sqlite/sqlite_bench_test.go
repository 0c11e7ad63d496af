package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/sqlite"
	"github.com/stretchr/testify/require"
)

// benchMeetings builds a day's worth of meetings, ten races each.
func benchMeetings(n int) map[racecal.MeetingKey][]*racecal.RaceRecord {
	out := make(map[racecal.MeetingKey][]*racecal.RaceRecord, n)
	for i := 0; i < n; i++ {
		key := racecal.NewMeetingKey(sep20, racecal.Regions()[i%8], fmt.Sprintf("Venue %d", i))
		for no := 1; no <= 10; no++ {
			out[key] = append(out[key], race(key, no, fmt.Sprintf("Race %d Handicap", no)))
		}
	}
	return out
}

func openBenchDB(b *testing.B) *sqlite.DB {
	b.Helper()
	db := sqlite.NewDB(filepath.Join(b.TempDir(), "bench.db"))
	require.NoError(b, db.Open())
	b.Cleanup(func() { db.Close() })
	return db
}

// BenchmarkReplaceMeeting simulates the store phase of a daily run: each
// meeting is replaced in its own transaction.
func BenchmarkReplaceMeeting(b *testing.B) {
	meetings := benchMeetings(40)
	s := sqlite.NewRaceService(openBenchDB(b))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for key, races := range meetings {
			if _, err := s.ReplaceMeeting(ctx, key, races); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkUpsertRaces stores the same records as one batch.
func BenchmarkUpsertRaces(b *testing.B) {
	var all []*racecal.RaceRecord
	for _, races := range benchMeetings(40) {
		all = append(all, races...)
	}
	s := sqlite.NewRaceService(openBenchDB(b))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.UpsertRaces(ctx, all); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindRaces(b *testing.B) {
	s := sqlite.NewRaceService(openBenchDB(b))
	ctx := context.Background()
	for key, races := range benchMeetings(40) {
		_, err := s.ReplaceMeeting(ctx, key, races)
		require.NoError(b, err)
	}
	vic := racecal.VIC

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.FindRaces(ctx, racecal.RaceFilter{From: &sep20, To: &sep20, Region: &vic}); err != nil {
			b.Fatal(err)
		}
	}
}
