package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/equinegpt/racecal/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sep20      = racecal.Date(2025, 9, 20)
	sep21      = racecal.Date(2025, 9, 21)
	flemington = racecal.NewMeetingKey(sep20, racecal.VIC, "Flemington")
	randwick   = racecal.NewMeetingKey(sep20, racecal.NSW, "Randwick")
	bendigo    = racecal.NewMeetingKey(sep21, racecal.VIC, "Bendigo")
)

func str(s string) *string { return &s }
func num(n int) *int       { return &n }

func race(key racecal.MeetingKey, no int, title string) *racecal.RaceRecord {
	return &racecal.RaceRecord{
		Key:       key,
		RaceNo:    no,
		Title:     title,
		Prize:     num(50000),
		Condition: str(racecal.ConditionHcp),
		Class:     str("BM64"),
		Age:       str("3+"),
		Sex:       str("Open"),
		DistanceM: num(1400),
		SourceURL: racecal.ProgramURL(racecal.DefaultBaseURL, key),
	}
}

func TestRaceService_UpsertRaces(t *testing.T) {
	t.Parallel()

	t.Run("inserts then updates", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))
		ctx := context.Background()

		res, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{race(flemington, 1, "Maiden Plate"), race(flemington, 2, "Handicap")})
		require.NoError(t, err)
		assert.Equal(t, racecal.UpsertResult{Inserted: 2}, res)

		changed := race(flemington, 1, "Maiden Plate (Div 1)")
		changed.Prize = nil
		res, err = s.UpsertRaces(ctx, []*racecal.RaceRecord{changed})
		require.NoError(t, err)
		assert.Equal(t, racecal.UpsertResult{Updated: 1}, res)

		got, err := s.FindRaces(ctx, racecal.RaceFilter{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, changed, got[0])
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))
		ctx := context.Background()
		races := []*racecal.RaceRecord{race(flemington, 1, "Maiden Plate")}

		_, err := s.UpsertRaces(ctx, races)
		require.NoError(t, err)
		_, err = s.UpsertRaces(ctx, races)
		require.NoError(t, err)

		got, err := s.FindRaces(ctx, racecal.RaceFilter{})
		require.NoError(t, err)
		assert.Equal(t, races, got)
	})

	t.Run("skips invalid records without aborting the batch", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))

		res, err := s.UpsertRaces(context.Background(), []*racecal.RaceRecord{
			race(flemington, 0, "No number"),
			nil,
			race(racecal.MeetingKey{Region: racecal.VIC, Venue: "Flemington"}, 1, "No date"),
			race(flemington, 3, "Kept"),
		})

		require.NoError(t, err)
		assert.Equal(t, racecal.UpsertResult{Inserted: 1, Skipped: 3}, res)
	})

	t.Run("keeps stored provider id and grade when absent", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))
		ctx := context.Background()

		first := race(flemington, 1, "Maiden Plate")
		first.ProviderID = str("pf-1")
		first.Type = str(racecal.GradeMetro)
		_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{first})
		require.NoError(t, err)

		_, err = s.UpsertRaces(ctx, []*racecal.RaceRecord{race(flemington, 1, "Maiden Plate")})
		require.NoError(t, err)

		got, err := s.FindRaces(ctx, racecal.RaceFilter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, str("pf-1"), got[0].ProviderID)
		assert.Equal(t, str("M"), got[0].Type)
	})

	t.Run("round trips nil optionals", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))
		ctx := context.Background()
		bare := &racecal.RaceRecord{Key: randwick, RaceNo: 4, Title: "Plate"}

		_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{bare})
		require.NoError(t, err)

		got, err := s.FindRaces(ctx, racecal.RaceFilter{})
		require.NoError(t, err)
		assert.Equal(t, []*racecal.RaceRecord{bare}, got)
	})
}

func TestRaceService_ReplaceMeeting(t *testing.T) {
	t.Parallel()

	t.Run("removes races no longer on the program", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))
		ctx := context.Background()

		_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{
			race(flemington, 1, "One"), race(flemington, 2, "Two"), race(flemington, 3, "Three"),
			race(randwick, 1, "Other meeting"),
		})
		require.NoError(t, err)

		res, err := s.ReplaceMeeting(ctx, flemington, []*racecal.RaceRecord{
			race(flemington, 1, "One"), race(flemington, 2, "Two"),
		})
		require.NoError(t, err)
		assert.Equal(t, racecal.UpsertResult{Updated: 2}, res)

		got, err := s.FindRaces(ctx, racecal.RaceFilter{Region: ptr(racecal.VIC)})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 2, got[1].RaceNo)

		others, err := s.FindRaces(ctx, racecal.RaceFilter{Region: ptr(racecal.NSW)})
		require.NoError(t, err)
		assert.Len(t, others, 1)
	})

	t.Run("skips records of another meeting", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))

		res, err := s.ReplaceMeeting(context.Background(), flemington, []*racecal.RaceRecord{
			race(flemington, 1, "One"), race(randwick, 1, "Stray"),
		})

		require.NoError(t, err)
		assert.Equal(t, racecal.UpsertResult{Inserted: 1, Skipped: 1}, res)
	})

	t.Run("empty program leaves meeting untouched", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))
		ctx := context.Background()
		_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{race(flemington, 1, "One")})
		require.NoError(t, err)

		res, err := s.ReplaceMeeting(ctx, flemington, nil)

		require.NoError(t, err)
		assert.Equal(t, racecal.UpsertResult{}, res)
		got, err := s.FindRaces(ctx, racecal.RaceFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("rejects invalid key", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))

		_, err := s.ReplaceMeeting(context.Background(), racecal.MeetingKey{}, nil)

		assert.Equal(t, racecal.EINVALID, racecal.ErrorCode(err))
	})
}

func TestRaceService_FindRaces(t *testing.T) {
	t.Parallel()

	s := sqlite.NewRaceService(newTestDB(t))
	ctx := context.Background()
	withID := race(bendigo, 1, "Stamped")
	withID.ProviderID = str("pf-9")
	_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{
		race(flemington, 2, "F2"), race(flemington, 1, "F1"),
		race(randwick, 1, "R1"),
		withID, race(bendigo, 2, "B2"),
	})
	require.NoError(t, err)

	titles := func(races []*racecal.RaceRecord) []string {
		out := make([]string, len(races))
		for i, r := range races {
			out[i] = r.Title
		}
		return out
	}

	tests := []struct {
		name   string
		filter racecal.RaceFilter
		want   []string
	}{
		{"all in order", racecal.RaceFilter{}, []string{"R1", "F1", "F2", "Stamped", "B2"}},
		{"from date", racecal.RaceFilter{From: &sep21}, []string{"Stamped", "B2"}},
		{"to date", racecal.RaceFilter{To: &sep20}, []string{"R1", "F1", "F2"}},
		{"region", racecal.RaceFilter{Region: ptr(racecal.NSW)}, []string{"R1"}},
		{"venue ignores case", racecal.RaceFilter{Venue: str("FLEMINGTON")}, []string{"F1", "F2"}},
		{"missing provider id", racecal.RaceFilter{From: &sep21, MissingProviderID: true}, []string{"B2"}},
		{"limit", racecal.RaceFilter{Limit: 2}, []string{"R1", "F1"}},
		{"offset without limit", racecal.RaceFilter{Offset: 3}, []string{"Stamped", "B2"}},
		{"limit and offset", racecal.RaceFilter{Limit: 1, Offset: 1}, []string{"F1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := s.FindRaces(ctx, tt.filter)

			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestRaceService_FindMeetings(t *testing.T) {
	t.Parallel()

	s := sqlite.NewRaceService(newTestDB(t))
	ctx := context.Background()
	_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{
		race(flemington, 1, "F1"), race(flemington, 2, "F2"), race(randwick, 1, "R1"), race(bendigo, 1, "B1"),
	})
	require.NoError(t, err)

	got, err := s.FindMeetings(ctx, time.Date(2025, 9, 20, 18, 30, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, []racecal.VenueRef{
		{Region: racecal.NSW, Venue: "Randwick"},
		{Region: racecal.VIC, Venue: "Flemington"},
	}, got)
}

func TestRaceService_SetProviderID(t *testing.T) {
	t.Parallel()

	t.Run("stamps every race of the meeting once", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))
		ctx := context.Background()
		_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{
			race(flemington, 1, "F1"), race(flemington, 2, "F2"), race(randwick, 1, "R1"),
		})
		require.NoError(t, err)
		venue := racecal.VenueRef{Region: racecal.VIC, Venue: "flemington"}

		n, err := s.SetProviderID(ctx, sep20, venue, "pf-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.SetProviderID(ctx, sep20, venue, "pf-1")
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = s.SetProviderID(ctx, sep20, venue, "pf-2")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		missing, err := s.FindRaces(ctx, racecal.RaceFilter{MissingProviderID: true})
		require.NoError(t, err)
		require.Len(t, missing, 1)
		assert.Equal(t, "R1", missing[0].Title)
	})

	t.Run("rejects empty id", func(t *testing.T) {
		t.Parallel()

		s := sqlite.NewRaceService(newTestDB(t))

		_, err := s.SetProviderID(context.Background(), sep20, racecal.VenueRef{Region: racecal.VIC, Venue: "Flemington"}, "")

		assert.Equal(t, racecal.EINVALID, racecal.ErrorCode(err))
	})
}

func TestRaceService_DeleteRacesBefore(t *testing.T) {
	t.Parallel()

	s := sqlite.NewRaceService(newTestDB(t))
	ctx := context.Background()
	_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{
		race(flemington, 1, "F1"), race(randwick, 1, "R1"), race(bendigo, 1, "B1"),
	})
	require.NoError(t, err)

	n, err := s.DeleteRacesBefore(ctx, sep21)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	left, err := s.FindRaces(ctx, racecal.RaceFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, bendigo, left[0].Key)
}

func TestRaceService_Venues(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	s := sqlite.NewRaceService(db)
	ctx := context.Background()
	_, err := s.UpsertRaces(ctx, []*racecal.RaceRecord{
		race(flemington, 1, "F1"), race(flemington, 2, "F2"), race(randwick, 1, "R1"), race(bendigo, 1, "B1"),
	})
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO race_program (date, state, track, race_no, updated_at)
		VALUES ('2025-09-20', 'NZ', 'Ellerslie', 1, '2025-09-19T00:00:00Z')
	`)
	require.NoError(t, err)

	got, err := s.Venues(ctx)

	require.NoError(t, err)
	assert.Equal(t, map[racecal.Region][]string{
		racecal.NSW: {"Randwick"},
		racecal.VIC: {"Bendigo", "Flemington"},
	}, got)
}

func ptr[T any](v T) *T { return &v }
