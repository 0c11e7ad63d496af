package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
	"github.com/jackc/pgx/v5"
)

var (
	_ racecal.RaceService    = (*RaceService)(nil)
	_ racecal.VenueInventory = (*RaceService)(nil)
)

// RaceService implements racecal.RaceService using PostgreSQL.
type RaceService struct {
	pool Pool
}

// NewRaceService creates a new RaceService.
func NewRaceService(pool Pool) *RaceService {
	return &RaceService{pool: pool}
}

const raceColumns = `date, state, track, race_no, description, prize, condition, class, age, sex,
	distance_m, bonus, url, type, meeting_id`

// upsertRace reports through xmax whether the row was inserted. The stored
// provider id and grade survive a record that lacks them.
const upsertRace = `
	INSERT INTO race_program (` + raceColumns + `, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
	ON CONFLICT (date, state, track, race_no) DO UPDATE SET
		description = EXCLUDED.description,
		prize       = EXCLUDED.prize,
		condition   = EXCLUDED.condition,
		class       = EXCLUDED.class,
		age         = EXCLUDED.age,
		sex         = EXCLUDED.sex,
		distance_m  = EXCLUDED.distance_m,
		bonus       = EXCLUDED.bonus,
		url         = EXCLUDED.url,
		type        = COALESCE(EXCLUDED.type, race_program.type),
		meeting_id  = COALESCE(EXCLUDED.meeting_id, race_program.meeting_id),
		updated_at  = now()
	RETURNING (xmax = 0) AS inserted
`

// UpsertRaces inserts or updates races in one transaction. Invalid records
// are skipped.
func (s *RaceService) UpsertRaces(ctx context.Context, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return racecal.UpsertResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := upsert(ctx, tx, races)
	if err != nil {
		return racecal.UpsertResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return racecal.UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// ReplaceMeeting stores races as the complete program of key, deleting
// stored races of the meeting whose numbers are absent. Records of another
// meeting are skipped and an empty set leaves the meeting untouched.
func (s *RaceService) ReplaceMeeting(ctx context.Context, key racecal.MeetingKey, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	if err := key.Validate(); err != nil {
		return racecal.UpsertResult{}, err
	}

	var res racecal.UpsertResult
	var own []*racecal.RaceRecord
	nums := make([]int32, 0, len(races))
	for _, r := range races {
		if r == nil || r.Key != key {
			res.Skipped++
			continue
		}
		own = append(own, r)
		nums = append(nums, int32(r.RaceNo))
	}
	if len(own) == 0 {
		return res, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return racecal.UpsertResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM race_program
		WHERE date = $1 AND state = $2 AND track = $3 AND NOT (race_no = ANY($4))
	`, key.Date, string(key.Region), key.Venue, nums); err != nil {
		return racecal.UpsertResult{}, fmt.Errorf("delete stale races: %w", err)
	}

	up, err := upsert(ctx, tx, own)
	if err != nil {
		return racecal.UpsertResult{}, err
	}
	res.Add(up)

	if err := tx.Commit(ctx); err != nil {
		return racecal.UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func upsert(ctx context.Context, tx pgx.Tx, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	var res racecal.UpsertResult
	for _, r := range races {
		if r == nil || r.Validate() != nil {
			res.Skipped++
			continue
		}

		var inserted bool
		if err := tx.QueryRow(ctx, upsertRace,
			r.Key.Date, string(r.Key.Region), r.Key.Venue, r.RaceNo, r.Title,
			r.Prize, r.Condition, r.Class, r.Age, r.Sex,
			r.DistanceM, r.Bonus, r.SourceURL, r.Type, r.ProviderID,
		).Scan(&inserted); err != nil {
			return res, fmt.Errorf("upsert race %s #%d: %w", r.Key, r.RaceNo, err)
		}

		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

// FindRaces retrieves races matching the filter ordered by date, state,
// track and race number. Venue matching ignores case.
func (s *RaceService) FindRaces(ctx context.Context, filter racecal.RaceFilter) ([]*racecal.RaceRecord, error) {
	var query strings.Builder
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	query.WriteString("SELECT " + raceColumns + " FROM race_program WHERE true")

	if filter.From != nil {
		query.WriteString(" AND date >= " + arg(racecal.Day(*filter.From)))
	}
	if filter.To != nil {
		query.WriteString(" AND date <= " + arg(racecal.Day(*filter.To)))
	}
	if filter.Region != nil {
		query.WriteString(" AND state = " + arg(string(*filter.Region)))
	}
	if filter.Venue != nil {
		query.WriteString(" AND lower(track) = lower(" + arg(*filter.Venue) + ")")
	}
	if filter.MissingProviderID {
		query.WriteString(" AND meeting_id IS NULL")
	}

	query.WriteString(" ORDER BY date, state, track, race_no")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT " + arg(filter.Limit))
	}
	if filter.Offset > 0 {
		query.WriteString(" OFFSET " + arg(filter.Offset))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	races := make([]*racecal.RaceRecord, 0)
	for rows.Next() {
		var (
			r     racecal.RaceRecord
			state string
		)
		if err := rows.Scan(&r.Key.Date, &state, &r.Key.Venue, &r.RaceNo, &r.Title,
			&r.Prize, &r.Condition, &r.Class, &r.Age, &r.Sex,
			&r.DistanceM, &r.Bonus, &r.SourceURL, &r.Type, &r.ProviderID); err != nil {
			return nil, err
		}
		r.Key.Date = racecal.Day(r.Key.Date)
		r.Key.Region = racecal.Region(state)
		races = append(races, &r)
	}
	return races, rows.Err()
}

// FindMeetings returns the venues with races stored on date.
func (s *RaceService) FindMeetings(ctx context.Context, date time.Time) ([]racecal.VenueRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT state, track FROM race_program
		WHERE date = $1
		ORDER BY state, track
	`, racecal.Day(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	venues := make([]racecal.VenueRef, 0)
	for rows.Next() {
		var state, track string
		if err := rows.Scan(&state, &track); err != nil {
			return nil, err
		}
		venues = append(venues, racecal.VenueRef{Region: racecal.Region(state), Venue: track})
	}
	return venues, rows.Err()
}

// SetProviderID stamps id on every race of the meeting whose id is unset
// or different.
func (s *RaceService) SetProviderID(ctx context.Context, date time.Time, venue racecal.VenueRef, providerID string) (int, error) {
	if providerID == "" {
		return 0, racecal.Errorf(racecal.EINVALID, "provider id required")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE race_program SET meeting_id = $1, updated_at = now()
		WHERE date = $2 AND state = $3 AND lower(track) = lower($4)
			AND meeting_id IS DISTINCT FROM $1
	`, providerID, racecal.Day(date), string(venue.Region), venue.Venue)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteRacesBefore removes races dated strictly before date.
func (s *RaceService) DeleteRacesBefore(ctx context.Context, date time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM race_program WHERE date < $1", racecal.Day(date))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Venues returns the distinct tracks stored per region. Rows with an
// unknown region are ignored.
func (s *RaceService) Venues(ctx context.Context) (map[racecal.Region][]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT state, track FROM race_program ORDER BY state, track")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	venues := make(map[racecal.Region][]string)
	for rows.Next() {
		var state, track string
		if err := rows.Scan(&state, &track); err != nil {
			return nil, err
		}
		region := racecal.Region(state)
		if !region.Valid() {
			continue
		}
		venues[region] = append(venues[region], track)
	}
	return venues, rows.Err()
}
