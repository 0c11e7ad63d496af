package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/equinegpt/racecal"
)

// Compile-time interface verification.
var (
	_ racecal.RaceService    = (*RaceService)(nil)
	_ racecal.VenueInventory = (*RaceService)(nil)
)

// RaceService implements racecal.RaceService using SQLite.
type RaceService struct {
	db  *DB
	now func() time.Time
}

// NewRaceService creates a new RaceService.
func NewRaceService(db *DB) *RaceService {
	return &RaceService{db: db, now: time.Now}
}

const raceColumns = `date, state, track, race_no, description, prize, condition, class, age, sex,
	distance_m, bonus, url, type, meeting_id`

// upsertRace keeps the stored provider id and grade when a re-harvested
// record lacks them.
const upsertRace = `
	INSERT INTO race_program (` + raceColumns + `, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (date, state, track, race_no) DO UPDATE SET
		description = excluded.description,
		prize       = excluded.prize,
		condition   = excluded.condition,
		class       = excluded.class,
		age         = excluded.age,
		sex         = excluded.sex,
		distance_m  = excluded.distance_m,
		bonus       = excluded.bonus,
		url         = excluded.url,
		type        = COALESCE(excluded.type, race_program.type),
		meeting_id  = COALESCE(excluded.meeting_id, race_program.meeting_id),
		updated_at  = excluded.updated_at
`

// UpsertRaces inserts or updates races in one transaction. Invalid records
// are skipped.
func (s *RaceService) UpsertRaces(ctx context.Context, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return racecal.UpsertResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := s.upsert(ctx, tx, races)
	if err != nil {
		return racecal.UpsertResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return racecal.UpsertResult{}, err
	}
	return res, nil
}

// ReplaceMeeting stores races as the complete program of key. Stored races
// of the meeting whose numbers are absent from races are deleted. Records
// belonging to another meeting are skipped. An empty set leaves the
// meeting untouched.
func (s *RaceService) ReplaceMeeting(ctx context.Context, key racecal.MeetingKey, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	if err := key.Validate(); err != nil {
		return racecal.UpsertResult{}, err
	}

	var res racecal.UpsertResult
	var own []*racecal.RaceRecord
	for _, r := range races {
		if r == nil || r.Key != key {
			res.Skipped++
			continue
		}
		own = append(own, r)
	}
	if len(own) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return racecal.UpsertResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	nums := make([]any, 0, len(own))
	for _, r := range own {
		nums = append(nums, r.RaceNo)
	}
	args := append([]any{formatDate(key.Date), string(key.Region), key.Venue}, nums...)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM race_program
		WHERE date = ? AND state = ? AND track = ? AND race_no NOT IN (`+placeholders(len(nums))+`)
	`, args...); err != nil {
		return racecal.UpsertResult{}, fmt.Errorf("delete stale races: %w", err)
	}

	up, err := s.upsert(ctx, tx, own)
	if err != nil {
		return racecal.UpsertResult{}, err
	}
	res.Add(up)

	if err := tx.Commit(); err != nil {
		return racecal.UpsertResult{}, err
	}
	return res, nil
}

func (s *RaceService) upsert(ctx context.Context, tx *sql.Tx, races []*racecal.RaceRecord) (racecal.UpsertResult, error) {
	var res racecal.UpsertResult
	updatedAt := s.now().UTC().Format(time.RFC3339)

	for _, r := range races {
		if r == nil || r.Validate() != nil {
			res.Skipped++
			continue
		}
		date := formatDate(r.Key.Date)

		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM race_program
			WHERE date = ? AND state = ? AND track = ? AND race_no = ?
		`, date, string(r.Key.Region), r.Key.Venue, r.RaceNo).Scan(&exists)
		if err != nil {
			return res, fmt.Errorf("check race %s #%d: %w", r.Key, r.RaceNo, err)
		}

		if _, err := tx.ExecContext(ctx, upsertRace,
			date, string(r.Key.Region), r.Key.Venue, r.RaceNo, r.Title,
			nullInt(r.Prize), nullString(r.Condition), nullString(r.Class), nullString(r.Age), nullString(r.Sex),
			nullInt(r.DistanceM), nullString(r.Bonus), r.SourceURL, nullString(r.Type), nullString(r.ProviderID),
			updatedAt,
		); err != nil {
			return res, fmt.Errorf("upsert race %s #%d: %w", r.Key, r.RaceNo, err)
		}

		if exists > 0 {
			res.Updated++
		} else {
			res.Inserted++
		}
	}
	return res, nil
}

// FindRaces retrieves races matching the filter ordered by date, state,
// track and race number. Venue matching ignores case.
func (s *RaceService) FindRaces(ctx context.Context, filter racecal.RaceFilter) ([]*racecal.RaceRecord, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + raceColumns + " FROM race_program WHERE 1=1")

	if filter.From != nil {
		query.WriteString(" AND date >= ?")
		args = append(args, formatDate(*filter.From))
	}
	if filter.To != nil {
		query.WriteString(" AND date <= ?")
		args = append(args, formatDate(*filter.To))
	}
	if filter.Region != nil {
		query.WriteString(" AND state = ?")
		args = append(args, string(*filter.Region))
	}
	if filter.Venue != nil {
		query.WriteString(" AND track = ? COLLATE NOCASE")
		args = append(args, *filter.Venue)
	}
	if filter.MissingProviderID {
		query.WriteString(" AND meeting_id IS NULL")
	}

	query.WriteString(" ORDER BY date, state, track, race_no")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	races := make([]*racecal.RaceRecord, 0)
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		races = append(races, r)
	}
	return races, rows.Err()
}

func scanRace(rows *sql.Rows) (*racecal.RaceRecord, error) {
	var (
		r                                      racecal.RaceRecord
		date, state                            string
		prize, distance                        sql.NullInt64
		condition, class, age, sex, bonus, typ sql.NullString
		meetingID                              sql.NullString
	)
	if err := rows.Scan(&date, &state, &r.Key.Venue, &r.RaceNo, &r.Title,
		&prize, &condition, &class, &age, &sex,
		&distance, &bonus, &r.SourceURL, &typ, &meetingID); err != nil {
		return nil, err
	}

	d, err := parseDate(date, "date")
	if err != nil {
		return nil, err
	}
	r.Key.Date = d
	r.Key.Region = racecal.Region(state)
	r.Prize = intPtr(prize)
	r.Condition = stringPtr(condition)
	r.Class = stringPtr(class)
	r.Age = stringPtr(age)
	r.Sex = stringPtr(sex)
	r.DistanceM = intPtr(distance)
	r.Bonus = stringPtr(bonus)
	r.Type = stringPtr(typ)
	r.ProviderID = stringPtr(meetingID)
	return &r, nil
}

// FindMeetings returns the venues with races stored on date.
func (s *RaceService) FindMeetings(ctx context.Context, date time.Time) ([]racecal.VenueRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT state, track FROM race_program
		WHERE date = ?
		ORDER BY state, track
	`, formatDate(racecal.Day(date)))
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

	res, err := s.db.ExecContext(ctx, `
		UPDATE race_program SET meeting_id = ?, updated_at = ?
		WHERE date = ? AND state = ? AND track = ? COLLATE NOCASE
			AND (meeting_id IS NULL OR meeting_id <> ?)
	`, providerID, s.now().UTC().Format(time.RFC3339),
		formatDate(racecal.Day(date)), string(venue.Region), venue.Venue, providerID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteRacesBefore removes races dated strictly before date.
func (s *RaceService) DeleteRacesBefore(ctx context.Context, date time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM race_program WHERE date < ?", formatDate(racecal.Day(date)))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Venues returns the distinct tracks stored per region. Rows with an
// unknown region are ignored.
func (s *RaceService) Venues(ctx context.Context) (map[racecal.Region][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT state, track FROM race_program ORDER BY state, track")
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
