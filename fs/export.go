// Package fs exports stored race programs as one JSON file per meeting.
package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/equinegpt/racecal"
)

// MeetingFile is the document written for one meeting.
type MeetingFile struct {
	Key        string                `json:"key"`
	Date       string                `json:"date"`
	Region     racecal.Region        `json:"region"`
	Venue      string                `json:"venue"`
	ProviderID *string               `json:"providerId,omitempty"`
	Exported   time.Time             `json:"exported"`
	Races      []*racecal.RaceRecord `json:"races"`
}

// MeetingPath returns the path of a meeting's file relative to the export
// root, e.g. 2025-09-20/VIC/flemington.json.
func MeetingPath(key racecal.MeetingKey) string {
	return filepath.Join(key.ISODate(), string(key.Region), slug(key.Venue)+".json")
}

func slug(venue string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(venue) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Exporter writes meeting files with atomic update semantics. Files are
// written to baseDir/name.tmp and moved to baseDir/name on Commit, so a
// reader never sees a half-written export.
type Exporter struct {
	baseDir string
	name    string
	now     func() time.Time
}

// NewExporter creates an Exporter. baseDir is the parent directory and
// name the export directory within it.
func NewExporter(baseDir, name string) *Exporter {
	return &Exporter{
		baseDir: baseDir,
		name:    name,
		now:     time.Now,
	}
}

func (e *Exporter) tempDir() string {
	return filepath.Join(e.baseDir, e.name+".tmp")
}

// Dir returns the final export directory.
func (e *Exporter) Dir() string {
	return filepath.Join(e.baseDir, e.name)
}

// Save writes one meeting's races to the temporary directory.
func (e *Exporter) Save(ctx context.Context, key racecal.MeetingKey, races []*racecal.RaceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	f := MeetingFile{
		Key:      key.String(),
		Date:     key.ISODate(),
		Region:   key.Region,
		Venue:    key.Venue,
		Exported: e.now().UTC(),
		Races:    races,
	}
	for _, r := range races {
		if r.ProviderID != nil {
			f.ProviderID = r.ProviderID
			break
		}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	fullPath := filepath.Join(e.tempDir(), MeetingPath(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, append(data, '\n'), 0644)
}

// SaveRaces groups races by meeting and saves each meeting. It returns
// the number of meetings written.
func (e *Exporter) SaveRaces(ctx context.Context, races []*racecal.RaceRecord) (int, error) {
	var order []racecal.MeetingKey
	byKey := make(map[racecal.MeetingKey][]*racecal.RaceRecord)
	for _, r := range races {
		if _, ok := byKey[r.Key]; !ok {
			order = append(order, r.Key)
		}
		byKey[r.Key] = append(byKey[r.Key], r)
	}

	for i, key := range order {
		if err := e.Save(ctx, key, byKey[key]); err != nil {
			return i, err
		}
	}
	return len(order), nil
}

// Commit replaces the final directory with the temporary one.
func (e *Exporter) Commit() error {
	if err := os.MkdirAll(e.tempDir(), 0755); err != nil {
		return err
	}
	if err := os.RemoveAll(e.Dir()); err != nil {
		return err
	}
	return os.Rename(e.tempDir(), e.Dir())
}

// Abort discards everything saved since the last Commit.
func (e *Exporter) Abort() error {
	return os.RemoveAll(e.tempDir())
}
