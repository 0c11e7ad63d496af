package program

import (
	"strconv"

	"github.com/equinegpt/racecal"
)

// Parse extracts the races of one program page. Every record carries key
// and sourceURL; fields are read only from the record's own block. A race
// number seen twice keeps the first header's values, taking from the later
// one only the fields the first left empty.
func Parse(page string, key racecal.MeetingKey, sourceURL string) []*racecal.RaceRecord {
	var records []*racecal.RaceRecord
	byNo := make(map[int]*racecal.RaceRecord)

	for _, b := range Segment(Clean(page)) {
		if b.RaceNo <= 0 {
			continue
		}
		r := parseBlock(b, key, sourceURL)
		if first, ok := byNo[b.RaceNo]; ok {
			coalesce(first, r)
			continue
		}
		byNo[b.RaceNo] = r
		records = append(records, r)
	}
	return records
}

func parseBlock(b Block, key racecal.MeetingKey, sourceURL string) *racecal.RaceRecord {
	in := Input{Title: b.Title, Block: b.Text}
	r := &racecal.RaceRecord{
		Key:       key,
		RaceNo:    b.RaceNo,
		Title:     b.Title,
		SourceURL: sourceURL,
		Condition: resolve(ConditionRules, in),
		Class:     resolve(ClassRules, in),
		Age:       resolve(AgeRules, in),
		Sex:       resolve(SexRules, in),
	}
	if b.DistanceM > 0 {
		r.DistanceM = ptr(b.DistanceM)
	}
	if v, ok := Resolve(PrizeRules, in); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			r.Prize = ptr(n)
		}
	}
	if v, ok := Bonus(b.Text); ok {
		r.Bonus = ptr(v)
	}
	return r
}

func resolve(rules []Rule, in Input) *string {
	if v, ok := Resolve(rules, in); ok {
		return &v
	}
	return nil
}

// coalesce fills the empty optional fields of dst from src.
func coalesce(dst, src *racecal.RaceRecord) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Prize == nil {
		dst.Prize = src.Prize
	}
	if dst.Condition == nil {
		dst.Condition = src.Condition
	}
	if dst.Class == nil {
		dst.Class = src.Class
	}
	if dst.Age == nil {
		dst.Age = src.Age
	}
	if dst.DistanceM == nil {
		dst.DistanceM = src.DistanceM
	}
	if dst.Bonus == nil {
		dst.Bonus = src.Bonus
	}
}

func ptr[T any](v T) *T {
	return &v
}
