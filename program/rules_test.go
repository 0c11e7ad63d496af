package program_test

import (
	"testing"

	"github.com/equinegpt/racecal/program"
	"github.com/stretchr/testify/assert"
)

func names(rules []program.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name
	}
	return out
}

func TestRuleOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"of", "prizemoney", "max-dollar"}, names(program.PrizeRules))
	assert.Equal(t, []string{"swp", "sw", "quality", "hcp", "wfa"}, names(program.ConditionRules))
	assert.Equal(t, []string{
		"group", "listed", "benchmark", "base-rating", "rtg", "maiden", "class-n",
		"block-benchmark", "block-base-rating", "block-rtg", "block-class-n",
		"ratings-band", "open",
	}, names(program.ClassRules))
	assert.Equal(t, []string{"no-restriction", "yo-and-up", "yo", "num-and-up", "word-and-up", "word"}, names(program.AgeRules))
}

func TestPrizeRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		block string
		want  string
		rule  string
	}{
		{"of amount wins", "First $50,000. Of $80,000.", "80000", "of"},
		{"total prizemoney", "Total Prizemoney $150,000 plus trophies", "150000", "prizemoney"},
		{"largest dollar amount", "First $9,000, Second $3,000, Third $12,500", "12500", "max-dollar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := program.Input{Block: tt.block}
			got, ok := program.Resolve(program.PrizeRules, in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rule, program.RuleName(program.PrizeRules, in))
		})
	}

	t.Run("no amount", func(t *testing.T) {
		t.Parallel()
		_, ok := program.Resolve(program.PrizeRules, program.Input{Block: "Trophy only"})
		assert.False(t, ok)
	})
}

func TestConditionRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		block string
		want  string
	}{
		{"Set Weights and Penalties. Handicap.", "SWP"},
		{"SWP", "SWP"},
		{"Set Weights. Quality.", "SW"},
		{"Quality. Handicap.", "Quality"},
		{"Handicap. Weight for Age.", "Hcp"},
		{"HCP", "Hcp"},
		{"Weight for Age", "WFA"},
	}
	for _, tt := range tests {
		t.Run(tt.block, func(t *testing.T) {
			t.Parallel()
			got, ok := program.Resolve(program.ConditionRules, program.Input{Block: tt.block})
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		block string
		want  string
	}{
		{"benchmark in block", "Example Handicap", "BENCHMARK 78 Handicap", "BM78"},
		{"group outranks title", "Maiden Benchmark 64", "Group 3. Set Weights.", "Group 3"},
		{"listed outranks title", "BM70 Handicap", "Listed race.", "Listed"},
		{"benchmark plus in title", "BM64+ Handicap", "", "BM64+"},
		{"base rating", "Base Rating 71 Handicap", "", "BM71"},
		{"wa rtg", "RTG 66+ Handicap", "", "BM66+"},
		{"maiden", "Sportsbet Maiden Plate", "", "Maiden"},
		{"title benchmark before maiden", "Maiden BM58", "", "BM58"},
		{"maiden before block benchmark", "Maiden Plate", "Benchmark 70 conditions apply", "Maiden"},
		{"class n in title", "Class 3 Handicap", "", "CL3"},
		{"class n in block", "Example Handicap", "Class 1.", "CL1"},
		{"ratings band", "Example Handicap", "Ratings Band 0-55", "0-55"},
		{"open in title", "Open Handicap", "", "Open"},
		{"no class restriction", "Example Handicap", "No class restriction.", "Open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := program.Resolve(program.ClassRules, program.Input{Title: tt.title, Block: tt.block})
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no signal", func(t *testing.T) {
		t.Parallel()
		_, ok := program.Resolve(program.ClassRules, program.Input{Title: "Example Handicap", Block: "Set Weights."})
		assert.False(t, ok)
	})
}

func TestAgeRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		block string
		want  string
	}{
		{"No age restriction.", "No Restrictions"},
		{"3YO+ Handicap", "3+"},
		{"2YO Fillies", "2"},
		{"4 Years Old and Upwards", "4+"},
		{"Three-Years-Old and Upwards", "3+"},
		{"Four Years Old & Up", "4+"},
		{"Two-Years-Old.", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.block, func(t *testing.T) {
			t.Parallel()
			got, ok := program.Resolve(program.AgeRules, program.Input{Block: tt.block})
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSexRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		block string
		want  string
	}{
		{"title over block", "Fillies Handicap", "Colts & Geldings.", "Fillies"},
		{"open title over block", "Open Handicap", "Fillies.", "Open"},
		{"block when title silent", "Example Plate", "F&M.", "Fillies & Mares"},
		{"no sex restriction", "Example Plate", "No sex restrictions.", "Open"},
		{"geldings", "Example Plate", "Geldings.", "Colts & Geldings"},
		{"mares", "Mares Handicap", "", "Mares"},
		{"defaults to open", "Example Plate", "Set Weights.", "Open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := program.Resolve(program.SexRules, program.Input{Title: tt.title, Block: tt.block})
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBonus(t *testing.T) {
	t.Parallel()

	t.Run("joins scheme and nominator lines", func(t *testing.T) {
		t.Parallel()

		got, ok := program.Bonus("QTIS bonus available. Nominator Bonus $1,000. Magic Millions bonus available.")

		assert.True(t, ok)
		assert.Equal(t, "QTIS bonus available | Magic Millions bonus available | Nominator Bonus $1,000", got)
	})

	t.Run("drops duplicates ignoring case", func(t *testing.T) {
		t.Parallel()

		got, ok := program.Bonus("BOBS Bonus available. bobs bonus available.")

		assert.True(t, ok)
		assert.Equal(t, "BOBS Bonus available", got)
	})

	t.Run("ignores markup noise", func(t *testing.T) {
		t.Parallel()

		_, ok := program.Bonus(`VOBIS logo alt="VOBIS bonus" width=40 height=20`)

		assert.False(t, ok)
	})

	t.Run("scheme without bonus word is not a bonus", func(t *testing.T) {
		t.Parallel()

		_, ok := program.Bonus("WESTSPEED eligible race.")

		assert.False(t, ok)
	})
}
