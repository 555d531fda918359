package pid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMatchCategory_SingleMatch(t *testing.T) {
	matches, warnings := MatchCategory("AB-1234", map[Category]PatternSpec{
		CategoryEquipment: PlainPattern(`[A-Z]{2}-\d{4}`),
	})

	assert.Empty(t, warnings)
	assert.Equal(t, []Match{{Category: CategoryEquipment, Text: "AB-1234"}}, matches)
}

func TestMatchCategory_InvalidPatternIsolated(t *testing.T) {
	matches, warnings := MatchCategory("AB-1234", map[Category]PatternSpec{
		CategoryEquipment: PlainPattern(`[A-Z]{2}-\d{4}`),
		CategoryLine:      PlainPattern(`(unclosed`),
	})

	require.Len(t, warnings, 1)
	assert.True(t, IsConfiguration(warnings[0]))
	assert.Equal(t, CategoryLine, warnings[0].Category)
	assert.Equal(t, []Match{{Category: CategoryEquipment, Text: "AB-1234"}}, matches)
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns map[Category]PatternSpec
		text     string
		want     []Match
	}{
		{
			name:     "case insensitive",
			patterns: map[Category]PatternSpec{CategoryNotesAndHolds: PlainPattern(`(?:NOTE|HOLD)\s+\d+`)},
			text:     "see note 12",
			want:     []Match{{Category: CategoryNotesAndHolds, Text: "note 12"}},
		},
		{
			name:     "global matching",
			patterns: map[Category]PatternSpec{CategoryEquipment: PlainPattern(`P-\d{3}`)},
			text:     "P-101 / P-102",
			want: []Match{
				{Category: CategoryEquipment, Text: "P-101"},
				{Category: CategoryEquipment, Text: "P-102"},
			},
		},
		{
			name: "categories are not exclusive and come back in fixed order",
			patterns: map[Category]PatternSpec{
				CategoryNotesAndHolds: PlainPattern(`HOLD\s?\d`),
				CategoryEquipment:     PlainPattern(`HOLD\s?\d`),
			},
			text: "HOLD 1",
			want: []Match{
				{Category: CategoryEquipment, Text: "HOLD 1"},
				{Category: CategoryNotesAndHolds, Text: "HOLD 1"},
			},
		},
		{
			name: "function number pattern with default separator",
			patterns: map[Category]PatternSpec{
				CategoryInstrument: FunctionNumberPattern(`[A-Z]{2,3}`, `\d{3,4}`, ""),
			},
			text: "FIC 2001 and PT1001",
			want: []Match{
				{Category: CategoryInstrument, Text: "FIC 2001"},
				{Category: CategoryInstrument, Text: "PT1001"},
			},
		},
		{
			name:     "empty pattern ignored",
			patterns: map[Category]PatternSpec{CategoryLine: PlainPattern("")},
			text:     "anything",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.patterns)
			assert.Empty(t, m.Warnings())
			assert.Equal(t, tt.want, m.Match(tt.text))
		})
	}
}

func TestPatternSpec_JSON(t *testing.T) {
	t.Run("historical string form", func(t *testing.T) {
		var p PatternSpec
		require.NoError(t, json.Unmarshal([]byte(`"[A-Z]{2}\\d+"`), &p))
		assert.Equal(t, PlainPattern(`[A-Z]{2}\d+`), p)
	})

	t.Run("object form", func(t *testing.T) {
		var p PatternSpec
		require.NoError(t, json.Unmarshal([]byte(`{"func":"[A-Z]{2}","num":"\\d{4}"}`), &p))
		assert.Equal(t, PatternFunctionNumber, p.Kind)
		assert.Equal(t, `[A-Z]{2}\s?\d{4}`, p.Expression())

		data, err := json.Marshal(p)
		require.NoError(t, err)
		assert.JSONEq(t, `{"func":"[A-Z]{2}","num":"\\d{4}"}`, string(data))
	})

	t.Run("rejects other shapes", func(t *testing.T) {
		var p PatternSpec
		assert.Error(t, json.Unmarshal([]byte(`42`), &p))
	})
}

func TestPatternSpec_YAML(t *testing.T) {
	src := `
Equipment: '[A-Z]-\d{3}'
Instrument:
  func: '[A-Z]{2,4}'
  num: '\d{3,5}'
  separator: '-?'
`
	var patterns map[Category]PatternSpec
	require.NoError(t, yaml.Unmarshal([]byte(src), &patterns))

	assert.Equal(t, PlainPattern(`[A-Z]-\d{3}`), patterns[CategoryEquipment])
	assert.Equal(t, `[A-Z]{2,4}-?\d{3,5}`, patterns[CategoryInstrument].Expression())
}
