package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  SearchFilter
		wantErr bool
	}{
		{"Valid range", SearchFilter{Min: 10, Max: 50}, false},
		{"Equal bounds", SearchFilter{Min: 20, Max: 20}, false},
		{"Inverted range", SearchFilter{Min: 50, Max: 10}, true},
		{"Negative bound", SearchFilter{Min: -1, Max: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReportJSONShape(t *testing.T) {
	report := Report{
		Title:    "tea",
		Date:     "18/10/Y 09:30:00",
		Currency: "£",
		Filters:  SearchFilter{Min: 10, Max: 50},
		BaseLink: "https://www.amazon.co.uk/",
		Products: []ProductRecord{},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Nil(t, raw["best_item"])
	assert.Equal(t, []any{}, raw["products"])
	assert.Equal(t, map[string]any{"min": 10.0, "max": 50.0}, raw["filters"])
	assert.NotContains(t, raw, "GeneratedAt")
}
