package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpsert(t *testing.T) {
	sql, err := BuildUpsert(UpsertConfig{
		Table:        "signals.location_signals",
		Columns:      []string{"id", "location_key", "kind", "payload"},
		ConflictKeys: []string{"location_key", "kind"},
		UpdateCols:   []string{"payload"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "signals"."location_signals" ("id", "location_key", "kind", "payload") VALUES ($1, $2, $3, $4) `+
			`ON CONFLICT ("location_key", "kind") DO UPDATE SET "payload" = EXCLUDED."payload"`,
		sql)
}

func TestBuildUpsert_DefaultUpdateColsAndValueExprs(t *testing.T) {
	sql, err := BuildUpsert(UpsertConfig{
		Table:        "location_signals",
		Columns:      []string{"location_key", "kind", "location", "computed_at"},
		ConflictKeys: []string{"location_key", "kind"},
		ValueExprs:   map[string]string{"location": "ST_GeomFromEWKB(%s)"},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, `VALUES ($1, $2, ST_GeomFromEWKB($3), $4)`)
	assert.Contains(t, sql, `DO UPDATE SET "location" = EXCLUDED."location", "computed_at" = EXCLUDED."computed_at"`)
	assert.NotContains(t, sql, `"kind" = EXCLUDED`)
}

func TestBuildUpsert_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{"no table", UpsertConfig{Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "no table specified"},
		{"no columns", UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, "no columns specified"},
		{"no conflict keys", UpsertConfig{Table: "t", Columns: []string{"id", "name"}}, "no conflict keys specified"},
		{"only key columns", UpsertConfig{Table: "t", Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "nothing to update"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildUpsert(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"signals.location_signals", `"signals"."location_signals"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
