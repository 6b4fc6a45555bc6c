package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisenergy/checklist/internal/ir"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr []string
	}{
		{
			name:  "select all",
			query: Select{From: "answers"},
		},
		{
			name: "filtered pointer select",
			query: &Select{
				From: "answers",
				Filter: &And{Predicates: []Predicate{
					&Equals{Field: "subject_id", Value: ir.IRString("home-1")},
					Equals{Field: "seq", Value: ir.IRInt(3)},
				}},
				Columns: []string{"measure_id", "value"},
			},
		},
		{
			name:  "JSON column takes structured values",
			query: Select{From: "answers", Filter: &Equals{Field: "value", Value: ir.IRArray{ir.IRString("ERV")}}},
		},
		{
			name:    "unknown table",
			query:   Select{From: "answers; DROP TABLE answers"},
			wantErr: []string{`unknown table "answers; DROP TABLE answers"`},
		},
		{
			name:    "unknown column",
			query:   Select{From: "subjects", Columns: []string{"id", "flow_token"}},
			wantErr: []string{`unknown column "flow_token" in table "subjects"`},
		},
		{
			name:    "unknown filter column",
			query:   Select{From: "evaluations", Filter: &Equals{Field: "seq = 1 OR 1", Value: ir.IRInt(1)}},
			wantErr: []string{`unknown column "seq = 1 OR 1"`},
		},
		{
			name:    "null comparison",
			query:   Select{From: "answers", Filter: &Equals{Field: "program", Value: ir.IRNull{}}},
			wantErr: []string{`column "program" compared to null`},
		},
		{
			name:    "structured value on scalar column",
			query:   Select{From: "answers", Filter: &Equals{Field: "program", Value: ir.IRArray{}}},
			wantErr: []string{`column "program" holds a scalar`},
		},
		{
			name: "errors are collected",
			query: Select{From: "answers", Filter: &And{Predicates: []Predicate{
				&Equals{Field: "a", Value: ir.IRInt(1)},
				&Equals{Field: "b", Value: ir.IRInt(2)},
			}}},
			wantErr: []string{`unknown column "a"`, `unknown column "b"`},
		},
		{
			name:    "nil query",
			query:   nil,
			wantErr: []string{"nil query"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestWhere(t *testing.T) {
	pred, err := Where(map[string]any{"seq": 2, "measure_id": "top"})
	require.NoError(t, err)

	and, ok := pred.(*And)
	require.True(t, ok)
	assert.Equal(t, []Predicate{
		&Equals{Field: "measure_id", Value: ir.IRString("top")},
		&Equals{Field: "seq", Value: ir.IRInt(2)},
	}, and.Predicates)

	pred, err = Where(nil)
	require.NoError(t, err)
	assert.Nil(t, pred)

	_, err = Where(map[string]any{"value": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "value"`)
}

func TestTableColumns(t *testing.T) {
	answers := Schema["answers"]
	assert.Equal(t, []string{"seq", "subject_id", "program", "measure_id", "value", "recorded_by"}, answers.ColumnNames())

	col, ok := answers.Column("value")
	require.True(t, ok)
	assert.True(t, col.JSON)

	_, ok = answers.Column("document")
	assert.False(t, ok)
}
