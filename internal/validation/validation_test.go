package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSeverityCounts(t *testing.T) {
	r := NewResult()
	assert.True(t, r.IsValid())
	assert.False(t, r.HasWarnings())

	r.AddError(CodeCoverageGap, "Tuesday AM uncovered")
	r.AddWarning(CodeACGMEHours, "84 hours for R2")
	r.AddWarning(CodeACGMEHours, "88 hours for R1")
	r.AddInfo("LOADED", "loaded 120 rows")

	assert.False(t, r.IsValid())
	assert.Equal(t, 1, r.ErrorCount())
	assert.Equal(t, 2, r.WarningCount())
	assert.True(t, r.HasWarnings())
	assert.Equal(t, []string{"84 hours for R2", "88 hours for R1"}, r.WarningTexts())
}

func TestResultMerge(t *testing.T) {
	a := NewResult().AddError("A", "first")
	b := NewResult().AddWarning("B", "second")
	a.Merge(b)
	assert.Len(t, a.Messages, 2)
	a.Merge(nil)
	assert.Len(t, a.Messages, 2)
}

func TestResultJSONRoundTrip(t *testing.T) {
	r := NewResult().AddWarning(CodeACGMEHours, "too many hours")
	encoded, err := r.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, encoded, CodeACGMEHours)
}

func TestSummary(t *testing.T) {
	assert.Contains(t, NewResult().Summary(), "no messages")
	r := NewResult().AddError("X", "boom")
	assert.Contains(t, r.Summary(), "1 errors")
}
