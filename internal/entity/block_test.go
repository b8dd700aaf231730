package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testID(n byte) [16]byte {
	var id [16]byte
	id[15] = n
	return id
}

func TestParseHalfDay(t *testing.T) {
	hd, err := ParseHalfDay("AM")
	require.NoError(t, err)
	assert.Equal(t, HalfDayAM, hd)

	_, err = ParseHalfDay("")
	assert.ErrorIs(t, err, ErrMissingHalfDay)
	_, err = ParseHalfDay("FULL")
	assert.ErrorIs(t, err, ErrMissingHalfDay)
}

func TestTimeOfDayHalfDays(t *testing.T) {
	assert.Equal(t, []HalfDay{HalfDayAM}, TimeOfDayAM.HalfDays())
	assert.Equal(t, []HalfDay{HalfDayPM}, TimeOfDayPM.HalfDays())
	assert.Equal(t, []HalfDay{HalfDayAM, HalfDayPM}, TimeOfDayAll.HalfDays())
}

func TestBlockWindowMidBlockTransition(t *testing.T) {
	// Block 10 starting 2026-03-12: day 10 is first half, day 12 second.
	window := BlockWindow{Number: 10, AcademicYear: 2025, Start: date(2026, time.March, 12)}

	assert.Equal(t, date(2026, time.April, 8), window.End())
	assert.Equal(t, date(2026, time.March, 23), window.SecondHalfStart())
	assert.False(t, window.InSecondHalf(date(2026, time.March, 22)))
	assert.True(t, window.InSecondHalf(date(2026, time.March, 24)))
	assert.True(t, window.Contains(date(2026, time.March, 12)))
	assert.False(t, window.Contains(date(2026, time.April, 9)))
}

func TestDefaultBlockWindow(t *testing.T) {
	window, err := DefaultBlockWindow(1, 2025)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.July, 1), window.Start)

	window, err = DefaultBlockWindow(2, 2025)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.July, 29), window.Start)

	_, err = DefaultBlockWindow(0, 2025)
	assert.ErrorIs(t, err, ErrInvalidBlockNumber)
	_, err = DefaultBlockWindow(14, 2025)
	assert.ErrorIs(t, err, ErrInvalidBlockNumber)
}

func TestBlockAssignmentActiveTemplate(t *testing.T) {
	window := BlockWindow{Number: 10, AcademicYear: 2025, Start: date(2026, time.March, 12)}
	primary, secondary := RotationID(testID(1)), RotationID(testID(2))
	ba := &BlockAssignment{PrimaryTemplateID: primary, SecondaryTemplateID: &secondary}

	assert.Equal(t, primary, ba.ActiveTemplateID(window, date(2026, time.March, 22)))
	assert.Equal(t, secondary, ba.ActiveTemplateID(window, date(2026, time.March, 24)))

	// Without a secondary, primary governs the whole block.
	ba.SecondaryTemplateID = nil
	assert.Equal(t, primary, ba.ActiveTemplateID(window, date(2026, time.March, 24)))
}

func TestIsWeekendAndDayOfWeek(t *testing.T) {
	assert.True(t, IsWeekend(date(2026, time.March, 21)))  // Saturday
	assert.True(t, IsWeekend(date(2026, time.March, 22)))  // Sunday
	assert.False(t, IsWeekend(date(2026, time.March, 23))) // Monday

	assert.Equal(t, 0, DayOfWeekSunFirst(date(2026, time.March, 22)))
	assert.Equal(t, 3, DayOfWeekSunFirst(date(2026, time.March, 25)))
}
