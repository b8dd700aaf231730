package entity

import (
	"fmt"
	"time"
)

// HalfDay identifies one half of a scheduling day.
type HalfDay string

const (
	HalfDayAM HalfDay = "AM"
	HalfDayPM HalfDay = "PM"
)

// TimeOfDay extends HalfDay with ALL for draft assignments that fan out to
// both halves at publish.
type TimeOfDay string

const (
	TimeOfDayAM  TimeOfDay = "AM"
	TimeOfDayPM  TimeOfDay = "PM"
	TimeOfDayAll TimeOfDay = "ALL"
)

// HalfDays returns the live half-days a TimeOfDay expands to.
func (t TimeOfDay) HalfDays() []HalfDay {
	switch t {
	case TimeOfDayAM:
		return []HalfDay{HalfDayAM}
	case TimeOfDayPM:
		return []HalfDay{HalfDayPM}
	case TimeOfDayAll:
		return []HalfDay{HalfDayAM, HalfDayPM}
	}
	return nil
}

// ParseHalfDay validates a half-day designator. Rows without one are
// rejected at the boundary; full-day inputs must be folded into AM+PM pairs
// by the caller.
func ParseHalfDay(s string) (HalfDay, error) {
	switch HalfDay(s) {
	case HalfDayAM, HalfDayPM:
		return HalfDay(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrMissingHalfDay, s)
}

// Slot is the canonical scheduling unit key: one person-independent
// (date, half-day) pair.
type Slot struct {
	Date    time.Time
	HalfDay HalfDay
}

// Key renders a stable map key for a slot.
func (s Slot) Key() string {
	return s.Date.Format("2006-01-02") + "/" + string(s.HalfDay)
}

// Block is an indivisible scheduling unit: a (date, half-day) pair carrying
// the 28-day macro-block number it belongs to. Weekends are marked so the
// solver can exclude them from allocation.
type Block struct {
	Date        time.Time
	HalfDay     HalfDay
	BlockNumber int // 1..13 within the academic year
	IsWeekend   bool
}

// Slot returns the block's canonical slot key.
func (b Block) Slot() Slot {
	return Slot{Date: b.Date, HalfDay: b.HalfDay}
}

// BlocksPerYear is the number of 28-day macro-blocks in an academic year.
const BlocksPerYear = 13

// BlockDays is the length of one macro-block window.
const BlockDays = 28

// MidBlockTransitionDay is the 0-indexed day offset at which a block
// assignment with a secondary template switches from primary to secondary:
// dates >= start+11 belong to the second half.
const MidBlockTransitionDay = 11

// AcademicYearStart returns the 1 July start of the given academic year.
func AcademicYearStart(year int) time.Time {
	return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
}

// BlockWindow is the 28-day date range of one macro-block.
type BlockWindow struct {
	Number       int
	AcademicYear int
	Start        time.Time // first day, inclusive
}

// End returns the last day of the window, inclusive.
func (w BlockWindow) End() time.Time {
	return w.Start.AddDate(0, 0, BlockDays-1)
}

// Contains reports whether d falls inside the window.
func (w BlockWindow) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End())
}

// SecondHalfStart returns the first day of the window's second half.
func (w BlockWindow) SecondHalfStart() time.Time {
	return w.Start.AddDate(0, 0, MidBlockTransitionDay)
}

// InSecondHalf reports whether d is on or after the mid-block transition.
func (w BlockWindow) InSecondHalf(d time.Time) bool {
	return !d.Before(w.SecondHalfStart())
}

// DefaultBlockWindow computes the conventional window for a block number:
// block 1 starts on 1 July of the academic year, each subsequent block 28
// days later. Programs with shifted calendars supply explicit starts.
func DefaultBlockWindow(number, academicYear int) (BlockWindow, error) {
	if number < 1 || number > BlocksPerYear {
		return BlockWindow{}, fmt.Errorf("%w: %d", ErrInvalidBlockNumber, number)
	}
	start := AcademicYearStart(academicYear).AddDate(0, 0, (number-1)*BlockDays)
	return BlockWindow{Number: number, AcademicYear: academicYear, Start: start}, nil
}

// IsWeekend reports whether d falls on Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DayOfWeekSunFirst returns the Sunday=0 day-of-week index used by weekly
// patterns. time.Weekday is already Sunday-first, so this is a plain cast;
// Monday=0 inputs from foreign systems are converted before reaching here.
func DayOfWeekSunFirst(d time.Time) int {
	return int(d.Weekday())
}

// DateEqual compares two instants by calendar day.
func DateEqual(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// EachDay calls fn for every day from start to end inclusive.
func EachDay(start, end time.Time, fn func(d time.Time)) {
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}
