package preload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rotamed/scheduler/internal/entity"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCanonicalRotationCode(t *testing.T) {
	cases := map[string]string{
		"PNF":      "PEDNF",
		"pnf":      "PEDNF",
		"KAPI":     "KAP",
		"KAPI-LD":  "KAP",
		"OKINAWA":  "OKI",
		"HILO-3":   "HILO",
		"OKI2":     "OKI",
		"KAPI2":    "KAP",
		"FMIT":     "FMIT",
		"neuro":    "NEURO",
		" NF ":     "NF",
		"":         "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, CanonicalRotationCode(raw), "raw=%q", raw)
	}
}

func TestSplitCompoundCode(t *testing.T) {
	first, second := SplitCompoundCode("NEURO-1ST-NF-2ND")
	assert.Equal(t, "NEURO", first)
	assert.Equal(t, "NF", second)

	first, second = SplitCompoundCode("ENT/PNF")
	assert.Equal(t, "ENT", first)
	assert.Equal(t, "PEDNF", second)

	first, second = SplitCompoundCode("DERM+NF")
	assert.Equal(t, "DERM", first)
	assert.Equal(t, "NF", second)

	first, second = SplitCompoundCode("FMIT")
	assert.Equal(t, "FMIT", first)
	assert.Empty(t, second)
}

func TestExemptionSets(t *testing.T) {
	for _, code := range []string{"NF", "PEDNF", "LDNF", "TDY", "HILO", "OKI"} {
		assert.True(t, IsLECExempt(code), code)
		assert.True(t, IsInternContinuityExempt(code), code)
	}
	assert.False(t, IsLECExempt("KAP"))
	assert.True(t, IsInternContinuityExempt("KAP"))
	assert.False(t, IsInternContinuityExempt("FMC"))

	assert.True(t, IsOffsite("HILO"))
	assert.False(t, IsOffsite("NF"))
	assert.True(t, IsNightFloat("LDNF"))
	assert.False(t, IsNightFloat("KAP"))
}

func TestKAPCodes(t *testing.T) {
	am, pm := kapCodes(day(2026, time.March, 16)) // Monday
	assert.Equal(t, entity.CodeKAP, am)
	assert.Equal(t, entity.CodeOff, pm)

	am, pm = kapCodes(day(2026, time.March, 17)) // Tuesday
	assert.Equal(t, entity.CodeOff, am)
	assert.Equal(t, entity.CodeOff, pm)

	am, pm = kapCodes(day(2026, time.March, 18)) // Wednesday
	assert.Equal(t, entity.CodeClinic, am)
	assert.Equal(t, entity.CodeLecture, pm)

	am, pm = kapCodes(day(2026, time.March, 19)) // Thursday
	assert.Equal(t, entity.CodeKAP, am)
	assert.Equal(t, entity.CodeKAP, pm)

	am, pm = kapCodes(day(2026, time.March, 22)) // Sunday
	assert.Equal(t, entity.CodeKAP, am)
	assert.Equal(t, entity.CodeKAP, pm)
}

func TestLDNFCodes(t *testing.T) {
	am, pm := ldnfCodes(day(2026, time.March, 20)) // Friday
	assert.Equal(t, entity.CodeClinic, am)
	assert.Equal(t, entity.CodeOff, pm)

	am, pm = ldnfCodes(day(2026, time.March, 21)) // Saturday
	assert.Equal(t, entity.CodeWeekend, am)
	assert.Equal(t, entity.CodeWeekend, pm)

	am, pm = ldnfCodes(day(2026, time.March, 23)) // Monday
	assert.Equal(t, entity.CodeOff, am)
	assert.Equal(t, entity.CodeLDNF, pm)
}

func TestNFAndPedNFCodes(t *testing.T) {
	am, pm := nfCodes(day(2026, time.March, 24)) // Tuesday
	assert.Equal(t, entity.CodeOff, am)
	assert.Equal(t, entity.CodeNF, pm)

	am, pm = nfCodes(day(2026, time.March, 28)) // Saturday
	assert.Equal(t, entity.CodeWeekend, am)
	assert.Equal(t, entity.CodeWeekend, pm)

	am, pm = pednfCodes(day(2026, time.March, 28)) // Saturday
	assert.Equal(t, entity.CodeWeekend, am)
	assert.Equal(t, entity.CodeWeekend, pm)

	// Sunday is a working night for PedNF.
	am, pm = pednfCodes(day(2026, time.March, 29))
	assert.Equal(t, entity.CodeOff, am)
	assert.Equal(t, entity.CodePedNF, pm)
}

func TestOffsiteCodes(t *testing.T) {
	start := day(2026, time.March, 12)

	am, pm := offsiteCodes(start, start)
	assert.Equal(t, entity.CodeClinic, am)
	assert.Equal(t, entity.CodeClinic, pm)

	am, pm = offsiteCodes(start.AddDate(0, 0, 1), start)
	assert.Equal(t, entity.CodeClinic, am)
	assert.Equal(t, entity.CodeClinic, pm)

	am, pm = offsiteCodes(start.AddDate(0, 0, 5), start)
	assert.Equal(t, entity.CodeTDY, am)
	assert.Equal(t, entity.CodeTDY, pm)

	// Day 20 of the range is the post-trip clinic day.
	am, pm = offsiteCodes(start.AddDate(0, 0, 19), start)
	assert.Equal(t, entity.CodeClinic, am)
	assert.Equal(t, entity.CodeClinic, pm)
}

func TestRotationDayCodesSaturdayOffDefault(t *testing.T) {
	saturday := day(2026, time.March, 21)

	// Resident on a Saturday-off rotation without template overrides.
	am, pm, ok := rotationDayCodes("IM", saturday, saturday, true, false)
	assert.True(t, ok)
	assert.Equal(t, entity.CodeWeekend, am)
	assert.Equal(t, entity.CodeWeekend, pm)

	// Explicit template time-off patterns disable the default.
	am, pm, ok = rotationDayCodes("IM", saturday, saturday, true, true)
	assert.True(t, ok)
	assert.Equal(t, entity.CodeIM, am)

	// Faculty never get the default.
	am, _, ok = rotationDayCodes("IM", saturday, saturday, false, false)
	assert.True(t, ok)
	assert.Equal(t, entity.CodeIM, am)

	// FMIT works weekends regardless.
	am, pm, ok = rotationDayCodes("FMIT", saturday, saturday, true, false)
	assert.True(t, ok)
	assert.Equal(t, entity.CodeFMIT, am)
	assert.Equal(t, entity.CodeFMIT, pm)

	_, _, ok = rotationDayCodes("NEURO", saturday, saturday, true, false)
	assert.False(t, ok)
}

func TestLastWednesday(t *testing.T) {
	assert.Equal(t, day(2026, time.April, 8), lastWednesday(day(2026, time.April, 8)))
	assert.Equal(t, day(2026, time.April, 8), lastWednesday(day(2026, time.April, 10)))
	assert.Equal(t, day(2026, time.April, 1), lastWednesday(day(2026, time.April, 7)))
}

func TestWeekInBlock(t *testing.T) {
	start := day(2026, time.March, 12)
	assert.Equal(t, 1, weekInBlock(start, start))
	assert.Equal(t, 1, weekInBlock(start.AddDate(0, 0, 6), start))
	assert.Equal(t, 2, weekInBlock(start.AddDate(0, 0, 7), start))
	assert.Equal(t, 4, weekInBlock(start.AddDate(0, 0, 27), start))
}
