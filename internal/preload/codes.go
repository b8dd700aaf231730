// Package preload materializes all locked half-day assignments for a block
// window from declarative inputs, in a strictly ordered sequence of passes.
package preload

import (
	"strings"
	"time"

	"github.com/rotamed/scheduler/internal/entity"
)

// rotationAliases maps surface variants of rotation codes to canonical ones.
var rotationAliases = map[string]string{
	"PNF":     "PEDNF",
	"PEDSNF":  "PEDNF",
	"KAPI":    "KAP",
	"KAPI-LD": "KAP",
	"OKINAWA": "OKI",
	"L&D":     "LD",
	"LND":     "LD",
}

// lecExemptRotations never get Wednesday lecture preloads.
var lecExemptRotations = map[string]bool{
	"NF": true, "PEDNF": true, "LDNF": true, "TDY": true, "HILO": true, "OKI": true,
}

// offsiteRotations are away rotations preloaded with TDY codes.
var offsiteRotations = map[string]bool{
	"TDY": true, "HILO": true, "OKI": true,
}

// nightFloatRotations pair with day rotations in compound blocks.
var nightFloatRotations = map[string]bool{
	"NF": true, "PEDNF": true, "LDNF": true,
}

// saturdayOffRotations get the default resident weekend-off treatment when
// the active template carries no explicit time-off weekly patterns.
var saturdayOffRotations = map[string]bool{
	"IM": true, "IMW": true, "PEDW": true, "PEDNF": true, "ICU": true, "CCU": true,
	"NICU": true, "NIC": true, "NBN": true, "LAD": true, "LD": true,
	"KAP": true, "HILO": true, "OKI": true, "TDY": true,
}

// CanonicalRotationCode maps a surface rotation code to its canonical form:
// uppercase, alias table, then prefix rules for HILO*, OKI* and KAPI*.
func CanonicalRotationCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return ""
	}
	if canonical, ok := rotationAliases[code]; ok {
		return canonical
	}
	switch {
	case strings.HasPrefix(code, "HILO"):
		return "HILO"
	case strings.HasPrefix(code, "OKI"):
		return "OKI"
	case strings.HasPrefix(code, "KAPI"):
		return "KAP"
	}
	return code
}

// SplitCompoundCode splits a compound rotation abbreviation into its first-
// and second-half codes. Recognized markers: "X-1ST-Y-2ND", "X/Y", "X+Y".
// A non-compound code returns itself with an empty second code.
func SplitCompoundCode(abbrev string) (first, second string) {
	code := strings.ToUpper(strings.TrimSpace(abbrev))

	if strings.Contains(code, "-1ST-") && strings.HasSuffix(code, "-2ND") {
		rest := strings.TrimSuffix(code, "-2ND")
		parts := strings.SplitN(rest, "-1ST-", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return CanonicalRotationCode(parts[0]), CanonicalRotationCode(parts[1])
		}
	}
	for _, sep := range []string{"/", "+"} {
		if parts := strings.SplitN(code, sep, 2); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return CanonicalRotationCode(parts[0]), CanonicalRotationCode(parts[1])
		}
	}
	return CanonicalRotationCode(code), ""
}

// IsLECExempt reports whether the rotation never gets lecture preloads.
func IsLECExempt(code string) bool {
	return lecExemptRotations[code]
}

// IsInternContinuityExempt reports whether PGY-1 Wednesday continuity clinic
// is skipped for the rotation.
func IsInternContinuityExempt(code string) bool {
	return lecExemptRotations[code] || code == "KAP"
}

// IsOffsite reports whether the rotation is an away rotation.
func IsOffsite(code string) bool {
	return offsiteRotations[code]
}

// IsNightFloat reports whether the rotation is a night-float variant.
func IsNightFloat(code string) bool {
	return nightFloatRotations[code]
}

// IsSaturdayOffDefault reports whether the rotation gets the default
// resident weekend-off treatment.
func IsSaturdayOffDefault(code string) bool {
	return saturdayOffRotations[code]
}

// kapCodes returns the (AM, PM) activity codes for a KAP day.
// Mon: KAP/OFF; Tue: OFF/OFF; Wed: C/LEC; Thu through Sun: KAP/KAP.
func kapCodes(d time.Time) (string, string) {
	switch d.Weekday() {
	case time.Monday:
		return entity.CodeKAP, entity.CodeOff
	case time.Tuesday:
		return entity.CodeOff, entity.CodeOff
	case time.Wednesday:
		return entity.CodeClinic, entity.CodeLecture
	default:
		return entity.CodeKAP, entity.CodeKAP
	}
}

// ldnfCodes returns the (AM, PM) activity codes for an LDNF day.
// Fri: C/OFF; Sat and Sun: W/W; Mon through Thu: OFF/LDNF.
func ldnfCodes(d time.Time) (string, string) {
	switch d.Weekday() {
	case time.Friday:
		return entity.CodeClinic, entity.CodeOff
	case time.Saturday, time.Sunday:
		return entity.CodeWeekend, entity.CodeWeekend
	default:
		return entity.CodeOff, entity.CodeLDNF
	}
}

// nfCodes returns the (AM, PM) activity codes for an NF day.
// Weekends: W/W; weekdays: OFF/NF.
func nfCodes(d time.Time) (string, string) {
	if entity.IsWeekend(d) {
		return entity.CodeWeekend, entity.CodeWeekend
	}
	return entity.CodeOff, entity.CodeNF
}

// pednfCodes returns the (AM, PM) activity codes for a PEDNF day.
// Saturday: W/W; every other day: OFF/PedNF.
func pednfCodes(d time.Time) (string, string) {
	if d.Weekday() == time.Saturday {
		return entity.CodeWeekend, entity.CodeWeekend
	}
	return entity.CodeOff, entity.CodePedNF
}

// offsiteCodes returns the (AM, PM) activity codes for a HILO or OKI day:
// pre/post-trip clinic on the first two days and day 20 of the range,
// otherwise away.
func offsiteCodes(d, rangeStart time.Time) (string, string) {
	dayIndex := int(d.Sub(rangeStart).Hours() / 24)
	if dayIndex == 0 || dayIndex == 1 || dayIndex == 19 {
		return entity.CodeClinic, entity.CodeClinic
	}
	return entity.CodeTDY, entity.CodeTDY
}

// rotationDayCodes resolves the (AM, PM) activity codes a canonical rotation
// code produces on a given date. forResident enables the temporary default
// weekend-off treatment for Saturday-off rotations; templateHasTimeOff
// disables it when the active template declares its own time-off patterns.
// ok is false for rotation codes with no fixed day pattern.
func rotationDayCodes(code string, d, rangeStart time.Time, forResident, templateHasTimeOff bool) (am, pm string, ok bool) {
	switch code {
	case "FMIT":
		am, pm, ok = entity.CodeFMIT, entity.CodeFMIT, true
	case "IM", "IMW":
		am, pm, ok = entity.CodeIM, entity.CodeIM, true
	case "PEDW":
		am, pm, ok = entity.CodePedW, entity.CodePedW, true
	case "KAP":
		am, pm = kapCodes(d)
		ok = true
	case "LDNF":
		am, pm = ldnfCodes(d)
		ok = true
	case "NF":
		am, pm = nfCodes(d)
		ok = true
	case "PEDNF":
		am, pm = pednfCodes(d)
		ok = true
	case "HILO", "OKI":
		am, pm = offsiteCodes(d, rangeStart)
		ok = true
	case "TDY":
		am, pm, ok = entity.CodeTDY, entity.CodeTDY, true
	default:
		return "", "", false
	}

	// Temporary resident Saturday-off default until every inpatient template
	// carries explicit time-off weekly patterns. Sunday stays with the
	// rotation's own pattern (PedNF works Sunday nights).
	if forResident && !templateHasTimeOff && d.Weekday() == time.Saturday && IsSaturdayOffDefault(code) {
		return entity.CodeWeekend, entity.CodeWeekend, true
	}
	return am, pm, ok
}

// lastWednesday returns the last Wednesday on or before end.
func lastWednesday(end time.Time) time.Time {
	d := end
	for d.Weekday() != time.Wednesday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// weekInBlock returns the 1-based week index of d within a block window.
func weekInBlock(d, blockStart time.Time) int {
	return int(d.Sub(blockStart).Hours()/24)/7 + 1
}
