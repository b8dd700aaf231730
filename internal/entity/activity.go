package entity

import (
	"time"

	"github.com/google/uuid"
)

// ActivityCategory classifies what an activity code represents.
type ActivityCategory string

const (
	ActivityCategoryClinical       ActivityCategory = "CLINICAL"
	ActivityCategoryTimeOff        ActivityCategory = "TIME_OFF"
	ActivityCategoryAcademic       ActivityCategory = "ACADEMIC"
	ActivityCategoryAdministrative ActivityCategory = "ADMINISTRATIVE"
)

// Activity is an atomic schedulable code such as FMIT, CALL or LV-AM.
// Activities are externally owned reference data.
type Activity struct {
	ID                        uuid.UUID
	Code                      string
	Name                      string
	Category                  ActivityCategory
	CountsTowardClinicalHours bool
	CountsTowardCapacity      bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// IsTimeOff reports whether the activity is a time-off code; time-off
// preloads get the narrow overwrite exception against other preloads.
func (a *Activity) IsTimeOff() bool {
	return a.Category == ActivityCategoryTimeOff
}

// Normative activity codes. The set is open (programs add their own) but
// these are the codes the preload layer emits directly.
const (
	CodeFMIT            = "FMIT"
	CodeIM              = "IM"
	CodePedW            = "PedW"
	CodeNF              = "NF"
	CodePedNF           = "PedNF"
	CodeLDNF            = "LDNF"
	CodeKAP             = "KAP"
	CodeTDY             = "TDY"
	CodeCall            = "CALL"
	CodePostCall        = "PCAT"
	CodeDayOff          = "DO"
	CodeLeaveAM         = "LV-AM"
	CodeLeavePM         = "LV-PM"
	CodeLecture         = "LEC"
	CodeAdvising        = "ADV"
	CodeSportsMed       = "aSM"
	CodeWeekend         = "W"
	CodeOff             = "OFF"
	CodeFMClinic        = "fm_clinic"
	CodeClinic          = "C"
	CodeClinicInpatient = "C-I"
	CodeClinicNight     = "C-N"
)
