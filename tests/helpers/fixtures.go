package helpers

import (
	"context"
	"testing"

	"github.com/rotamed/scheduler/internal/entity"
	"github.com/rotamed/scheduler/internal/repository"
)

// coreActivities is the reference activity set the preload passes emit.
var coreActivities = []entity.Activity{
	{Code: entity.CodeFMIT, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeIM, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodePedW, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeNF, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodePedNF, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeLDNF, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeKAP, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeTDY, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true},
	{Code: entity.CodeCall, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true},
	{Code: entity.CodePostCall, Category: entity.ActivityCategoryAdministrative},
	{Code: entity.CodeDayOff, Category: entity.ActivityCategoryTimeOff},
	{Code: entity.CodeLeaveAM, Category: entity.ActivityCategoryTimeOff},
	{Code: entity.CodeLeavePM, Category: entity.ActivityCategoryTimeOff},
	{Code: entity.CodeLecture, Category: entity.ActivityCategoryAcademic},
	{Code: entity.CodeAdvising, Category: entity.ActivityCategoryAcademic},
	{Code: entity.CodeSportsMed, Category: entity.ActivityCategoryAdministrative},
	{Code: entity.CodeWeekend, Category: entity.ActivityCategoryTimeOff},
	{Code: entity.CodeOff, Category: entity.ActivityCategoryTimeOff},
	{Code: entity.CodeFMClinic, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeClinic, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeClinicInpatient, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
	{Code: entity.CodeClinicNight, Category: entity.ActivityCategoryClinical, CountsTowardClinicalHours: true, CountsTowardCapacity: true},
}

// SeedActivities loads the reference activity set into a store.
func SeedActivities(t *testing.T, db repository.Database) {
	t.Helper()
	ctx := context.Background()
	for i := range coreActivities {
		activity := coreActivities[i]
		if err := db.ActivityRepository().Create(ctx, &activity); err != nil {
			t.Fatalf("failed to seed activity %s: %v", activity.Code, err)
		}
	}
}
