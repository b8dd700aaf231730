// Package helpers provides entity builders and fixtures shared by tests.
package helpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/rotamed/scheduler/internal/entity"
)

// PersonBuilder builds Person entities with a fluent interface.
type PersonBuilder struct {
	person entity.Person
}

// NewPersonBuilder creates a PersonBuilder with faculty defaults.
func NewPersonBuilder() *PersonBuilder {
	now := time.Now().UTC()
	return &PersonBuilder{person: entity.Person{
		ID:        uuid.New(),
		Name:      "Test Faculty",
		Email:     "faculty@example.org",
		Kind:      entity.PersonKindFaculty,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

// WithID sets the id.
func (b *PersonBuilder) WithID(id uuid.UUID) *PersonBuilder {
	b.person.ID = id
	return b
}

// WithName sets the name.
func (b *PersonBuilder) WithName(name string) *PersonBuilder {
	b.person.Name = name
	return b
}

// AsResident marks the person a resident at the given PGY level.
func (b *PersonBuilder) AsResident(pgy int) *PersonBuilder {
	b.person.Kind = entity.PersonKindResident
	b.person.PGYLevel = &pgy
	b.person.Email = "resident@example.org"
	if b.person.Name == "Test Faculty" {
		b.person.Name = "Test Resident"
	}
	return b
}

// WithAdminType sets the admin type (e.g. SM for sports medicine).
func (b *PersonBuilder) WithAdminType(adminType string) *PersonBuilder {
	b.person.AdminType = adminType
	return b
}

// WithProcedureCredential marks the person procedurally credentialed.
func (b *PersonBuilder) WithProcedureCredential() *PersonBuilder {
	b.person.HasProcedureCredential = true
	return b
}

// Build returns the person.
func (b *PersonBuilder) Build() *entity.Person {
	person := b.person
	return &person
}

// TemplateBuilder builds RotationTemplate entities.
type TemplateBuilder struct {
	template entity.RotationTemplate
}

// NewTemplateBuilder creates a TemplateBuilder with outpatient defaults.
func NewTemplateBuilder(abbrev string) *TemplateBuilder {
	now := time.Now().UTC()
	return &TemplateBuilder{template: entity.RotationTemplate{
		ID:                  uuid.New(),
		Name:                abbrev + " rotation",
		Abbreviation:        abbrev,
		DisplayAbbreviation: abbrev,
		Class:               entity.RotationClassOutpatient,
		CreatedAt:           now,
		UpdatedAt:           now,
	}}
}

// Inpatient marks the template an inpatient rotation.
func (b *TemplateBuilder) Inpatient() *TemplateBuilder {
	b.template.Class = entity.RotationClassInpatient
	return b
}

// WithMaxConcurrent bounds the template's per-slot capacity.
func (b *TemplateBuilder) WithMaxConcurrent(max int) *TemplateBuilder {
	b.template.MaxConcurrent = &max
	return b
}

// WithWeekendWork marks the template as working weekends.
func (b *TemplateBuilder) WithWeekendWork() *TemplateBuilder {
	b.template.IncludesWeekendWork = true
	return b
}

// RequiringCredential marks the template credential-gated.
func (b *TemplateBuilder) RequiringCredential() *TemplateBuilder {
	b.template.RequiresProcedureCredential = true
	return b
}

// WithWeeklyPattern appends a weekly pattern.
func (b *TemplateBuilder) WithWeeklyPattern(weekNumber *int, dayOfWeek int, halfDay entity.HalfDay, activityCode string) *TemplateBuilder {
	b.template.WeeklyPatterns = append(b.template.WeeklyPatterns, entity.WeeklyPattern{
		WeekNumber:   weekNumber,
		DayOfWeek:    dayOfWeek,
		HalfDay:      halfDay,
		ActivityCode: activityCode,
	})
	return b
}

// Build returns the template.
func (b *TemplateBuilder) Build() *entity.RotationTemplate {
	template := b.template
	return &template
}

// AlertBuilder builds ConflictAlert entities.
type AlertBuilder struct {
	alert entity.ConflictAlert
}

// NewAlertBuilder creates an AlertBuilder for a leave/FMIT overlap.
func NewAlertBuilder(personID uuid.UUID, weekStart time.Time) *AlertBuilder {
	now := time.Now().UTC()
	return &AlertBuilder{alert: entity.ConflictAlert{
		ID:            uuid.New(),
		PersonID:      personID,
		FMITWeekStart: weekStart,
		ConflictType:  entity.ConflictLeaveFMITOverlap,
		Severity:      entity.ConflictSeverityWarning,
		Status:        entity.AlertStatusNew,
		Description:   "test conflict",
		CreatedAt:     now,
		UpdatedAt:     now,
	}}
}

// WithType sets the conflict type.
func (b *AlertBuilder) WithType(t entity.ConflictType) *AlertBuilder {
	b.alert.ConflictType = t
	return b
}

// Critical raises the severity to CRITICAL.
func (b *AlertBuilder) Critical() *AlertBuilder {
	b.alert.Severity = entity.ConflictSeverityCritical
	return b
}

// WithLeave links an approved leave.
func (b *AlertBuilder) WithLeave(leaveID uuid.UUID) *AlertBuilder {
	b.alert.LeaveID = &leaveID
	return b
}

// Build returns the alert.
func (b *AlertBuilder) Build() *entity.ConflictAlert {
	alert := b.alert
	return &alert
}
