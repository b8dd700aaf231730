package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftStatusMachine(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	publisher := uuid.New()

	d := &ScheduleDraft{Status: DraftStatusDraft}
	require.NoError(t, d.MarkPublished(publisher, now))
	assert.Equal(t, DraftStatusPublished, d.Status)
	require.NotNil(t, d.RollbackExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour), *d.RollbackExpiresAt)
	assert.True(t, d.RollbackAvailable)

	// Publish is not repeatable.
	assert.ErrorIs(t, d.MarkPublished(publisher, now), ErrInvalidDraftStatus)

	require.NoError(t, d.MarkRolledBack(publisher, now.Add(time.Hour)))
	assert.Equal(t, DraftStatusRolledBack, d.Status)
	assert.False(t, d.RollbackAvailable)
	assert.True(t, d.IsTerminal())

	// No transitions out of a terminal state.
	assert.ErrorIs(t, d.MarkDiscarded(now), ErrInvalidDraftStatus)
	assert.ErrorIs(t, d.MarkRolledBack(publisher, now), ErrInvalidDraftStatus)
}

func TestDraftDiscard(t *testing.T) {
	d := &ScheduleDraft{Status: DraftStatusDraft}
	require.NoError(t, d.MarkDiscarded(time.Now().UTC()))
	assert.Equal(t, DraftStatusDiscarded, d.Status)
	assert.True(t, d.IsTerminal())
}

func TestRollbackOpen(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	d := &ScheduleDraft{Status: DraftStatusDraft}
	require.NoError(t, d.MarkPublished(uuid.New(), now))

	assert.True(t, d.RollbackOpen(now.Add(10*time.Minute)))
	assert.True(t, d.RollbackOpen(now.Add(24*time.Hour)))
	assert.False(t, d.RollbackOpen(now.Add(24*time.Hour+time.Second)))
}

func TestFlagAcknowledgeIdempotent(t *testing.T) {
	now := time.Now().UTC()
	acker := uuid.New()
	f := &DraftFlag{}

	assert.True(t, f.Acknowledge(acker, "reviewed", now))
	assert.True(t, f.Acknowledged)
	assert.Equal(t, "reviewed", f.ResolutionNote)

	// Re-acknowledgment is a no-op.
	assert.False(t, f.Acknowledge(uuid.New(), "again", now.Add(time.Hour)))
	assert.Equal(t, &acker, f.AcknowledgedByID)
	assert.Equal(t, "reviewed", f.ResolutionNote)
}

func TestAlertMarkResolved(t *testing.T) {
	now := time.Now().UTC()
	a := &ConflictAlert{Status: AlertStatusNew}
	require.NoError(t, a.MarkResolved(uuid.New(), "done", now))
	assert.Equal(t, AlertStatusResolved, a.Status)
	assert.ErrorIs(t, a.MarkResolved(uuid.New(), "again", now), ErrAlertAlreadyResolved)
}

func TestPersonValidate(t *testing.T) {
	p := &Person{Kind: PersonKindResident}
	assert.ErrorIs(t, p.Validate(), ErrInvalidPGYLevel)

	pgy := 2
	p.PGYLevel = &pgy
	assert.NoError(t, p.Validate())

	f := &Person{Kind: PersonKindFaculty}
	assert.NoError(t, f.Validate())

	bogus := &Person{Kind: "OTHER"}
	assert.ErrorIs(t, bogus.Validate(), ErrUnknownPersonKind)
}
