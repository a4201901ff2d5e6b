package assignments

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/atlasmed/casematch-backend/internal/capacity"
	"github.com/atlasmed/casematch-backend/internal/cases"
	"github.com/atlasmed/casematch-backend/internal/matching"
	"github.com/atlasmed/casematch-backend/pkg/config"
	"github.com/atlasmed/casematch-backend/pkg/db"
	"github.com/atlasmed/casematch-backend/pkg/db/models"
	"github.com/atlasmed/casematch-backend/pkg/enums"
	pkgerrors "github.com/atlasmed/casematch-backend/pkg/errors"
	"github.com/atlasmed/casematch-backend/pkg/logger"
	"github.com/atlasmed/casematch-backend/pkg/outbox"
	"github.com/atlasmed/casematch-backend/pkg/pagination"
)

type fakeRecompute struct {
	requested []uuid.UUID
}

func (f *fakeRecompute) RequestWorkloadRecompute(_ context.Context, providerID uuid.UUID) error {
	f.requested = append(f.requested, providerID)
	return nil
}

type fixture struct {
	t         *testing.T
	svc       *Service
	conn      *gorm.DB
	recompute *fakeRecompute
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn := client.DB()
	require.NoError(t, conn.AutoMigrate(
		&models.Case{},
		&models.ProviderCapacity{},
		&models.Assignment{},
		&models.PatientEntitlement{},
		&models.OutboxEvent{},
		&models.DiseaseSpecialization{},
	))

	logg := logger.New(logger.Options{ServiceName: "assignments-test", Output: io.Discard})
	scorer, err := matching.NewScorer(matching.ScorerParams{
		Weights: matching.DefaultWeights(),
		Catalog: capacity.NewCatalog(conn),
		Logger:  logg,
	})
	require.NoError(t, err)

	f := &fixture{
		t:         t,
		conn:      conn,
		recompute: &fakeRecompute{},
		clock:     time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		DB:        client,
		Cases:     cases.NewRepository(conn),
		Repo:      NewRepository(conn),
		Capacity:  capacity.NewRepository(conn),
		Scorer:    scorer,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Recompute: f.recompute,
		Matching: config.MatchingConfig{
			MinimumScoreThreshold:    35,
			WorkloadPenaltyThreshold: 80,
			EmergencyOverrideEnabled: true,
			SnapshotLimit:            50,
		},
		Logger: logg,
		Now:    func() time.Time { return f.clock },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) seedCase(urgency enums.Urgency, minProviders, maxProviders int) *models.Case {
	f.t.Helper()
	c := &models.Case{
		ID:                     uuid.New(),
		PatientID:              uuid.New(),
		RequiredSpecialization: "cardiology",
		Urgency:                urgency,
		Complexity:             enums.ComplexityMedium,
		MinProviders:           minProviders,
		MaxProviders:           maxProviders,
		Status:                 enums.CaseStatusSubmitted,
		SubmittedAt:            f.clock,
	}
	require.NoError(f.t, f.conn.Create(c).Error)
	f.seedEntitlement(c.PatientID, true, nil)
	return c
}

func (f *fixture) seedEntitlement(patientID uuid.UUID, active bool, expiresAt *time.Time) {
	f.t.Helper()
	require.NoError(f.t, f.conn.Save(&models.PatientEntitlement{
		PatientID: patientID,
		Active:    active,
		ExpiresAt: expiresAt,
	}).Error)
}

func (f *fixture) seedProvider(load int) models.ProviderCapacity {
	f.t.Helper()
	p := models.ProviderCapacity{
		ProviderID:            uuid.New(),
		PrimarySpecialization: "cardiology",
		Available:             true,
		ActiveCases:           load,
		MaxActiveCases:        100,
		TodayAppointments:     2,
		MaxDailyAppointments:  20,
		ConsultationCount:     150,
		YearsExperience:       8,
		MaxComplexity:         enums.ComplexityHigh,
		AcceptsUrgent:         true,
	}
	require.NoError(f.t, f.conn.Create(&p).Error)
	return p
}

func (f *fixture) reloadCase(id uuid.UUID) models.Case {
	f.t.Helper()
	var c models.Case
	require.NoError(f.t, f.conn.Where("id = ?", id).First(&c).Error)
	return c
}

func (f *fixture) outboxEventTypes() []enums.OutboxEventType {
	f.t.Helper()
	var rows []models.OutboxEvent
	require.NoError(f.t, f.conn.Order("created_at ASC, id ASC").Find(&rows).Error)
	types := make([]enums.OutboxEventType, 0, len(rows))
	for _, r := range rows {
		types = append(types, r.EventType)
	}
	return types
}

func countEvents(types []enums.OutboxEventType, want enums.OutboxEventType) int {
	n := 0
	for _, tp := range types {
		if tp == want {
			n++
		}
	}
	return n
}

func TestCreateAssignsTeamAndAdvancesCase(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyCritical, 1, 3)
	f.seedProvider(5)
	f.seedProvider(20)
	f.seedProvider(40)

	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, created, 3)

	require.Equal(t, enums.AssignmentPriorityPrimary, created[0].Priority)
	for _, a := range created {
		require.Equal(t, enums.AssignmentStatusPending, a.Status)
		require.Equal(t, f.clock.Add(time.Hour), a.ExpiresAt, "critical SLA is one hour")
		require.GreaterOrEqual(t, a.MatchScore, 35.0)
	}

	got := f.reloadCase(c.ID)
	require.Equal(t, enums.CaseStatusAssigned, got.Status)
	require.NotNil(t, got.FirstAssignedAt)
	require.NotNil(t, got.LastAssignedAt)
	require.Equal(t, 1, got.AssignmentAttempts)

	types := f.outboxEventTypes()
	require.Equal(t, 3, countEvents(types, enums.EventAssignmentCreated))
	require.Equal(t, 1, countEvents(types, enums.EventCaseAssigned))

	require.Len(t, f.recompute.requested, 3)
}

func TestCreateSLAPerUrgency(t *testing.T) {
	for urgency, want := range map[enums.Urgency]time.Duration{
		enums.UrgencyCritical: time.Hour,
		enums.UrgencyHigh:     4 * time.Hour,
		enums.UrgencyMedium:   12 * time.Hour,
		enums.UrgencyLow:      24 * time.Hour,
	} {
		f := newFixture(t)
		c := f.seedCase(urgency, 1, 1)
		f.seedProvider(5)

		created, err := f.svc.Create(context.Background(), c.ID)
		require.NoError(t, err)
		require.Len(t, created, 1)
		require.Equal(t, f.clock.Add(want), created[0].ExpiresAt, "urgency %s", urgency)
	}
}

func TestCreateRequiresAssignableStatus(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	require.NoError(t, f.conn.Model(&models.Case{}).Where("id = ?", c.ID).
		Update("status", enums.CaseStatusClosed.String()).Error)

	_, err := f.svc.Create(context.Background(), c.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}

func TestCreateRequiresActiveEntitlement(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	f.seedProvider(5)
	f.seedEntitlement(c.PatientID, false, nil)

	_, err := f.svc.Create(context.Background(), c.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEntitlementRequired))

	expired := f.clock.Add(-time.Hour)
	f.seedEntitlement(c.PatientID, true, &expired)
	_, err = f.svc.Create(context.Background(), c.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEntitlementRequired))
}

func TestCreateNoEligibleProviders(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)

	_, err := f.svc.Create(context.Background(), c.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleProviders))

	got := f.reloadCase(c.ID)
	require.Equal(t, enums.CaseStatusSubmitted, got.Status, "failed round must not advance the case")
	require.Empty(t, f.outboxEventTypes())
}

func TestAcceptPrimaryAdvancesCase(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyHigh, 1, 1)
	f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)
	primary := created[0]

	f.advance(10 * time.Minute)
	accepted, err := f.svc.Accept(context.Background(), primary.ID, primary.ProviderID)
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)
	require.Equal(t, f.clock, *accepted.RespondedAt)

	require.Equal(t, enums.CaseStatusAccepted, f.reloadCase(c.ID).Status)
	require.Equal(t, 1, countEvents(f.outboxEventTypes(), enums.EventAssignmentAccepted))

	// Accepting again is a no-op.
	again, err := f.svc.Accept(context.Background(), primary.ID, primary.ProviderID)
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusAccepted, again.Status)
	require.Equal(t, 1, countEvents(f.outboxEventTypes(), enums.EventAssignmentAccepted))
}

func TestAcceptByOtherProviderForbidden(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), created[0].ID, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAcceptTerminalAssignmentFails(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), created[0].ID, created[0].ProviderID, "caseload")
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), created[0].ID, created[0].ProviderID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
}

func TestRejectBackfillsFromNextBestProvider(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	first := f.seedProvider(5)
	second := f.seedProvider(30)

	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, first.ProviderID, created[0].ProviderID)

	rejected, err := f.svc.Reject(context.Background(), created[0].ID, first.ProviderID, "on leave")
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	require.Equal(t, "on leave", *rejected.RejectionReason)

	var replacement models.Assignment
	require.NoError(t, f.conn.
		Where("case_id = ? AND status = ?", c.ID, enums.AssignmentStatusPending.String()).
		First(&replacement).Error)
	require.Equal(t, second.ProviderID, replacement.ProviderID)
	require.Equal(t, created[0].Priority, replacement.Priority, "replacement keeps the vacated slot's priority")

	require.Equal(t, 1, f.reloadCase(c.ID).RejectionCount)
	types := f.outboxEventTypes()
	require.Equal(t, 1, countEvents(types, enums.EventAssignmentRejected))
	require.Equal(t, 1, countEvents(types, enums.EventCaseReassigned))
}

func TestRejectWithoutReplacementStillCommits(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	only := f.seedProvider(5)

	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	rejected, err := f.svc.Reject(context.Background(), created[0].ID, only.ProviderID, "unavailable")
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusRejected, rejected.Status)

	var pending int64
	require.NoError(t, f.conn.Model(&models.Assignment{}).
		Where("case_id = ? AND status = ?", c.ID, enums.AssignmentStatusPending.String()).
		Count(&pending).Error)
	require.Zero(t, pending, "sole provider rejected and nobody else exists")
}

func TestRejectNeverReoffersSameProvider(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	only := f.seedProvider(5)

	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), created[0].ID, only.ProviderID, "busy")
	require.NoError(t, err)

	// The rejecting provider is the only one in the pool; a replacement
	// round must not hand the case straight back.
	var rows []models.Assignment
	require.NoError(t, f.conn.Where("case_id = ?", c.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
}

func TestExpireTransitionsPendingPastDeadline(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyCritical, 1, 1)
	f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	f.advance(2 * time.Hour)
	require.NoError(t, f.svc.Expire(context.Background(), created[0].ID))

	var a models.Assignment
	require.NoError(t, f.conn.Where("id = ?", created[0].ID).First(&a).Error)
	require.Equal(t, enums.AssignmentStatusExpired, a.Status)
	require.Equal(t, 1, countEvents(f.outboxEventTypes(), enums.EventAssignmentExpired))
}

func TestExpireLeavesRespondedAssignmentsAlone(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyCritical, 1, 1)
	f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(context.Background(), created[0].ID, created[0].ProviderID)
	require.NoError(t, err)

	f.advance(2 * time.Hour)
	require.NoError(t, f.svc.Expire(context.Background(), created[0].ID))

	var a models.Assignment
	require.NoError(t, f.conn.Where("id = ?", created[0].ID).First(&a).Error)
	require.Equal(t, enums.AssignmentStatusAccepted, a.Status)
}

func TestExpireBeforeDeadlineIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyLow, 1, 1)
	f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Expire(context.Background(), created[0].ID))

	var a models.Assignment
	require.NoError(t, f.conn.Where("id = ?", created[0].ID).First(&a).Error)
	require.Equal(t, enums.AssignmentStatusPending, a.Status)
}

func TestExpireDueSweepsOnlyElapsedWindows(t *testing.T) {
	f := newFixture(t)

	urgent := f.seedCase(enums.UrgencyCritical, 1, 1)
	f.seedProvider(5)
	urgentCreated, err := f.svc.Create(context.Background(), urgent.ID)
	require.NoError(t, err)

	slow := f.seedCase(enums.UrgencyLow, 1, 1)
	f.seedProvider(10)
	slowCreated, err := f.svc.Create(context.Background(), slow.ID)
	require.NoError(t, err)

	f.advance(90 * time.Minute)
	expired, err := f.svc.ExpireDue(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	var urgentRow models.Assignment
	require.NoError(t, f.conn.Where("id = ?", urgentCreated[0].ID).First(&urgentRow).Error)
	require.Equal(t, enums.AssignmentStatusExpired, urgentRow.Status)
	var slowRow models.Assignment
	require.NoError(t, f.conn.Where("id = ?", slowCreated[0].ID).First(&slowRow).Error)
	require.Equal(t, enums.AssignmentStatusPending, slowRow.Status)

	// Idempotent: a second sweep finds nothing.
	expired, err = f.svc.ExpireDue(context.Background(), 100)
	require.NoError(t, err)
	require.Zero(t, expired)
}

func TestStatsAggregatesLifecycle(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 2)
	f.seedProvider(5)
	f.seedProvider(25)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)

	f.advance(30 * time.Minute)
	_, err = f.svc.Accept(context.Background(), created[0].ID, created[0].ProviderID)
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), created[1].ID, created[1].ProviderID, "caseload")
	require.NoError(t, err)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ByStatus[enums.AssignmentStatusAccepted])
	require.Equal(t, int64(1), stats.ByStatus[enums.AssignmentStatusRejected])
	require.InDelta(t, 0.5, stats.AcceptanceRate, 0.001, "one accept out of two responses")
	require.Equal(t, int64(1), stats.Reassignments, "the rejection forced a new round")
	require.InDelta(t, created[0].MatchScore, stats.AverageMatchScore, 0.001)
	require.InDelta(t, 1800, stats.AverageResponseSecond, 1.0)
}

func TestHistoryPagesThroughAllRounds(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		a := models.Assignment{
			ID:         uuid.New(),
			CaseID:     c.ID,
			ProviderID: uuid.New(),
			Status:     enums.AssignmentStatusRejected,
			Priority:   enums.AssignmentPriorityPrimary,
			AssignedAt: f.clock,
			ExpiresAt:  f.clock.Add(12 * time.Hour),
			CreatedAt:  f.clock,
		}
		require.NoError(t, f.conn.Create(&a).Error)
		ids = append(ids, a.ID)
		f.advance(time.Minute)
	}

	first, err := f.svc.History(context.Background(), c.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Assignments, 2)
	require.Equal(t, ids[2], first.Assignments[0].ID, "newest round comes first")
	require.Equal(t, ids[1], first.Assignments[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.History(context.Background(), c.ID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Assignments, 1)
	require.Equal(t, ids[0], second.Assignments[0].ID)
	require.Empty(t, second.NextCursor)
}

func TestHistoryUnknownCase(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.History(context.Background(), uuid.New(), pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestHistoryRejectsMalformedCursor(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)

	_, err := f.svc.History(context.Background(), c.ID, pagination.Params{Cursor: "%%%not-base64"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateDuplicateLivePairConflicts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.Exec(
		`CREATE UNIQUE INDEX ux_assignments_active_case_provider
		 ON assignments (case_id, provider_id)
		 WHERE status IN ('pending', 'accepted')`).Error)

	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	p := f.seedProvider(5)
	repo := NewRepository(f.conn)

	first := models.Assignment{
		CaseID:     c.ID,
		ProviderID: p.ProviderID,
		Status:     enums.AssignmentStatusPending,
		Priority:   enums.AssignmentPriorityPrimary,
		AssignedAt: f.clock,
		ExpiresAt:  f.clock.Add(time.Hour),
	}
	require.NoError(t, repo.Create(f.conn, &first))

	dup := models.Assignment{
		CaseID:     c.ID,
		ProviderID: p.ProviderID,
		Status:     enums.AssignmentStatusPending,
		Priority:   enums.AssignmentPrioritySecondary,
		AssignedAt: f.clock,
		ExpiresAt:  f.clock.Add(time.Hour),
	}
	err := repo.Create(f.conn, &dup)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestExpireCriticalRerunsMatching(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyCritical, 1, 3)
	only := f.seedProvider(5)

	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	f.advance(2 * time.Hour)
	require.NoError(t, f.svc.Expire(context.Background(), created[0].ID))

	var pending []models.Assignment
	require.NoError(t, f.conn.
		Where("case_id = ? AND status = ?", c.ID, enums.AssignmentStatusPending.String()).
		Find(&pending).Error)
	require.Len(t, pending, 1, "critical expiry must start a fresh round")
	require.Equal(t, only.ProviderID, pending[0].ProviderID,
		"expired offer is terminal, so the provider is back in the pool")
	require.Equal(t, f.clock.Add(time.Hour), pending[0].ExpiresAt)

	got := f.reloadCase(c.ID)
	require.Equal(t, 2, got.AssignmentAttempts)
	require.Equal(t, 1, countEvents(f.outboxEventTypes(), enums.EventCaseReassigned))
}

func TestExpireCriticalWithEmptyPoolStillCommits(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyCritical, 1, 1)
	only := f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.ProviderCapacity{}).
		Where("provider_id = ?", only.ProviderID).
		Update("available", false).Error)

	f.advance(2 * time.Hour)
	require.NoError(t, f.svc.Expire(context.Background(), created[0].ID))

	var a models.Assignment
	require.NoError(t, f.conn.Where("id = ?", created[0].ID).First(&a).Error)
	require.Equal(t, enums.AssignmentStatusExpired, a.Status, "dry pool must not roll back the expiry")

	var pending int64
	require.NoError(t, f.conn.Model(&models.Assignment{}).
		Where("case_id = ? AND status = ?", c.ID, enums.AssignmentStatusPending.String()).
		Count(&pending).Error)
	require.Zero(t, pending)
}

func TestAcceptFailsWhenProviderFull(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	p := f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.ProviderCapacity{}).
		Where("provider_id = ?", p.ProviderID).
		Update("active_cases", 100).Error)

	_, err = f.svc.Accept(context.Background(), created[0].ID, p.ProviderID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	var a models.Assignment
	require.NoError(t, f.conn.Where("id = ?", created[0].ID).First(&a).Error)
	require.Equal(t, enums.AssignmentStatusPending, a.Status, "the offer stays open for the sweeper")
}

func TestAcceptOverCapacityAllowedInEmergencyMode(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	p := f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.ProviderCapacity{}).
		Where("provider_id = ?", p.ProviderID).
		Updates(map[string]any{"active_cases": 100, "emergency_mode": true}).Error)

	accepted, err := f.svc.Accept(context.Background(), created[0].ID, p.ProviderID)
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusAccepted, accepted.Status)
}

func TestAcceptProceedsWhenCapacityUnknown(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyMedium, 1, 1)
	p := f.seedProvider(5)
	created, err := f.svc.Create(context.Background(), c.ID)
	require.NoError(t, err)

	require.NoError(t, f.conn.
		Where("provider_id = ?", p.ProviderID).
		Delete(&models.ProviderCapacity{}).Error)

	accepted, err := f.svc.Accept(context.Background(), created[0].ID, p.ProviderID)
	require.NoError(t, err, "an unreachable capacity reader never blocks the provider's call")
	require.Equal(t, enums.AssignmentStatusAccepted, accepted.Status)
}

func TestLifecycleInterleavingsKeepOneLiveOfferPerProvider(t *testing.T) {
	f := newFixture(t)
	c := f.seedCase(enums.UrgencyCritical, 1, 3)
	for i := 0; i < 5; i++ {
		f.seedProvider(5 + 10*i)
	}

	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()

	assertOneLiveOfferPerProvider := func() {
		var live []models.Assignment
		require.NoError(t, f.conn.
			Where("case_id = ? AND status IN ?", c.ID, []string{
				enums.AssignmentStatusPending.String(),
				enums.AssignmentStatusAccepted.String(),
			}).
			Find(&live).Error)
		seen := make(map[uuid.UUID]bool, len(live))
		for _, a := range live {
			require.False(t, seen[a.ProviderID], "provider %s holds two live offers", a.ProviderID)
			seen[a.ProviderID] = true
		}
	}

	for step := 0; step < 80; step++ {
		var pending []models.Assignment
		require.NoError(t, f.conn.
			Where("case_id = ? AND status = ?", c.ID, enums.AssignmentStatusPending.String()).
			Find(&pending).Error)

		op := rng.Intn(4)
		if len(pending) == 0 {
			op = 0
		}
		switch op {
		case 0:
			if _, err := f.svc.Create(ctx, c.ID); err != nil {
				require.True(t,
					pkgerrors.IsCode(err, pkgerrors.CodeInvalidState) ||
						pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleProviders),
					"step %d: unexpected create error: %v", step, err)
			}
		case 1:
			a := pending[rng.Intn(len(pending))]
			if _, err := f.svc.Accept(ctx, a.ID, a.ProviderID); err != nil {
				require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState),
					"step %d: unexpected accept error: %v", step, err)
			}
		case 2:
			a := pending[rng.Intn(len(pending))]
			_, err := f.svc.Reject(ctx, a.ID, a.ProviderID, "busy")
			require.NoError(t, err, "step %d", step)
		default:
			f.advance(45 * time.Minute)
			a := pending[rng.Intn(len(pending))]
			require.NoError(t, f.svc.Expire(ctx, a.ID), "step %d", step)
		}

		assertOneLiveOfferPerProvider()
	}
}
