package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
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
	"github.com/atlasmed/casematch-backend/pkg/metrics"
	"github.com/atlasmed/casematch-backend/pkg/outbox"
	"github.com/atlasmed/casematch-backend/pkg/pagination"
)

// Response SLA per urgency tier. A pending assignment that outlives its
// window is expired by the sweeper.
func slaFor(urgency enums.Urgency) time.Duration {
	switch urgency {
	case enums.UrgencyCritical:
		return time.Hour
	case enums.UrgencyHigh:
		return 4 * time.Hour
	case enums.UrgencyMedium:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ServiceParams wires the lifecycle manager's collaborators.
type ServiceParams struct {
	DB        *db.Client
	Cases     *cases.Repository
	Repo      *Repository
	Capacity  capacity.Reader
	Scorer    *matching.Scorer
	Outbox    outbox.Emitter
	Recompute capacity.RecomputeTrigger
	Metrics   *metrics.MatchingMetrics
	Matching  config.MatchingConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service owns the assignment lifecycle: matching rounds, provider
// responses, and expiry. Every mutation runs inside a transaction holding a
// row lock on the case, so concurrent responses and the sweeper serialize
// per case.
type Service struct {
	database  *db.Client
	cases     *cases.Repository
	repo      *Repository
	capacity  capacity.Reader
	scorer    *matching.Scorer
	outbox    outbox.Emitter
	recompute capacity.RecomputeTrigger
	metrics   *metrics.MatchingMetrics
	cfg       config.MatchingConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService validates wiring and builds the lifecycle manager.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("db client required")
	case params.Cases == nil:
		return nil, errors.New("case repository required")
	case params.Repo == nil:
		return nil, errors.New("assignment repository required")
	case params.Capacity == nil:
		return nil, errors.New("capacity reader required")
	case params.Scorer == nil:
		return nil, errors.New("scorer required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		database:  params.DB,
		cases:     params.Cases,
		repo:      params.Repo,
		capacity:  params.Capacity,
		scorer:    params.Scorer,
		outbox:    params.Outbox,
		recompute: params.Recompute,
		metrics:   params.Metrics,
		cfg:       params.Matching,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Create runs a full matching round for the case and persists one assignment
// per selected provider. Preconditions: the case must be in an assignable
// status and the patient's entitlement must be active.
func (s *Service) Create(ctx context.Context, caseID uuid.UUID) ([]models.Assignment, error) {
	ctx = s.logg.WithCaseID(ctx, caseID.String())
	started := s.now()

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !c.Status.Assignable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState,
			fmt.Sprintf("case in status %s cannot be assigned", c.Status))
	}
	if err := s.checkEntitlement(ctx, c.PatientID); err != nil {
		return nil, err
	}

	snapshots, err := s.loadSnapshots(ctx, *c)
	if err != nil {
		return nil, err
	}

	var (
		created []models.Assignment
		scored  int
	)
	err = s.database.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.cases.GetByIDForUpdate(tx, caseID)
		if err != nil {
			return err
		}
		if !locked.Status.Assignable() {
			return pkgerrors.New(pkgerrors.CodeInvalidState,
				fmt.Sprintf("case in status %s cannot be assigned", locked.Status))
		}

		active, err := s.repo.ActiveByCase(tx, caseID)
		if err != nil {
			return err
		}
		excluded := make(map[uuid.UUID]bool, len(active))
		for _, a := range active {
			excluded[a.ProviderID] = true
		}

		selected, n, err := s.match(ctx, *locked, snapshots, excluded)
		if err != nil {
			return err
		}
		scored = n

		created, err = s.persistRound(ctx, tx, locked, selected)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.observeRun("api", started, scored)
	s.requestRecomputes(ctx, created)
	return created, nil
}

// Accept records a provider taking the assignment. Accepting twice is a
// no-op; responding to a rejected or expired assignment fails. The capacity
// re-check is soft only toward an unreachable reader: when the snapshot
// positively reports the provider full, the accept fails unless the provider
// runs in emergency mode.
func (s *Service) Accept(ctx context.Context, assignmentID, providerID uuid.UUID) (*models.Assignment, error) {
	ctx = s.logg.WithAssignmentID(ctx, assignmentID.String())
	var out *models.Assignment
	err := s.database.WithTx(ctx, func(tx *gorm.DB) error {
		a, _, err := s.lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if a.ProviderID != providerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "assignment belongs to another provider")
		}
		if a.Status == enums.AssignmentStatusAccepted {
			out = a
			return nil
		}
		if a.Status != enums.AssignmentStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidState,
				fmt.Sprintf("assignment in status %s cannot be accepted", a.Status))
		}

		snap, err := s.capacity.Snapshot(ctx, providerID)
		switch {
		case err != nil:
			s.logg.Warn(s.logg.WithProviderID(ctx, providerID.String()), "capacity check unavailable, honoring accept")
		case !snap.HasCapacity() && !snap.EmergencyMode:
			return pkgerrors.New(pkgerrors.CodeInvalidState, "provider has no remaining capacity")
		case !snap.HasCapacity():
			s.logg.Warn(s.logg.WithProviderID(ctx, providerID.String()), "provider accepting over capacity in emergency mode")
		}

		now := s.now()
		if err := s.repo.UpdateStatus(tx, a.ID, enums.AssignmentStatusAccepted, &now, nil); err != nil {
			return err
		}
		a.Status = enums.AssignmentStatusAccepted
		a.RespondedAt = &now

		if a.Priority == enums.AssignmentPriorityPrimary {
			if err := s.cases.UpdateStatus(tx, a.CaseID, enums.CaseStatusAccepted); err != nil {
				return err
			}
		}

		if err := s.emitAssignmentEvent(ctx, tx, enums.EventAssignmentAccepted, *a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.requestRecompute(ctx, providerID)
	return out, nil
}

// Reject records a provider declining the assignment and, when coverage
// falls below the case minimum, offers the slot to the next best provider
// not previously assigned to the case.
func (s *Service) Reject(ctx context.Context, assignmentID, providerID uuid.UUID, reason string) (*models.Assignment, error) {
	ctx = s.logg.WithAssignmentID(ctx, assignmentID.String())
	var (
		out         *models.Assignment
		replacement *models.Assignment
	)
	err := s.database.WithTx(ctx, func(tx *gorm.DB) error {
		a, c, err := s.lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if a.ProviderID != providerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "assignment belongs to another provider")
		}
		if a.Status != enums.AssignmentStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidState,
				fmt.Sprintf("assignment in status %s cannot be rejected", a.Status))
		}

		now := s.now()
		if err := s.repo.UpdateStatus(tx, a.ID, enums.AssignmentStatusRejected, &now, &reason); err != nil {
			return err
		}
		a.Status = enums.AssignmentStatusRejected
		a.RespondedAt = &now
		a.RejectionReason = &reason

		if err := s.cases.IncrementRejectionCount(tx, a.CaseID); err != nil {
			return err
		}
		if err := s.emitAssignmentEvent(ctx, tx, enums.EventAssignmentRejected, *a); err != nil {
			return err
		}

		replacement, err = s.replaceIfUnderMin(ctx, tx, c, a.Priority)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.requestRecompute(ctx, providerID)
	if replacement != nil {
		s.requestRecompute(ctx, replacement.ProviderID)
	}
	return out, nil
}

// Expire transitions a pending assignment past its deadline to expired.
// Called by the sweeper; an assignment the provider responded to in the
// meantime is left alone. A critical case gets a fresh matching round in
// which only live assignments exclude providers, so the expired provider is
// back in the pool; other urgencies backfill the vacated slot the same way
// a rejection does.
func (s *Service) Expire(ctx context.Context, assignmentID uuid.UUID) error {
	ctx = s.logg.WithAssignmentID(ctx, assignmentID.String())
	started := s.now()
	var (
		replacement *models.Assignment
		newRound    []models.Assignment
		scored      int
	)
	err := s.database.WithTx(ctx, func(tx *gorm.DB) error {
		a, c, err := s.lockAssignment(tx, assignmentID)
		if err != nil {
			return err
		}
		if a.Status != enums.AssignmentStatusPending {
			return nil
		}
		if a.ExpiresAt.After(s.now()) {
			return nil
		}

		if err := s.repo.UpdateStatus(tx, a.ID, enums.AssignmentStatusExpired, nil, nil); err != nil {
			return err
		}
		a.Status = enums.AssignmentStatusExpired

		if err := s.emitAssignmentEvent(ctx, tx, enums.EventAssignmentExpired, *a); err != nil {
			return err
		}

		if c.Urgency == enums.UrgencyCritical {
			newRound, scored, err = s.rerunCritical(ctx, tx, c)
			return err
		}
		replacement, err = s.replaceIfUnderMin(ctx, tx, c, a.Priority)
		return err
	})
	if err != nil {
		return err
	}
	if len(newRound) > 0 {
		s.observeRun("sweep", started, scored)
		s.requestRecomputes(ctx, newRound)
	}
	if replacement != nil {
		s.requestRecompute(ctx, replacement.ProviderID)
	}
	return nil
}

// rerunCritical runs a full matching round after a critical case loses a
// pending offer and coverage drops below the minimum. Unlike replacement
// rounds only live assignments exclude providers, so a provider whose offer
// just expired may be offered the case again. A dry pool is logged and left
// for the next sweep, never an error: the expiry must still commit.
func (s *Service) rerunCritical(ctx context.Context, tx *gorm.DB, c *models.Case) ([]models.Assignment, int, error) {
	active, err := s.repo.ActiveByCase(tx, c.ID)
	if err != nil {
		return nil, 0, err
	}
	minProviders := c.MinProviders
	if minProviders < 1 {
		minProviders = 1
	}
	if len(active) >= minProviders {
		return nil, 0, nil
	}

	snapshots, err := s.loadSnapshots(ctx, *c)
	if err != nil {
		return nil, 0, err
	}
	excluded := make(map[uuid.UUID]bool, len(active))
	for _, a := range active {
		excluded[a.ProviderID] = true
	}

	// The round only fills the open slots next to the surviving team.
	round := *c
	round.MaxProviders = c.MaxProviders - len(active)
	round.MinProviders = minProviders - len(active)

	selected, scored, err := s.match(ctx, round, snapshots, excluded)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNoEligibleProviders) {
			s.logg.Warn(ctx, "no providers available for critical re-run")
			return nil, scored, nil
		}
		return nil, 0, err
	}
	created, err := s.persistRound(ctx, tx, &round, selected)
	if err != nil {
		return nil, 0, err
	}
	return created, scored, nil
}

// ExpireDue sweeps pending assignments whose window elapsed. Each assignment
// is handled in its own transaction so one failure never blocks the batch;
// per-row errors are accumulated and returned after the batch.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListExpiredPending(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	var errs error
	for _, a := range due {
		if err := s.Expire(ctx, a.ID); err != nil {
			s.logg.Error(s.logg.WithAssignmentID(ctx, a.ID.String()), "expire assignment", err)
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
	}
	return expired, errs
}

// Statistics is the read model behind the stats endpoint. AcceptanceRate is
// accepted over responded (accepted plus rejected); Reassignments counts the
// rejected and expired rows that forced another round.
type Statistics struct {
	ByStatus              map[enums.AssignmentStatus]int64 `json:"by_status"`
	AcceptanceRate        float64                          `json:"acceptance_rate"`
	Reassignments         int64                            `json:"reassignments"`
	AverageMatchScore     float64                          `json:"average_match_score"`
	AverageResponseSecond float64                          `json:"average_response_seconds"`
}

// Stats aggregates lifecycle counts and acceptance averages, refreshing the
// per-status gauges as a side effect.
func (s *Service) Stats(ctx context.Context) (*Statistics, error) {
	counts, err := s.repo.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	acceptedStats, err := s.repo.AcceptedStats(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		for _, status := range []enums.AssignmentStatus{
			enums.AssignmentStatusPending,
			enums.AssignmentStatusAccepted,
			enums.AssignmentStatusRejected,
			enums.AssignmentStatusExpired,
		} {
			s.metrics.SetAssignmentCount(status.String(), counts[status])
		}
	}

	out := &Statistics{
		ByStatus:              counts,
		Reassignments:         counts[enums.AssignmentStatusRejected] + counts[enums.AssignmentStatusExpired],
		AverageMatchScore:     acceptedStats.AverageMatchScore,
		AverageResponseSecond: acceptedStats.AverageResponseSecond,
	}
	accepted := counts[enums.AssignmentStatusAccepted]
	if responded := accepted + counts[enums.AssignmentStatusRejected]; responded > 0 {
		out.AcceptanceRate = float64(accepted) / float64(responded)
	}
	return out, nil
}

// HistoryPage is one cursor page of a case's assignment history.
type HistoryPage struct {
	Assignments []models.Assignment
	NextCursor  string
}

// History returns the assignment rows for a case, newest first, terminal
// rows included.
func (s *Service) History(ctx context.Context, caseID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if _, err := s.cases.GetByID(ctx, caseID); err != nil {
		return nil, err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByCase(ctx, caseID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Assignments: rows}
	if len(rows) > limit {
		page.Assignments = rows[:limit]
		last := page.Assignments[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// lockAssignment loads the assignment, then takes the case row lock and
// re-reads the assignment under it. The second read closes the window where
// another transaction transitioned the row before we held the lock.
func (s *Service) lockAssignment(tx *gorm.DB, assignmentID uuid.UUID) (*models.Assignment, *models.Case, error) {
	a, err := s.repo.GetByID(tx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.cases.GetByIDForUpdate(tx, a.CaseID)
	if err != nil {
		return nil, nil, err
	}
	a, err = s.repo.GetByID(tx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	return a, c, nil
}

func (s *Service) checkEntitlement(ctx context.Context, patientID uuid.UUID) error {
	ent, err := s.cases.EntitlementFor(ctx, patientID)
	if err != nil {
		return err
	}
	if ent == nil || !ent.ActiveAt(s.now()) {
		return pkgerrors.New(pkgerrors.CodeEntitlementRequired, "patient entitlement inactive")
	}
	return nil
}

// loadSnapshots pulls the candidate universe for the case's required
// specialization, widened with emergency-mode providers for urgent cases.
func (s *Service) loadSnapshots(ctx context.Context, c models.Case) ([]models.ProviderCapacity, error) {
	limit := s.cfg.SnapshotLimit
	snapshots, err := s.capacity.SnapshotsBySpecialization(ctx, c.RequiredSpecialization, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load capacity snapshots")
	}
	if c.Urgency.IsUrgent() {
		emergency, err := s.capacity.EmergencySnapshots(ctx, c.RequiredSpecialization, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load emergency snapshots")
		}
		seen := make(map[uuid.UUID]bool, len(snapshots))
		for _, snap := range snapshots {
			seen[snap.ProviderID] = true
		}
		for _, snap := range emergency {
			if !seen[snap.ProviderID] {
				snapshots = append(snapshots, snap)
			}
		}
	}
	return snapshots, nil
}

// match runs filter, score, select and returns the chosen team plus the
// number of candidates scored.
func (s *Service) match(ctx context.Context, c models.Case, snapshots []models.ProviderCapacity, excluded map[uuid.UUID]bool) ([]matching.Candidate, int, error) {
	eligible := matching.Filter(c, snapshots, excluded, matching.FilterOptions{
		EmergencyOverrideEnabled: s.cfg.EmergencyOverrideEnabled,
	})
	if len(eligible) == 0 {
		s.incNoEligible()
		return nil, 0, pkgerrors.New(pkgerrors.CodeNoEligibleProviders, "no eligible providers for case")
	}

	candidates := s.scorer.ScoreAll(ctx, c, eligible)
	selected := matching.Select(c, candidates, s.scorer.MinimumScoreThreshold())
	if len(selected) == 0 {
		s.incNoEligible()
		return nil, len(candidates), pkgerrors.New(pkgerrors.CodeNoEligibleProviders, "no provider scored above threshold")
	}
	return selected, len(candidates), nil
}

// persistRound writes one assignment per selected candidate, advances the
// case, and queues the round's domain events inside the caller's transaction.
func (s *Service) persistRound(ctx context.Context, tx *gorm.DB, c *models.Case, selected []matching.Candidate) ([]models.Assignment, error) {
	now := s.now()
	expiresAt := now.Add(slaFor(c.Urgency))
	created := make([]models.Assignment, 0, len(selected))
	providerIDs := make([]uuid.UUID, 0, len(selected))

	for _, candidate := range selected {
		a := models.Assignment{
			CaseID:     c.ID,
			ProviderID: candidate.Snapshot.ProviderID,
			Status:     enums.AssignmentStatusPending,
			Priority:   candidate.Priority,
			AssignedAt: now,
			ExpiresAt:  expiresAt,
			Reason:     candidate.Reason,
			MatchScore: candidate.Score,
		}
		if err := s.repo.Create(tx, &a); err != nil {
			return nil, err
		}
		if err := s.emitAssignmentEvent(ctx, tx, enums.EventAssignmentCreated, a); err != nil {
			return nil, err
		}
		created = append(created, a)
		providerIDs = append(providerIDs, a.ProviderID)
	}

	firstRound := c.FirstAssignedAt == nil
	c.Status = enums.CaseStatusAssigned
	if err := s.cases.MarkAssigned(tx, c, now); err != nil {
		return nil, err
	}

	eventType := enums.EventCaseAssigned
	if !firstRound {
		eventType = enums.EventCaseReassigned
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateCase,
		AggregateID:   c.ID,
		Data: CaseEventPayload{
			CaseID:      c.ID,
			Status:      c.Status.String(),
			Attempt:     c.AssignmentAttempts + 1,
			ProviderIDs: providerIDs,
		},
		Version:    1,
		OccurredAt: now,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// replaceIfUnderMin offers one replacement slot when active coverage dropped
// below the case minimum. A dry well is not an error here: the rejection or
// expiry that got us here must still commit, so the gap is logged and left
// for the next round.
func (s *Service) replaceIfUnderMin(ctx context.Context, tx *gorm.DB, c *models.Case, priority enums.AssignmentPriority) (*models.Assignment, error) {
	active, err := s.repo.ActiveByCase(tx, c.ID)
	if err != nil {
		return nil, err
	}
	minProviders := c.MinProviders
	if minProviders < 1 {
		minProviders = 1
	}
	if len(active) >= minProviders {
		return nil, nil
	}

	snapshots, err := s.loadSnapshots(ctx, *c)
	if err != nil {
		return nil, err
	}
	// Providers with any history on the case, terminal rows included, never
	// get the same case offered twice.
	excluded, err := s.repo.ProviderIDsByCase(tx, c.ID)
	if err != nil {
		return nil, err
	}

	eligible := matching.Filter(*c, snapshots, excluded, matching.FilterOptions{
		EmergencyOverrideEnabled: s.cfg.EmergencyOverrideEnabled,
	})
	if len(eligible) == 0 {
		s.incNoEligible()
		s.logg.Warn(ctx, "no replacement providers available")
		return nil, nil
	}
	candidates := s.scorer.ScoreAll(ctx, *c, eligible)
	if len(candidates) == 0 || candidates[0].Score < s.scorer.MinimumScoreThreshold() {
		s.incNoEligible()
		s.logg.Warn(ctx, "no replacement candidate above threshold")
		return nil, nil
	}

	now := s.now()
	best := candidates[0]
	a := models.Assignment{
		CaseID:     c.ID,
		ProviderID: best.Snapshot.ProviderID,
		Status:     enums.AssignmentStatusPending,
		Priority:   priority,
		AssignedAt: now,
		ExpiresAt:  now.Add(slaFor(c.Urgency)),
		Reason:     best.Reason,
		MatchScore: best.Score,
	}
	if err := s.repo.Create(tx, &a); err != nil {
		return nil, err
	}
	if err := s.emitAssignmentEvent(ctx, tx, enums.EventAssignmentCreated, a); err != nil {
		return nil, err
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCaseReassigned,
		AggregateType: enums.AggregateCase,
		AggregateID:   c.ID,
		Data: CaseEventPayload{
			CaseID:      c.ID,
			Status:      c.Status.String(),
			Attempt:     c.AssignmentAttempts,
			ProviderIDs: []uuid.UUID{a.ProviderID},
		},
		Version:    1,
		OccurredAt: now,
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) emitAssignmentEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, a models.Assignment) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   a.ID,
		Data: AssignmentEventPayload{
			AssignmentID:    a.ID,
			CaseID:          a.CaseID,
			ProviderID:      a.ProviderID,
			Status:          a.Status.String(),
			Priority:        a.Priority.String(),
			MatchScore:      a.MatchScore,
			AssignedAt:      a.AssignedAt,
			ExpiresAt:       a.ExpiresAt,
			RespondedAt:     a.RespondedAt,
			Reason:          a.Reason,
			RejectionReason: a.RejectionReason,
		},
		Version:    1,
		OccurredAt: s.now(),
	})
}

func (s *Service) requestRecomputes(ctx context.Context, created []models.Assignment) {
	for _, a := range created {
		s.requestRecompute(ctx, a.ProviderID)
	}
}

// requestRecompute is best-effort; a provider's workload snapshot refreshing
// late never fails the operation that changed it.
func (s *Service) requestRecompute(ctx context.Context, providerID uuid.UUID) {
	if s.recompute == nil {
		return
	}
	if err := s.recompute.RequestWorkloadRecompute(ctx, providerID); err != nil {
		s.logg.Warn(s.logg.WithProviderID(ctx, providerID.String()), "workload recompute request failed")
	}
}

func (s *Service) observeRun(trigger string, started time.Time, scored int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRun(trigger, s.now().Sub(started), scored)
}

func (s *Service) incNoEligible() {
	if s.metrics == nil {
		return
	}
	s.metrics.IncNoEligible()
}
