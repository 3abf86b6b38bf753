package fasting

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/entities"
	"Fasting-Tracker/pkg/syncer"
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	FastingService interface {
		Current(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error)
		History(ctx context.Context, owner domain.Owner) (domain.FastingHistoryResponse, error)
		Start(ctx context.Context, owner domain.Owner, req domain.StartFastRequest) (domain.FastingStatusResponse, error)
		Pause(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error)
		Resume(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error)
		CompleteFast(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error)
		EndEatingWindow(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error)
		Backfill(ctx context.Context, owner domain.Owner, req domain.BackfillFastRequest) (domain.FastingSessionResponse, error)
		EditSession(ctx context.Context, owner domain.Owner, id string, req domain.EditFastRequest) (domain.FastingSessionResponse, error)
		Stages(elapsedHours *float64) (domain.StageTableResponse, error)

		Sessions(ctx context.Context, owner domain.Owner) ([]entities.FastingSession, error)
		Adopt(ctx context.Context, from, to domain.Owner) (int, error)
		RecoverAll(ctx context.Context) (int, error)
		EvictIdle(idle time.Duration) int
		Release(owner string)
	}

	// SnapshotStore is the subset of the local store the fasting service needs.
	SnapshotStore interface {
		LoadSessions(ctx context.Context, owner string) ([]entities.FastingSession, error)
		SaveSessions(ctx context.Context, owner string, sessions []entities.FastingSession) error
		Owners(ctx context.Context) ([]string, error)
	}

	fastingService struct {
		registry *Registry
		local    SnapshotStore
		sync     syncer.SyncService
		policy   RecoveryPolicy
		logger   *zap.Logger
		now      func() time.Time
	}
)

func NewFastingService(local SnapshotStore, sync syncer.SyncService, policy RecoveryPolicy, logger *zap.Logger) FastingService {
	svc := &fastingService{
		registry: NewRegistry(),
		local:    local,
		sync:     sync,
		policy:   policy,
		logger:   logger.Named("fasting"),
		now:      time.Now,
	}
	svc.registry.now = func() time.Time { return svc.now() }
	return svc
}

func (s *fastingService) Current(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error) {
	st, _, err := s.open(ctx, owner)
	if err != nil {
		return domain.FastingStatusResponse{}, err
	}
	return statusResponse(st, s.now()), nil
}

func (s *fastingService) History(ctx context.Context, owner domain.Owner) (domain.FastingHistoryResponse, error) {
	st, _, err := s.open(ctx, owner)
	if err != nil {
		return domain.FastingHistoryResponse{}, err
	}
	history := st.History()
	res := domain.FastingHistoryResponse{Sessions: make([]domain.FastingSessionResponse, 0, len(history))}
	for _, h := range history {
		res.Sessions = append(res.Sessions, toSessionResponse(h))
	}
	return res, nil
}

func (s *fastingService) Start(ctx context.Context, owner domain.Owner, req domain.StartFastRequest) (domain.FastingStatusResponse, error) {
	return s.mutate(ctx, owner, "start", func(st *SessionStore, now time.Time) (*entities.FastingSession, error) {
		return st.Start(StartParams{
			TargetDurationHours: req.TargetDurationHours,
			Timezone:            req.Timezone,
			Source:              domain.SourceManualStart,
		}, now)
	})
}

func (s *fastingService) Pause(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error) {
	return s.mutate(ctx, owner, "pause", func(st *SessionStore, now time.Time) (*entities.FastingSession, error) {
		return st.Pause(now)
	})
}

func (s *fastingService) Resume(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error) {
	return s.mutate(ctx, owner, "resume", func(st *SessionStore, now time.Time) (*entities.FastingSession, error) {
		return st.Resume(now)
	})
}

func (s *fastingService) CompleteFast(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error) {
	return s.mutate(ctx, owner, "complete_fast", func(st *SessionStore, now time.Time) (*entities.FastingSession, error) {
		return st.CompleteFast(now)
	})
}

func (s *fastingService) EndEatingWindow(ctx context.Context, owner domain.Owner) (domain.FastingStatusResponse, error) {
	return s.mutate(ctx, owner, "end_eating_window", func(st *SessionStore, now time.Time) (*entities.FastingSession, error) {
		return st.EndEatingWindow(now)
	})
}

func (s *fastingService) Backfill(ctx context.Context, owner domain.Owner, req domain.BackfillFastRequest) (domain.FastingSessionResponse, error) {
	var created *entities.FastingSession
	_, err := s.mutate(ctx, owner, "backfill", func(st *SessionStore, now time.Time) (*entities.FastingSession, error) {
		sess, err := st.Backfill(EditParams{
			StartAt:             req.StartAt,
			EndAt:               req.EndAt,
			TargetDurationHours: req.TargetDurationHours,
			Timezone:            req.Timezone,
		}, now)
		created = sess
		return sess, err
	})
	if err != nil {
		return domain.FastingSessionResponse{}, err
	}
	return toSessionResponse(*created), nil
}

func (s *fastingService) EditSession(ctx context.Context, owner domain.Owner, id string, req domain.EditFastRequest) (domain.FastingSessionResponse, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return domain.FastingSessionResponse{}, domain.ErrParseUUID
	}

	var edited *entities.FastingSession
	_, err = s.mutate(ctx, owner, "manual_edit", func(st *SessionStore, now time.Time) (*entities.FastingSession, error) {
		sess, err := st.Edit(sessionID, EditParams{
			StartAt:             req.StartAt,
			EndAt:               req.EndAt,
			TargetDurationHours: req.TargetDurationHours,
		}, now)
		edited = sess
		return sess, err
	})
	if err != nil {
		return domain.FastingSessionResponse{}, err
	}
	return toSessionResponse(*edited), nil
}

func (s *fastingService) Stages(elapsedHours *float64) (domain.StageTableResponse, error) {
	res := domain.StageTableResponse{Stages: Stages()}
	if elapsedHours != nil {
		stage, err := Classify(*elapsedHours)
		if err != nil {
			return domain.StageTableResponse{}, err
		}
		res.Current = &stage
	}
	return res, nil
}

func (s *fastingService) Sessions(ctx context.Context, owner domain.Owner) ([]entities.FastingSession, error) {
	st, _, err := s.open(ctx, owner)
	if err != nil {
		return nil, err
	}
	return st.Sessions(), nil
}

// Adopt moves every session of from into to and empties from, as when an
// anonymous device signs in. When both hold an active session the most
// recently started one stays current and the other is closed.
func (s *fastingService) Adopt(ctx context.Context, from, to domain.Owner) (int, error) {
	if from.Key == to.Key {
		return 0, nil
	}
	src, _, err := s.open(ctx, from)
	if err != nil {
		return 0, err
	}
	dst, _, err := s.open(ctx, to)
	if err != nil {
		return 0, err
	}

	moved := src.Drain()
	if len(moved) == 0 {
		return 0, nil
	}
	added := dst.Absorb(moved)

	// destination first: a crash in between duplicates rather than loses
	s.persist(ctx, to, dst)
	s.persist(ctx, from, src)
	s.logger.Info("adopted sessions",
		zap.String("from", from.Key),
		zap.String("to", to.Key),
		zap.Int("moved", len(moved)),
		zap.Int("added", added))
	return added, nil
}

// RecoverAll opens every owner with a stored snapshot so stale fasts are
// auto-recovered. Signed-in owners are synced with a bare identity. Stores
// that were not already open are released again.
func (s *fastingService) RecoverAll(ctx context.Context) (int, error) {
	owners, err := s.local.Owners(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, key := range owners {
		wasOpen := s.registry.Has(key)
		_, sess, err := s.open(ctx, domain.OwnerFromKey(key))
		if err != nil {
			s.logger.Warn("failed to open owner during recovery sweep", zap.String("owner", key), zap.Error(err))
			continue
		}
		if sess != nil {
			recovered++
		}
		if !wasOpen {
			s.registry.Release(key)
		}
	}
	return recovered, nil
}

// EvictIdle drops stores nobody opened within idle. Every transition is
// persisted before it returns, so the next open rebuilds the same state.
func (s *fastingService) EvictIdle(idle time.Duration) int {
	evicted := s.registry.EvictIdle(idle)
	if len(evicted) > 0 {
		s.logger.Debug("evicted idle session stores", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

func (s *fastingService) Release(owner string) {
	s.registry.Release(owner)
}

// open returns the owner's store, building it on first use. A stale fast is
// auto-recovered on every open, not only on load, and returned.
func (s *fastingService) open(ctx context.Context, owner domain.Owner) (*SessionStore, *entities.FastingSession, error) {
	if owner.Key == "" {
		return nil, nil, domain.ErrOwnerMissing
	}

	st, _, err := s.registry.Open(owner.Key, func() ([]entities.FastingSession, error) {
		return s.load(ctx, owner)
	})
	if err != nil {
		return nil, nil, err
	}

	recovered, ok := st.Recover(s.now(), s.policy)
	if !ok {
		return st, nil, nil
	}
	s.logger.Info("auto-recovered stale fast",
		zap.String("owner", owner.Key),
		zap.String("session_id", recovered.ID.String()),
		zap.Int("duration_minutes", recovered.DurationMinutes),
		zap.Bool("completed", recovered.Completed))
	s.persist(ctx, owner, st)
	return st, recovered, nil
}

// load reads the local snapshot. A signed-in owner with nothing stored on
// this device is seeded from the remote copy; a failed restore starts empty.
func (s *fastingService) load(ctx context.Context, owner domain.Owner) ([]entities.FastingSession, error) {
	sessions, err := s.local.LoadSessions(ctx, owner.Key)
	if err != nil || len(sessions) > 0 || !owner.Authenticated() {
		return sessions, err
	}

	snap, err := s.sync.Restore(ctx, owner.Identity.ID)
	if err != nil {
		s.logger.Warn("failed to restore sessions from remote", zap.String("owner", owner.Key), zap.Error(err))
		return nil, nil
	}
	if len(snap.Sessions) == 0 {
		return nil, nil
	}
	if err := s.local.SaveSessions(ctx, owner.Key, snap.Sessions); err != nil {
		s.logger.Error("failed to save local sessions", zap.String("owner", owner.Key), zap.Error(err))
	}
	s.logger.Info("restored sessions from remote",
		zap.String("owner", owner.Key),
		zap.Int("sessions", len(snap.Sessions)))
	return snap.Sessions, nil
}

func (s *fastingService) mutate(ctx context.Context, owner domain.Owner, op string, transition func(*SessionStore, time.Time) (*entities.FastingSession, error)) (domain.FastingStatusResponse, error) {
	st, _, err := s.open(ctx, owner)
	if err != nil {
		return domain.FastingStatusResponse{}, err
	}

	now := s.now()
	sess, err := transition(st, now)
	if err != nil {
		return domain.FastingStatusResponse{}, err
	}
	s.logger.Debug("fasting transition",
		zap.String("owner", owner.Key),
		zap.String("op", op),
		zap.String("session_id", sess.ID.String()),
		zap.String("status", string(sess.Status)))

	result := s.persist(ctx, owner, st)
	res := statusResponse(st, now)
	res.Sync = &result
	return res, nil
}

// persist writes the local snapshot and then offers it to the remote store.
// Neither failure undoes the in-memory transition.
func (s *fastingService) persist(ctx context.Context, owner domain.Owner, st *SessionStore) domain.SyncResult {
	var result domain.SyncResult
	err := st.Persist(func(sessions []entities.FastingSession) error {
		err := s.local.SaveSessions(ctx, owner.Key, sessions)
		result = s.sync.Sync(ctx, owner.Identity, syncer.Snapshot{Sessions: sessions})
		return err
	})
	if err != nil {
		s.logger.Error("failed to save local sessions", zap.String("owner", owner.Key), zap.Error(err))
	}
	return result
}

func statusResponse(st *SessionStore, now time.Time) domain.FastingStatusResponse {
	cur := Touch(st.Current(), now)
	if cur == nil {
		return domain.FastingStatusResponse{State: domain.StatusIdle}
	}

	elapsed := cur.Elapsed(now).Hours()
	res := domain.FastingStatusResponse{
		State:        cur.Status,
		ElapsedHours: math.Round(elapsed*100) / 100,
	}
	session := toSessionResponse(*cur)
	res.Session = &session
	if stage, err := Classify(elapsed); err == nil {
		res.Stage = &stage
	}
	if cur.TargetDurationHours > 0 {
		res.Progress = math.Min(elapsed/cur.TargetDurationHours, 1)
	}
	return res
}

func toSessionResponse(s entities.FastingSession) domain.FastingSessionResponse {
	return domain.FastingSessionResponse{
		ID:                  s.ID.String(),
		Status:              s.Status,
		StartAt:             s.StartAt,
		EndAt:               s.EndAt,
		TargetDurationHours: s.TargetDurationHours,
		DurationMinutes:     s.DurationMinutes,
		Completed:           s.Completed,
		Source:              s.Source,
		Timezone:            s.Timezone,
	}
}
