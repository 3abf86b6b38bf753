package syncer

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/entities"
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 10 * time.Second

type (
	// Snapshot is a copy of an owner's local state.
	Snapshot struct {
		Sessions []entities.FastingSession
		Meals    []entities.MealRecord
	}

	SyncService interface {
		// Sync never fails the caller: remote errors come back in the result
		// and the local snapshot stays authoritative.
		Sync(ctx context.Context, identity *domain.Identity, snapshot Snapshot) domain.SyncResult
		// Restore reads the user's remote copy. It seeds a device whose local
		// store holds nothing for the user yet.
		Restore(ctx context.Context, userID string) (Snapshot, error)
		PurgeUser(ctx context.Context, userID string) error
	}

	syncService struct {
		repo    RemoteRepository
		timeout time.Duration
		logger  *zap.Logger
		now     func() time.Time
	}
)

func NewSyncService(repo RemoteRepository, timeout time.Duration, logger *zap.Logger) SyncService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &syncService{
		repo:    repo,
		timeout: timeout,
		logger:  logger.Named("sync"),
		now:     time.Now,
	}
}

func (s *syncService) Sync(ctx context.Context, identity *domain.Identity, snapshot Snapshot) domain.SyncResult {
	if identity == nil || identity.ID == "" {
		return domain.SyncResult{State: domain.SyncStateLocalOnly}
	}

	sessions := make([]entities.FastingSession, len(snapshot.Sessions))
	for i, sess := range snapshot.Sessions {
		sess.UserID = identity.ID
		sessions[i] = sess
	}
	meals := make([]entities.MealRecord, len(snapshot.Meals))
	for i, m := range snapshot.Meals {
		m.UserID = identity.ID
		meals[i] = m
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.repo.UpsertSessions(gctx, sessions)
	})
	g.Go(func() error {
		return s.repo.UpsertMeals(gctx, meals)
	})

	if err := g.Wait(); err != nil {
		perr := &domain.ProviderError{Op: "remote upsert", Transient: true, Err: err}
		s.logger.Warn("remote sync failed, keeping local state",
			zap.String("user_id", identity.ID),
			zap.Int("sessions", len(sessions)),
			zap.Int("meals", len(meals)),
			zap.Error(perr))
		return domain.SyncResult{
			State:    domain.SyncStateFailed,
			Sessions: len(sessions),
			Meals:    len(meals),
			Error:    perr.Error(),
		}
	}

	syncedAt := s.now()
	s.logger.Debug("remote sync complete",
		zap.String("user_id", identity.ID),
		zap.Int("sessions", len(sessions)),
		zap.Int("meals", len(meals)))
	return domain.SyncResult{
		State:    domain.SyncStateSynced,
		Sessions: len(sessions),
		Meals:    len(meals),
		SyncedAt: &syncedAt,
	}
}

func (s *syncService) Restore(ctx context.Context, userID string) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		sessions []*entities.FastingSession
		meals    []*entities.MealRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sessions, err = s.repo.GetSessionsByUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		meals, err = s.repo.GetMealsByUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, &domain.ProviderError{Op: "remote restore", Transient: true, Err: err}
	}

	out := Snapshot{
		Sessions: make([]entities.FastingSession, 0, len(sessions)),
		Meals:    make([]entities.MealRecord, 0, len(meals)),
	}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, *sess)
	}
	for _, m := range meals {
		out.Meals = append(out.Meals, *m)
	}
	s.logger.Debug("remote restore complete",
		zap.String("user_id", userID),
		zap.Int("sessions", len(out.Sessions)),
		zap.Int("meals", len(out.Meals)))
	return out, nil
}

func (s *syncService) PurgeUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.DeleteUserData(ctx, userID); err != nil {
		return &domain.ProviderError{Op: "remote purge", Transient: true, Err: err}
	}
	return nil
}
