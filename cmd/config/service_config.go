package config

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/utils"
	"Fasting-Tracker/internal/utils/mailing"
	"Fasting-Tracker/internal/utils/storage"
	"Fasting-Tracker/pkg/account"
	"Fasting-Tracker/pkg/fasting"
	"Fasting-Tracker/pkg/gemini"
	"Fasting-Tracker/pkg/jwt"
	"Fasting-Tracker/pkg/localstore"
	"Fasting-Tracker/pkg/meal"
	"Fasting-Tracker/pkg/syncer"
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const DefaultIdleEviction = time.Hour

type Services struct {
	LocalStore     localstore.LocalStore
	SyncService    syncer.SyncService
	FastingService fasting.FastingService
	MealService    meal.MealService
	AccountService account.AccountService
	JWTService     jwt.JWTService
}

func NewServices(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) (*Services, error) {
	// utils
	s3, err := storage.NewAwsS3(storage.LoadS3Config())
	switch {
	case errors.Is(err, domain.ErrImageStorageDisabled):
		logger.Info("AWS_S3_BUCKET not set, meal photo uploads disabled")
		s3 = nil
	case err != nil:
		return nil, err
	}
	mailer := mailing.NewMailer(mailing.LoadMailConfig())

	provider, err := newProvider(logger)
	if err != nil {
		return nil, err
	}

	// Repository
	localStore := localstore.NewRedisStore(rdb, localstore.DefaultNamespace)
	remoteRepository := syncer.NewRemoteRepository(db)

	// Service
	syncService := syncer.NewSyncService(
		remoteRepository,
		utils.GetConfigDuration("SYNC_TIMEOUT_SECONDS", time.Second, syncer.DefaultTimeout),
		logger,
	)
	fastingService := fasting.NewFastingService(
		localStore,
		syncService,
		fasting.RecoveryPolicy{
			Grace: utils.GetConfigDuration("RECOVERY_GRACE_HOURS", time.Hour, fasting.DefaultRecoveryGrace),
		},
		logger,
	)
	pipeline := meal.NewPipeline(
		provider,
		meal.RetryPolicy{
			MaxAttempts: utils.GetConfigInt("AI_MAX_ATTEMPTS", meal.DefaultMaxAttempts),
			Backoff:     utils.GetConfigDuration("AI_RETRY_BACKOFF_MS", time.Millisecond, meal.DefaultBackoff),
			Retryable:   meal.IsTransient,
		},
		utils.GetConfigDuration("AI_TIMEOUT_SECONDS", time.Second, meal.DefaultTimeout),
		logger,
	)
	mealService := meal.NewMealService(pipeline, localStore, syncService, s3, logger)
	accountService := account.NewAccountService(syncService, localStore, mailer, logger, fastingService, mealService)

	return &Services{
		LocalStore:     localStore,
		SyncService:    syncService,
		FastingService: fastingService,
		MealService:    mealService,
		AccountService: accountService,
		JWTService:     jwt.NewJWTService(utils.GetConfig("JWT_SECRET")),
	}, nil
}

// EvictIdle drops per-owner state nobody touched within IDLE_EVICT_MINUTES,
// checking every half window until ctx is done.
func (s *Services) EvictIdle(ctx context.Context, logger *zap.Logger) {
	idle := utils.GetConfigDuration("IDLE_EVICT_MINUTES", time.Minute, DefaultIdleEviction)
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stores := s.FastingService.EvictIdle(idle)
			journals := s.MealService.EvictIdle(idle)
			if stores+journals > 0 {
				logger.Info("evicted idle owners",
					zap.Int("session_stores", stores),
					zap.Int("meal_journals", journals))
			}
		}
	}
}

func newProvider(logger *zap.Logger) (meal.Provider, error) {
	apiKey := utils.GetConfig("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, meal analysis disabled")
		return meal.DisabledProvider{}, nil
	}
	return gemini.NewClient(context.Background(), gemini.Config{
		APIKey: apiKey,
		Model:  utils.GetConfig("GEMINI_MODEL"),
	})
}
