package meal

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/entities"
	"Fasting-Tracker/internal/utils/storage"
	"Fasting-Tracker/pkg/syncer"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const imageFolder = "meals"

type (
	MealService interface {
		LogMeal(ctx context.Context, owner domain.Owner, req domain.LogMealRequest) (domain.MealRecordResponse, error)
		ListMeals(ctx context.Context, owner domain.Owner) ([]domain.MealRecordResponse, error)
		GetMeal(ctx context.Context, owner domain.Owner, id string) (domain.MealRecordResponse, error)
		DeleteMeal(ctx context.Context, owner domain.Owner, id string) (domain.DeleteMealResponse, error)
		Reanalyze(ctx context.Context, owner domain.Owner, id string) (domain.MealRecordResponse, error)
		AnalyzeDirect(ctx context.Context, req domain.AnalyzeMealRequest) domain.FoodAnalysisResponse

		Meals(ctx context.Context, owner domain.Owner) ([]entities.MealRecord, error)
		Adopt(ctx context.Context, from, to domain.Owner) (int, error)
		EvictIdle(idle time.Duration) int
		Release(owner string)
		// Wait blocks until every in-flight analysis has resolved.
		Wait()
	}

	// SnapshotStore is the subset of the local store the meal service needs.
	SnapshotStore interface {
		LoadMeals(ctx context.Context, owner string) ([]entities.MealRecord, error)
		SaveMeals(ctx context.Context, owner string, meals []entities.MealRecord) error
	}

	mealService struct {
		pipeline *Pipeline
		local    SnapshotStore
		sync     syncer.SyncService
		s3       storage.AwsS3
		logger   *zap.Logger
		now      func() time.Time

		mu       sync.Mutex
		journals map[string]*Journal
		used     map[string]time.Time
		wg       sync.WaitGroup
	}
)

// NewMealService wires the analysis pipeline to per-owner journals. s3 may be
// nil, in which case photo uploads are rejected.
func NewMealService(pipeline *Pipeline, local SnapshotStore, sync syncer.SyncService, s3 storage.AwsS3, logger *zap.Logger) MealService {
	return &mealService{
		pipeline: pipeline,
		local:    local,
		sync:     sync,
		s3:       s3,
		logger:   logger.Named("meal"),
		now:      time.Now,
		journals: make(map[string]*Journal),
		used:     make(map[string]time.Time),
	}
}

func (s *mealService) LogMeal(ctx context.Context, owner domain.Owner, req domain.LogMealRequest) (domain.MealRecordResponse, error) {
	j, err := s.open(ctx, owner)
	if err != nil {
		return domain.MealRecordResponse{}, err
	}

	id := uuid.New()
	eatenAt := s.now()
	if req.EatenAt != nil && !req.EatenAt.IsZero() {
		eatenAt = *req.EatenAt
	}
	rec := entities.MealRecord{
		ID:          id,
		EatenAt:     eatenAt,
		Type:        req.Type,
		Description: strings.TrimSpace(req.Description),
		FoodName:    strings.TrimSpace(req.FoodName),
		Calories:    req.Calories,
	}

	var image *domain.ImageInput
	if req.Image != nil {
		if s.s3 == nil {
			return domain.MealRecordResponse{}, domain.ErrImageStorageDisabled
		}
		data, err := storage.ReadFile(req.Image)
		if err != nil {
			return domain.MealRecordResponse{}, fmt.Errorf("%w: unreadable image", domain.ErrInvalidInput)
		}
		mtype, err := storage.DetectImage(data, storage.AllowImage...)
		if err != nil {
			return domain.MealRecordResponse{}, err
		}
		objectKey, err := s.s3.UploadFile(fmt.Sprintf("meal-%s", id), req.Image, imageFolder, storage.AllowImage...)
		if err != nil {
			return domain.MealRecordResponse{}, err
		}
		rec.ImageURL = s.s3.GetPublicLinkKey(objectKey)
		image = &domain.ImageInput{Data: data, MimeType: mtype.String()}
	}

	j.Add(rec)
	if rec.Description != "" || image != nil {
		if rec, err = s.startAnalysis(owner, j, rec, image); err != nil {
			return domain.MealRecordResponse{}, err
		}
	}
	result := s.persist(ctx, owner, j)
	res := toMealResponse(rec)
	res.Sync = &result
	return res, nil
}

func (s *mealService) ListMeals(ctx context.Context, owner domain.Owner) ([]domain.MealRecordResponse, error) {
	j, err := s.open(ctx, owner)
	if err != nil {
		return nil, err
	}
	records := j.List()
	res := make([]domain.MealRecordResponse, 0, len(records))
	for _, rec := range records {
		res = append(res, toMealResponse(rec))
	}
	return res, nil
}

func (s *mealService) GetMeal(ctx context.Context, owner domain.Owner, id string) (domain.MealRecordResponse, error) {
	j, mealID, err := s.openRecord(ctx, owner, id)
	if err != nil {
		return domain.MealRecordResponse{}, err
	}
	rec, err := j.Get(mealID)
	if err != nil {
		return domain.MealRecordResponse{}, err
	}
	return toMealResponse(rec), nil
}

func (s *mealService) DeleteMeal(ctx context.Context, owner domain.Owner, id string) (domain.DeleteMealResponse, error) {
	j, mealID, err := s.openRecord(ctx, owner, id)
	if err != nil {
		return domain.DeleteMealResponse{}, err
	}
	rec, err := j.Remove(mealID)
	if err != nil {
		return domain.DeleteMealResponse{}, err
	}

	if rec.ImageURL != "" && s.s3 != nil {
		if objectKey := s.s3.GetObjectKeyFromLink(rec.ImageURL); objectKey != "" {
			if err := s.s3.DeleteFile(objectKey); err != nil {
				s.logger.Warn("failed to delete meal image", zap.String("object_key", objectKey), zap.Error(err))
			}
		}
	}
	result := s.persist(ctx, owner, j)
	return domain.DeleteMealResponse{ID: rec.ID.String(), Sync: &result}, nil
}

func (s *mealService) Reanalyze(ctx context.Context, owner domain.Owner, id string) (domain.MealRecordResponse, error) {
	j, mealID, err := s.openRecord(ctx, owner, id)
	if err != nil {
		return domain.MealRecordResponse{}, err
	}
	rec, err := j.Get(mealID)
	if err != nil {
		return domain.MealRecordResponse{}, err
	}
	if rec.Status == domain.MealStatusAnalyzing {
		return domain.MealRecordResponse{}, domain.ErrAnalysisInFlight
	}

	image := s.fetchImage(rec)
	if rec.Description == "" && image == nil && rec.ImageURL == "" {
		return domain.MealRecordResponse{}, domain.ErrNothingToAnalyze
	}

	if rec, err = s.startAnalysis(owner, j, rec, image); err != nil {
		return domain.MealRecordResponse{}, err
	}
	result := s.persist(ctx, owner, j)
	res := toMealResponse(rec)
	res.Sync = &result
	return res, nil
}

func (s *mealService) AnalyzeDirect(ctx context.Context, req domain.AnalyzeMealRequest) domain.FoodAnalysisResponse {
	return s.pipeline.Analyze(ctx, domain.MealAnalysisInput{
		Description: req.Description,
		MealType:    req.Type,
	})
}

func (s *mealService) Meals(ctx context.Context, owner domain.Owner) ([]entities.MealRecord, error) {
	j, err := s.open(ctx, owner)
	if err != nil {
		return nil, err
	}
	return j.List(), nil
}

// Adopt moves every settled record of from into to, as when an anonymous
// device signs in. Records still being analyzed stay with from and move on
// a later adopt.
func (s *mealService) Adopt(ctx context.Context, from, to domain.Owner) (int, error) {
	if from.Key == to.Key {
		return 0, nil
	}
	src, err := s.open(ctx, from)
	if err != nil {
		return 0, err
	}
	dst, err := s.open(ctx, to)
	if err != nil {
		return 0, err
	}

	moved := src.TakeSettled()
	if len(moved) == 0 {
		return 0, nil
	}
	added := dst.Absorb(moved)
	s.persist(ctx, to, dst)
	s.persist(ctx, from, src)
	s.logger.Info("adopted meals",
		zap.String("from", from.Key),
		zap.String("to", to.Key),
		zap.Int("moved", len(moved)),
		zap.Int("added", added))
	return added, nil
}

// EvictIdle drops journals nobody opened within idle. A journal with an
// analysis still running is kept so its result is not lost.
func (s *mealService) EvictIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	evicted := 0
	for key, last := range s.used {
		j := s.journals[key]
		if last.After(cutoff) || (j != nil && j.InFlight() > 0) {
			continue
		}
		delete(s.journals, key)
		delete(s.used, key)
		evicted++
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Debug("evicted idle meal journals", zap.Int("count", evicted))
	}
	return evicted
}

func (s *mealService) Release(owner string) {
	s.mu.Lock()
	j, ok := s.journals[owner]
	delete(s.journals, owner)
	delete(s.used, owner)
	s.mu.Unlock()
	if ok {
		j.Close()
	}
}

func (s *mealService) Wait() {
	s.wg.Wait()
}

func (s *mealService) open(ctx context.Context, owner domain.Owner) (*Journal, error) {
	if owner.Key == "" {
		return nil, domain.ErrOwnerMissing
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.journals[owner.Key]; ok {
		s.used[owner.Key] = s.now()
		return j, nil
	}
	records, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	j := NewJournal(owner.Key, records)
	s.journals[owner.Key] = j
	s.used[owner.Key] = s.now()
	return j, nil
}

// load reads the local snapshot. A signed-in owner with nothing stored on
// this device is seeded from the remote copy; a failed restore starts empty.
func (s *mealService) load(ctx context.Context, owner domain.Owner) ([]entities.MealRecord, error) {
	records, err := s.local.LoadMeals(ctx, owner.Key)
	if err != nil || len(records) > 0 || !owner.Authenticated() {
		return records, err
	}

	snap, err := s.sync.Restore(ctx, owner.Identity.ID)
	if err != nil {
		s.logger.Warn("failed to restore meals from remote", zap.String("owner", owner.Key), zap.Error(err))
		return nil, nil
	}
	if len(snap.Meals) == 0 {
		return nil, nil
	}
	if err := s.local.SaveMeals(ctx, owner.Key, snap.Meals); err != nil {
		s.logger.Error("failed to save local meals", zap.String("owner", owner.Key), zap.Error(err))
	}
	s.logger.Info("restored meals from remote",
		zap.String("owner", owner.Key),
		zap.Int("meals", len(snap.Meals)))
	return snap.Meals, nil
}

func (s *mealService) openRecord(ctx context.Context, owner domain.Owner, id string) (*Journal, uuid.UUID, error) {
	mealID, err := uuid.Parse(id)
	if err != nil {
		return nil, uuid.Nil, domain.ErrParseUUID
	}
	j, err := s.open(ctx, owner)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return j, mealID, nil
}

// startAnalysis claims the record and runs the pipeline in the background.
// The claim is synchronous so a second submission fails immediately.
func (s *mealService) startAnalysis(owner domain.Owner, j *Journal, rec entities.MealRecord, image *domain.ImageInput) (entities.MealRecord, error) {
	ctx, cancel := context.WithCancel(context.Background())
	claimed, err := j.BeginAnalysis(rec.ID, cancel)
	if err != nil {
		cancel()
		return entities.MealRecord{}, err
	}

	input := domain.MealAnalysisInput{
		Description: rec.Description,
		ImageRef:    rec.ImageURL,
		MealType:    rec.Type,
		Image:       image,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		result, err := s.pipeline.Run(ctx, input)
		var (
			resolved entities.MealRecord
			kept     bool
		)
		if err != nil {
			resolved, kept = j.Resolve(rec.ID, nil, userMessage(err))
		} else {
			resolved, kept = j.Resolve(rec.ID, &result, "")
		}
		if !kept {
			s.logger.Debug("discarding analysis for removed meal",
				zap.String("owner", owner.Key),
				zap.String("meal_id", rec.ID.String()))
			return
		}
		s.logger.Debug("meal analysis resolved",
			zap.String("owner", owner.Key),
			zap.String("meal_id", resolved.ID.String()),
			zap.String("status", string(resolved.Status)))
		s.persist(context.Background(), owner, j)
	}()
	return claimed, nil
}

// fetchImage downloads the stored photo for a re-analysis. Failure falls back
// to the image reference alone.
func (s *mealService) fetchImage(rec entities.MealRecord) *domain.ImageInput {
	if rec.ImageURL == "" || s.s3 == nil {
		return nil
	}
	objectKey := s.s3.GetObjectKeyFromLink(rec.ImageURL)
	if objectKey == "" {
		return nil
	}
	data, err := s.s3.GetFile(objectKey)
	if err != nil {
		s.logger.Warn("failed to fetch meal image", zap.String("object_key", objectKey), zap.Error(err))
		return nil
	}
	mtype, err := storage.DetectImage(data, storage.AllowImage...)
	if err != nil {
		s.logger.Warn("stored meal image is not an image", zap.String("object_key", objectKey), zap.Error(err))
		return nil
	}
	return &domain.ImageInput{Data: data, MimeType: mtype.String()}
}

// persist writes the journal locally and offers it to the remote store. A
// failure of either leaves the in-memory journal untouched; the remote
// outcome is returned for the caller's response.
func (s *mealService) persist(ctx context.Context, owner domain.Owner, j *Journal) domain.SyncResult {
	result := domain.SyncResult{State: domain.SyncStateLocalOnly}
	err := j.Persist(func(meals []entities.MealRecord) error {
		err := s.local.SaveMeals(ctx, owner.Key, meals)
		result = s.sync.Sync(ctx, owner.Identity, syncer.Snapshot{Meals: meals})
		return err
	})
	if err != nil {
		s.logger.Error("failed to save local meals", zap.String("owner", owner.Key), zap.Error(err))
	}
	return result
}

func toMealResponse(rec entities.MealRecord) domain.MealRecordResponse {
	res := domain.MealRecordResponse{
		ID:          rec.ID.String(),
		Timestamp:   rec.EatenAt,
		Type:        rec.Type,
		ImageURL:    rec.ImageURL,
		Description: rec.Description,
		FoodName:    rec.FoodName,
		Calories:    rec.Calories,
		Status:      rec.Status,
		AIAnalysis:  rec.AIAnalysis,
	}
	if rec.AnalysisError != nil {
		res.AnalysisError = *rec.AnalysisError
	}
	return res
}
