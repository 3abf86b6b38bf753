package meal

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/entities"
	"Fasting-Tracker/pkg/syncer"
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type memoryMeals struct {
	mu    sync.Mutex
	meals map[string][]entities.MealRecord
	err   error
}

func newMemoryMeals() *memoryMeals {
	return &memoryMeals{meals: make(map[string][]entities.MealRecord)}
}

func (m *memoryMeals) LoadMeals(_ context.Context, owner string) ([]entities.MealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.MealRecord(nil), m.meals[owner]...), nil
}

func (m *memoryMeals) SaveMeals(_ context.Context, owner string, meals []entities.MealRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.meals[owner] = append([]entities.MealRecord(nil), meals...)
	return nil
}

func (m *memoryMeals) stored(owner string) []entities.MealRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meals[owner]
}

type recordingSync struct {
	mu     sync.Mutex
	calls  int
	fail   bool
	remote syncer.Snapshot
}

func (r *recordingSync) Sync(_ context.Context, identity *domain.Identity, snapshot syncer.Snapshot) domain.SyncResult {
	if identity == nil {
		return domain.SyncResult{State: domain.SyncStateLocalOnly}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return domain.SyncResult{State: domain.SyncStateFailed, Meals: len(snapshot.Meals), Error: "remote upsert: connection refused"}
	}
	return domain.SyncResult{State: domain.SyncStateSynced, Meals: len(snapshot.Meals)}
}

func (r *recordingSync) Restore(context.Context, string) (syncer.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remote, nil
}

func (r *recordingSync) PurgeUser(context.Context, string) error { return nil }

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) UploadFile(fileName string, file *multipart.FileHeader, folder string, _ ...string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src); err != nil {
		return "", err
	}
	key := folder + "/" + fileName + ".png"
	f.mu.Lock()
	f.objects[key] = buf.Bytes()
	f.mu.Unlock()
	return key, nil
}

func (f *fakeS3) GetFile(objectKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (f *fakeS3) DeleteFile(objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectKey)
	f.deleted = append(f.deleted, objectKey)
	return nil
}

func (f *fakeS3) GetPublicLinkKey(objectKey string) string {
	return "https://cdn.example.com/" + objectKey
}

func (f *fakeS3) GetObjectKeyFromLink(link string) string {
	const base = "https://cdn.example.com/"
	if len(link) <= len(base) || link[:len(base)] != base {
		return ""
	}
	return link[len(base):]
}

// gatedProvider blocks every call until release is closed or the call is
// cancelled, then answers with reply.
type gatedProvider struct {
	release chan struct{}
	reply   string

	mu     sync.Mutex
	images []*domain.ImageInput
}

func newGatedProvider(reply string) *gatedProvider {
	return &gatedProvider{release: make(chan struct{}), reply: reply}
}

func (g *gatedProvider) Generate(ctx context.Context, _ string, image *domain.ImageInput) (string, error) {
	g.mu.Lock()
	g.images = append(g.images, image)
	g.mu.Unlock()
	select {
	case <-g.release:
		return g.reply, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedProvider) open() { close(g.release) }

type mealFixture struct {
	svc   *mealService
	local *memoryMeals
	sync  *recordingSync
	s3    *fakeS3
	logs  *observer.ObservedLogs
}

func newMealFixture(t *testing.T, provider Provider, withS3 bool) *mealFixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	f := &mealFixture{local: newMemoryMeals(), sync: &recordingSync{}, logs: logs}

	pipeline := NewPipeline(provider, RetryPolicy{MaxAttempts: 1}, time.Minute, logger)
	var s3 *fakeS3
	if withS3 {
		s3 = newFakeS3()
		f.s3 = s3
		f.svc = NewMealService(pipeline, f.local, f.sync, s3, logger).(*mealService)
	} else {
		f.svc = NewMealService(pipeline, f.local, f.sync, nil, logger).(*mealService)
	}
	t.Cleanup(f.svc.Wait)
	return f
}

func imageHeader(t *testing.T, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "meal.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

var mealOwner = domain.Owner{Key: "user-1", Identity: &domain.Identity{ID: "user-1"}}

func TestMealService_ScenarioAnalyzingToDone(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	f := newMealFixture(t, provider, false)
	ctx := context.Background()

	logged, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeBreakfast, Description: "牛油果鸡蛋吐司"})
	require.NoError(t, err)
	assert.Equal(t, domain.MealStatusAnalyzing, logged.Status)
	assert.Nil(t, logged.AIAnalysis)

	stored := f.local.stored(mealOwner.Key)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.MealStatusAnalyzing, stored[0].Status)

	provider.open()
	f.svc.Wait()

	got, err := f.svc.GetMeal(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MealStatusDone, got.Status)
	require.NotNil(t, got.AIAnalysis)
	assert.Equal(t, scenarioResult(), *got.AIAnalysis)
	assert.Empty(t, got.AnalysisError)
	assert.Equal(t, "牛油果鸡蛋吐司", got.FoodName)
	assert.Equal(t, 275.0, got.Calories)

	stored = f.local.stored(mealOwner.Key)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.MealStatusDone, stored[0].Status)
	assert.Equal(t, 2, f.sync.calls)
}

func TestMealService_ScenarioInvalidReplyIsolatesRecord(t *testing.T) {
	f := newMealFixture(t, ProviderFunc(func(_ context.Context, prompt string, _ *domain.ImageInput) (string, error) {
		return "抱歉，我无法识别", nil
	}), false)
	ctx := context.Background()

	manual, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeSnack, FoodName: "苹果", Calories: 52})
	require.NoError(t, err)
	assert.Empty(t, manual.Status, "records without description or image are not analyzed")

	bad, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeLunch, Description: "一碗面"})
	require.NoError(t, err)
	f.svc.Wait()

	got, err := f.svc.GetMeal(ctx, mealOwner, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MealStatusError, got.Status)
	assert.Nil(t, got.AIAnalysis)
	assert.Contains(t, got.AnalysisError, domain.MessageAnalysisUnavailable)

	other, err := f.svc.GetMeal(ctx, mealOwner, manual.ID)
	require.NoError(t, err)
	assert.Empty(t, other.Status)
	assert.Equal(t, "苹果", other.FoodName)
}

func TestMealService_ReanalyzeRejectsInFlight(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	f := newMealFixture(t, provider, false)
	ctx := context.Background()

	logged, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeDinner, Description: "寿司"})
	require.NoError(t, err)

	_, err = f.svc.Reanalyze(ctx, mealOwner, logged.ID)
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)

	provider.open()
	f.svc.Wait()

	again, err := f.svc.Reanalyze(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MealStatusAnalyzing, again.Status)
	f.svc.Wait()
}

func TestMealService_DeleteDiscardsLateResult(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	f := newMealFixture(t, provider, false)
	ctx := context.Background()

	logged, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeLunch, Description: "盖浇饭"})
	require.NoError(t, err)

	deleted, err := f.svc.DeleteMeal(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	assert.Equal(t, logged.ID, deleted.ID)
	f.svc.Wait()

	meals, err := f.svc.ListMeals(ctx, mealOwner)
	require.NoError(t, err)
	assert.Empty(t, meals)
	assert.Empty(t, f.local.stored(mealOwner.Key))
	assert.Equal(t, 1, f.logs.FilterMessage("discarding analysis for removed meal").Len())

	_, err = f.svc.GetMeal(ctx, mealOwner, logged.ID)
	assert.ErrorIs(t, err, domain.ErrMealNotFound)
	_, err = f.svc.DeleteMeal(ctx, mealOwner, logged.ID)
	assert.ErrorIs(t, err, domain.ErrMealNotFound)
}

func TestMealService_ReleaseCancelsAnalyses(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	f := newMealFixture(t, provider, false)
	ctx := context.Background()

	_, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeLunch, Description: "饺子"})
	require.NoError(t, err)

	f.svc.Release(mealOwner.Key)
	f.svc.Wait()

	stored := f.local.stored(mealOwner.Key)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.MealStatusAnalyzing, stored[0].Status, "a released journal is not persisted again")

	// reloading marks the interrupted analysis as failed
	reloaded, err := f.svc.ListMeals(ctx, mealOwner)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, domain.MealStatusError, reloaded[0].Status)
	assert.Equal(t, interruptedAnalysis, reloaded[0].AnalysisError)
}

func TestMealService_ImageUploadAndReanalysis(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	provider.open()
	f := newMealFixture(t, provider, true)
	ctx := context.Background()

	logged, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{
		Type:  domain.MealTypeBreakfast,
		Image: imageHeader(t, pngHeader),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/meals/meal-"+logged.ID+".png", logged.ImageURL)
	f.svc.Wait()

	_, err = f.svc.Reanalyze(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	f.svc.Wait()

	provider.mu.Lock()
	images := provider.images
	provider.mu.Unlock()
	require.Len(t, images, 2)
	for _, img := range images {
		require.NotNil(t, img)
		assert.Equal(t, "image/png", img.MimeType)
		assert.Equal(t, pngHeader, img.Data)
	}

	_, err = f.svc.DeleteMeal(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"meals/meal-" + logged.ID + ".png"}, f.s3.deleted)
}

func TestMealService_ImageRejections(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	provider.open()
	ctx := context.Background()

	noStorage := newMealFixture(t, provider, false)
	_, err := noStorage.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeLunch, Image: imageHeader(t, pngHeader)})
	assert.ErrorIs(t, err, domain.ErrImageStorageDisabled)

	withStorage := newMealFixture(t, provider, true)
	_, err = withStorage.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeLunch, Image: imageHeader(t, []byte("plain text, not an image"))})
	assert.ErrorIs(t, err, domain.ErrInvalidImageFormat)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, withStorage.s3.objects)
}

func TestMealService_ReanalyzeNeedsInput(t *testing.T) {
	f := newMealFixture(t, newGatedProvider(scenarioReply), false)
	ctx := context.Background()

	logged, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeSnack, FoodName: "坚果"})
	require.NoError(t, err)

	_, err = f.svc.Reanalyze(ctx, mealOwner, logged.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToAnalyze)

	_, err = f.svc.Reanalyze(ctx, mealOwner, "bad-id")
	assert.ErrorIs(t, err, domain.ErrParseUUID)
}

func TestMealService_LocalFailureKeepsMemory(t *testing.T) {
	f := newMealFixture(t, newGatedProvider(scenarioReply), false)
	f.local.err = errors.New("disk full")
	ctx := context.Background()

	logged, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeSnack, FoodName: "酸奶"})
	require.NoError(t, err)

	got, err := f.svc.GetMeal(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	assert.Equal(t, "酸奶", got.FoodName)
	assert.Equal(t, 1, f.logs.FilterMessage("failed to save local meals").Len())
}

func TestMealService_EatenAtAndOrdering(t *testing.T) {
	f := newMealFixture(t, newGatedProvider(scenarioReply), false)
	ctx := context.Background()
	earlier := eatenAt.Add(-3 * time.Hour)

	first, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeBreakfast, FoodName: "粥", EatenAt: &earlier})
	require.NoError(t, err)
	assert.True(t, first.Timestamp.Equal(earlier))

	second, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeLunch, FoodName: "面", EatenAt: &eatenAt})
	require.NoError(t, err)

	meals, err := f.svc.ListMeals(ctx, mealOwner)
	require.NoError(t, err)
	require.Len(t, meals, 2)
	assert.Equal(t, second.ID, meals[0].ID)
	assert.Equal(t, first.ID, meals[1].ID)
}

func TestMealService_AnalyzeDirect(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	provider.open()
	f := newMealFixture(t, provider, false)

	res := f.svc.AnalyzeDirect(context.Background(), domain.AnalyzeMealRequest{Description: "牛油果鸡蛋吐司"})
	require.False(t, res.Error)
	assert.Equal(t, scenarioResult(), *res.Result)
}

func TestMealService_OwnerRequired(t *testing.T) {
	f := newMealFixture(t, newGatedProvider(scenarioReply), false)
	_, err := f.svc.ListMeals(context.Background(), domain.Owner{})
	assert.ErrorIs(t, err, domain.ErrOwnerMissing)
}

func TestMealService_SyncOutcomeReachesResponses(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	provider.open()
	f := newMealFixture(t, provider, false)
	f.sync.fail = true
	ctx := context.Background()

	logged, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeDinner, Description: "番茄炒蛋"})
	require.NoError(t, err)
	require.NotNil(t, logged.Sync)
	assert.Equal(t, domain.SyncStateFailed, logged.Sync.State)
	assert.Contains(t, logged.Sync.Error, "connection refused")
	assert.Len(t, f.local.stored(mealOwner.Key), 1, "the local copy is kept")
	f.svc.Wait()

	again, err := f.svc.Reanalyze(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	require.NotNil(t, again.Sync)
	assert.Equal(t, domain.SyncStateFailed, again.Sync.State)
	f.svc.Wait()

	deleted, err := f.svc.DeleteMeal(ctx, mealOwner, logged.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted.Sync)
	assert.Equal(t, domain.SyncStateFailed, deleted.Sync.State)

	anonymous := domain.Owner{Key: domain.AnonymousOwnerPrefix + "device-1"}
	local, err := f.svc.LogMeal(ctx, anonymous, domain.LogMealRequest{Type: domain.MealTypeSnack, FoodName: "香蕉"})
	require.NoError(t, err)
	require.NotNil(t, local.Sync)
	assert.Equal(t, domain.SyncStateLocalOnly, local.Sync.State)
}

func TestMealService_RestoresSignedOwnerFromRemote(t *testing.T) {
	f := newMealFixture(t, newGatedProvider(scenarioReply), false)
	ctx := context.Background()
	remote := newRecord(0)
	remote.UserID = mealOwner.Key
	remote.Status = domain.MealStatusDone
	remote.AIAnalysis = &domain.FoodAnalysisResult{FoodName: "沙拉", Calories: 320}
	f.sync.remote = syncer.Snapshot{Meals: []entities.MealRecord{remote}}

	meals, err := f.svc.ListMeals(ctx, mealOwner)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, remote.ID.String(), meals[0].ID)
	assert.Len(t, f.local.stored(mealOwner.Key), 1)
	assert.Equal(t, 1, f.logs.FilterMessage("restored meals from remote").Len())

	anonymous, err := f.svc.ListMeals(ctx, domain.Owner{Key: domain.AnonymousOwnerPrefix + "device-1"})
	require.NoError(t, err)
	assert.Empty(t, anonymous)
}

func TestMealService_AdoptMovesSettledRecords(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	f := newMealFixture(t, provider, false)
	ctx := context.Background()
	anonymous := domain.Owner{Key: domain.AnonymousOwnerPrefix + "device-1"}

	_, err := f.svc.LogMeal(ctx, anonymous, domain.LogMealRequest{Type: domain.MealTypeSnack, FoodName: "苹果"})
	require.NoError(t, err)
	busy, err := f.svc.LogMeal(ctx, anonymous, domain.LogMealRequest{Type: domain.MealTypeLunch, Description: "牛肉面"})
	require.NoError(t, err)

	added, err := f.svc.Adopt(ctx, anonymous, mealOwner)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	mine, err := f.svc.ListMeals(ctx, mealOwner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "苹果", mine[0].FoodName)

	left, err := f.svc.ListMeals(ctx, anonymous)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, busy.ID, left[0].ID)

	provider.open()
	f.svc.Wait()
	added, err = f.svc.Adopt(ctx, anonymous, mealOwner)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Empty(t, f.local.stored(anonymous.Key))
	assert.Len(t, f.local.stored(mealOwner.Key), 2)
}

func TestMealService_EvictIdleKeepsRunningAnalyses(t *testing.T) {
	provider := newGatedProvider(scenarioReply)
	f := newMealFixture(t, provider, false)
	ctx := context.Background()
	now := eatenAt
	f.svc.now = func() time.Time { return now }
	busyOwner := domain.Owner{Key: domain.AnonymousOwnerPrefix + "device-2"}

	_, err := f.svc.LogMeal(ctx, mealOwner, domain.LogMealRequest{Type: domain.MealTypeSnack, FoodName: "酸奶"})
	require.NoError(t, err)
	_, err = f.svc.LogMeal(ctx, busyOwner, domain.LogMealRequest{Type: domain.MealTypeLunch, Description: "盖浇饭"})
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, f.svc.EvictIdle(time.Hour))
	f.svc.mu.Lock()
	_, kept := f.svc.journals[busyOwner.Key]
	_, dropped := f.svc.journals[mealOwner.Key]
	f.svc.mu.Unlock()
	assert.True(t, kept)
	assert.False(t, dropped)

	meals, err := f.svc.ListMeals(ctx, mealOwner)
	require.NoError(t, err)
	require.Len(t, meals, 1)
	assert.Equal(t, "酸奶", meals[0].FoodName)

	provider.open()
	f.svc.Wait()
}
