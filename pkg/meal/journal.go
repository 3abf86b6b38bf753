package meal

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/entities"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

const interruptedAnalysis = "分析被中断，请重新分析"

// Journal holds one owner's meal records and their in-flight analyses.
// It enforces that a resolved record carries exactly one of AIAnalysis and
// AnalysisError, and that a record is analyzed at most once at a time.
type Journal struct {
	mu       sync.Mutex
	owner    string
	records  map[uuid.UUID]*entities.MealRecord
	inflight map[uuid.UUID]context.CancelFunc
	closed   bool

	// saveMu orders snapshot writes so an older snapshot never overwrites a newer one.
	saveMu sync.Mutex
}

// NewJournal rebuilds a journal from persisted records. A record still marked
// analyzing had its analysis interrupted and is resolved as an error.
func NewJournal(owner string, records []entities.MealRecord) *Journal {
	j := &Journal{
		owner:    owner,
		records:  make(map[uuid.UUID]*entities.MealRecord, len(records)),
		inflight: make(map[uuid.UUID]context.CancelFunc),
	}
	for i := range records {
		rec := cloneRecord(&records[i])
		if rec.Status == domain.MealStatusAnalyzing {
			msg := interruptedAnalysis
			rec.Status = domain.MealStatusError
			rec.AIAnalysis = nil
			rec.AnalysisError = &msg
		}
		j.records[rec.ID] = rec
	}
	return j
}

func (j *Journal) Owner() string {
	return j.owner
}

func (j *Journal) Add(rec entities.MealRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records[rec.ID] = cloneRecord(&rec)
}

func (j *Journal) Get(id uuid.UUID) (entities.MealRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	if !ok {
		return entities.MealRecord{}, domain.ErrMealNotFound
	}
	return *cloneRecord(rec), nil
}

// List returns every record, most recently eaten first.
func (j *Journal) List() []entities.MealRecord {
	j.mu.Lock()
	out := make([]entities.MealRecord, 0, len(j.records))
	for _, rec := range j.records {
		out = append(out, *cloneRecord(rec))
	}
	j.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].EatenAt.Equal(out[b].EatenAt) {
			return out[a].ID.String() < out[b].ID.String()
		}
		return out[a].EatenAt.After(out[b].EatenAt)
	})
	return out
}

// Remove deletes a record and cancels its in-flight analysis, if any.
func (j *Journal) Remove(id uuid.UUID) (entities.MealRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	if !ok {
		return entities.MealRecord{}, domain.ErrMealNotFound
	}
	if cancel, ok := j.inflight[id]; ok {
		cancel()
		delete(j.inflight, id)
	}
	delete(j.records, id)
	return *rec, nil
}

// TakeSettled removes and returns every record that has no analysis running.
func (j *Journal) TakeSettled() []entities.MealRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []entities.MealRecord
	for id, rec := range j.records {
		if _, busy := j.inflight[id]; busy || rec.Status == domain.MealStatusAnalyzing {
			continue
		}
		out = append(out, *cloneRecord(rec))
		delete(j.records, id)
	}
	return out
}

// Absorb adds records moved over from another owner, skipping ids already
// held, and returns how many were added.
func (j *Journal) Absorb(records []entities.MealRecord) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	added := 0
	for i := range records {
		if _, ok := j.records[records[i].ID]; ok {
			continue
		}
		j.records[records[i].ID] = cloneRecord(&records[i])
		added++
	}
	return added
}

// BeginAnalysis marks a record analyzing and registers cancel for it.
func (j *Journal) BeginAnalysis(id uuid.UUID, cancel context.CancelFunc) (entities.MealRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	if !ok {
		return entities.MealRecord{}, domain.ErrMealNotFound
	}
	if _, busy := j.inflight[id]; busy || rec.Status == domain.MealStatusAnalyzing {
		return entities.MealRecord{}, domain.ErrAnalysisInFlight
	}
	rec.Status = domain.MealStatusAnalyzing
	rec.AIAnalysis = nil
	rec.AnalysisError = nil
	j.inflight[id] = cancel
	return *cloneRecord(rec), nil
}

// Resolve stores the outcome of an analysis. Exactly one of result and
// failure is used. It reports false when the record was removed meanwhile,
// in which case the outcome is discarded.
func (j *Journal) Resolve(id uuid.UUID, result *domain.FoodAnalysisResult, failure string) (entities.MealRecord, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.inflight, id)

	rec, ok := j.records[id]
	if !ok || j.closed {
		return entities.MealRecord{}, false
	}

	if result != nil {
		analysis := *result
		rec.Status = domain.MealStatusDone
		rec.AIAnalysis = &analysis
		rec.AnalysisError = nil
		if rec.FoodName == "" {
			rec.FoodName = analysis.FoodName
		}
		if rec.Calories == 0 {
			rec.Calories = analysis.Calories
		}
	} else {
		rec.Status = domain.MealStatusError
		rec.AIAnalysis = nil
		rec.AnalysisError = &failure
	}
	return *cloneRecord(rec), true
}

// Close cancels every in-flight analysis; later results are discarded.
func (j *Journal) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	for id, cancel := range j.inflight {
		cancel()
		delete(j.inflight, id)
	}
}

func (j *Journal) InFlight() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.inflight)
}

// Persist hands a consistent snapshot to save. Calls are serialized.
func (j *Journal) Persist(save func([]entities.MealRecord) error) error {
	j.saveMu.Lock()
	defer j.saveMu.Unlock()

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.mu.Unlock()
	return save(j.List())
}

func cloneRecord(r *entities.MealRecord) *entities.MealRecord {
	out := *r
	if r.AIAnalysis != nil {
		analysis := *r.AIAnalysis
		if r.AIAnalysis.Macros != nil {
			macros := *r.AIAnalysis.Macros
			analysis.Macros = &macros
		}
		if r.AIAnalysis.Tags != nil {
			analysis.Tags = append(make([]string, 0, len(r.AIAnalysis.Tags)), r.AIAnalysis.Tags...)
		}
		out.AIAnalysis = &analysis
	}
	if r.AnalysisError != nil {
		msg := *r.AnalysisError
		out.AnalysisError = &msg
	}
	return &out
}
