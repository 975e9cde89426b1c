package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"planted-staging/internal/model"
	"planted-staging/pkg/errors"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	uploads map[string]*model.StagedUpload
	events  []model.StagingEvent
}

// NewMemoryRepository keeps uploads in process. Values are deep-copied on
// the way in and out.
func NewMemoryRepository() Repository {
	return &memoryRepository{uploads: make(map[string]*model.StagedUpload)}
}

func (r *memoryRepository) Create(ctx context.Context, upload *model.StagedUpload) (*model.StagedUpload, error) {
	u, err := prepareCreate(upload)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.uploads[u.ID]; exists {
		return nil, errors.Conflict("staged upload %s already exists", u.ID)
	}
	r.uploads[u.ID] = u
	return u.Clone(), nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (*model.StagedUpload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.uploads[id]
	if !ok {
		return nil, errors.NotFound("staged upload", id)
	}
	return u.Clone(), nil
}

func (r *memoryRepository) List(ctx context.Context, filter model.ListFilter) ([]*model.StagedUpload, int, error) {
	filter = normalizeFilter(filter)

	r.mu.RLock()
	matched := make([]*model.StagedUpload, 0, len(r.uploads))
	for _, u := range r.uploads {
		if filter.Status == "" || u.Status == filter.Status {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UploadedAt.Equal(matched[j].UploadedAt) {
			return matched[i].UploadedAt.After(matched[j].UploadedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	page := model.NewPagination(len(matched), filter.Page, filter.Limit)
	start, end := page.Bounds()
	out := make([]*model.StagedUpload, 0, end-start)
	for _, u := range matched[start:end] {
		out = append(out, u.Clone())
	}
	r.mu.RUnlock()

	return out, len(matched), nil
}

func (r *memoryRepository) Update(ctx context.Context, id string, mutate Mutator) (*model.StagedUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.uploads[id]
	if !ok {
		return nil, errors.NotFound("staged upload", id)
	}

	u := current.Clone()
	changed, err := mutate(u)
	if err != nil {
		return nil, err
	}
	if !changed {
		return u, nil
	}
	u.Recompute()
	r.uploads[id] = u
	return u.Clone(), nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string, guard Guard) (*model.StagedUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.uploads[id]
	if !ok {
		return nil, errors.NotFound("staged upload", id)
	}
	if guard != nil {
		if err := guard(u.Clone()); err != nil {
			return nil, err
		}
	}
	delete(r.uploads, id)
	return u, nil
}

func (r *memoryRepository) InsertEvent(ctx context.Context, event model.StagingEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *memoryRepository) ListEvents(ctx context.Context, uploadID string) ([]model.StagingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := []model.StagingEvent{}
	for _, e := range r.events {
		if e.UploadID == uploadID {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}
