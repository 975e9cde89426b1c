package content

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Record is one item created in a MemoryStore.
type Record struct {
	ID      string
	Kind    string
	Payload interface{}
}

// MemoryStore validates inputs the way the content service does and keeps
// created content in memory. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) CreateDevotional(ctx context.Context, in DevotionalInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	return m.add("devotional", in), nil
}

func (m *MemoryStore) CreateMemoryVerse(ctx context.Context, in MemoryVerseInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	return m.add("memoryVerse", in), nil
}

func (m *MemoryStore) CreateKeyLesson(ctx context.Context, in KeyLessonInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	return m.add("keyLesson", in), nil
}

func (m *MemoryStore) CreateQuiz(ctx context.Context, in QuizInput, linkedDevotionalID string) (string, error) {
	in.DevotionalID = linkedDevotionalID
	if err := in.Validate(); err != nil {
		return "", err
	}
	return m.add("quiz", in), nil
}

func (m *MemoryStore) add(kind string, payload interface{}) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.records = append(m.records, Record{ID: id, Kind: kind, Payload: payload})
	m.mu.Unlock()
	return id
}

// Records returns a snapshot of everything created so far.
func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}
