package verification

import (
	"context"
	"sync"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
)

// MemoryRepository is an in-process store.VerificationRepository.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]model.VerificationRecord
}

var _ store.VerificationRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]model.VerificationRecord)}
}

func (r *MemoryRepository) PutVerification(_ context.Context, rec model.VerificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Email] = rec
	return nil
}

func (r *MemoryRepository) GetVerification(_ context.Context, email string) (*model.VerificationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[email]
	if !ok {
		return nil, store.NotFound("getting verification code")
	}
	return &rec, nil
}

func (r *MemoryRepository) IncrementAttempts(_ context.Context, email string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[email]
	if !ok {
		return 0, store.NotFound("incrementing verification attempts")
	}
	rec.Attempts++
	r.records[email] = rec
	return rec.Attempts, nil
}

func (r *MemoryRepository) DeleteVerification(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, email)
	return nil
}

// Len returns the number of live records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
