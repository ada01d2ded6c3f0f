package clients

import (
	"context"
	"sync"
	"time"
)

// Repository defines the interface for client record storage.
//
// Create must enforce at-most-one-record-per-baseUrl at the storage layer and
// return ErrAlreadyExists on collision. Update must apply the partial update
// only when the stored secret hash matches verifyHash, atomically where the
// backend supports it, and return ErrInvalidSecret otherwise.
type Repository interface {
	Get(ctx context.Context, baseURL string) (*ClientRecord, error)
	Create(ctx context.Context, rec *ClientRecord) error
	Update(ctx context.Context, baseURL, verifyHash string, fields UpdateFields) (*ClientRecord, error)
}

// InMemoryRepository keeps records in a mutex-guarded map. It backs handler
// tests and deployments that opt out of an external store.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*ClientRecord
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*ClientRecord),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

func (r *InMemoryRepository) Get(ctx context.Context, baseURL string) (*ClientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[baseURL]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *rec
	return &copied, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, rec *ClientRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.BaseURL]; ok {
		return ErrAlreadyExists
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	copied := *rec
	r.records[rec.BaseURL] = &copied
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, baseURL, verifyHash string, fields UpdateFields) (*ClientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[baseURL]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.SecretHash != verifyHash {
		return nil, ErrInvalidSecret
	}

	if fields.UPIID != nil {
		rec.UPIID = *fields.UPIID
	}
	if fields.QRImagePath != nil {
		rec.QRImagePath = *fields.QRImagePath
	}
	if fields.SecretHash != nil {
		rec.SecretHash = *fields.SecretHash
	}
	rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	copied := *rec
	return &copied, nil
}
