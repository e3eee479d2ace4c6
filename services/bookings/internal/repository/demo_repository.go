package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
)

// DemoRepository keeps the bookings accepted while the backend was away. The
// whole collection lives under one key as a JSON array, newest first.
//
// Storage failures never surface: they are logged and the call has no effect.
type DemoRepository interface {
	Append(ctx context.Context, record domain.BookingRecord)
	MarkPaid(ctx context.Context, id string) bool
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) bool
	Get(ctx context.Context, id string) (domain.BookingRecord, bool)
	ReadAll(ctx context.Context) []domain.BookingRecord
	Reset(ctx context.Context)
}

type demoRepository struct {
	mu  sync.Mutex
	kv  KeyValue
	key string
	now func() time.Time
}

func NewDemoRepository(kv KeyValue, key string) DemoRepository {
	return &demoRepository{kv: kv, key: key, now: time.Now}
}

func (r *demoRepository) Append(ctx context.Context, record domain.BookingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return
	}
	records = append([]domain.BookingRecord{record}, records...)
	r.save(ctx, records)
}

func (r *demoRepository) MarkPaid(ctx context.Context, id string) bool {
	return r.mutate(ctx, id, func(b *domain.BookingRecord, now time.Time) {
		b.MarkPaid(now)
	})
}

func (r *demoRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) bool {
	return r.mutate(ctx, id, func(b *domain.BookingRecord, now time.Time) {
		b.SetStatus(status, now)
	})
}

func (r *demoRepository) Get(ctx context.Context, id string) (domain.BookingRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return domain.BookingRecord{}, false
	}
	for _, b := range records {
		if b.ID == id {
			return b, true
		}
	}
	return domain.BookingRecord{}, false
}

func (r *demoRepository) ReadAll(ctx context.Context) []domain.BookingRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return []domain.BookingRecord{}
	}
	return records
}

func (r *demoRepository) Reset(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.kv.Delete(ctx, r.key); err != nil {
		logger.ErrorContext(ctx, "Failed to reset demo bookings", "key", r.key, "error", err)
	}
}

func (r *demoRepository) mutate(ctx context.Context, id string, apply func(*domain.BookingRecord, time.Time)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load(ctx)
	if err != nil {
		return false
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		apply(&records[i], r.now())
		return r.save(ctx, records)
	}
	return false
}

// load returns an empty list for a missing or corrupted key. A failed read is
// returned as an error so writers leave the stored list alone; a corrupted
// list is replaced by the next write.
func (r *demoRepository) load(ctx context.Context) ([]domain.BookingRecord, error) {
	raw, err := r.kv.Get(ctx, r.key)
	if errors.Is(err, ErrNotFound) {
		return []domain.BookingRecord{}, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read demo bookings", "key", r.key, "error", err)
		return nil, err
	}
	if raw == "" {
		return []domain.BookingRecord{}, nil
	}

	var records []domain.BookingRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		logger.WarnContext(ctx, "Discarding corrupted demo bookings", "key", r.key, "error", err)
		return []domain.BookingRecord{}, nil
	}
	if records == nil {
		records = []domain.BookingRecord{}
	}
	return records, nil
}

func (r *demoRepository) save(ctx context.Context, records []domain.BookingRecord) bool {
	raw, err := json.Marshal(records)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode demo bookings", "error", err)
		return false
	}
	if err := r.kv.Set(ctx, r.key, string(raw)); err != nil {
		logger.ErrorContext(ctx, "Failed to write demo bookings", "key", r.key, "error", err)
		return false
	}
	return true
}
