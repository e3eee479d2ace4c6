package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/remote"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Source lists the bookings held by the hosted backend.
type Source interface {
	ListReservations(ctx context.Context, opts remote.ListOptions) ([]remote.ReservationDTO, error)
	ListEventBookings(ctx context.Context, opts remote.ListOptions) ([]remote.EventBookingDTO, error)
}

// Snapshot is the merged booking list as of one Load.
type Snapshot struct {
	Records  []domain.BookingRecord
	Degraded bool // backend paused or unreachable, only demo records shown
	LoadedAt time.Time
}

// clone copies the records so callers never share detail pointers with the
// cached snapshot.
func (s Snapshot) clone() Snapshot {
	if s.Records == nil {
		return s
	}
	records := make([]domain.BookingRecord, len(s.Records))
	for i, r := range s.Records {
		records[i] = r.Clone()
	}
	s.Records = records
	return s
}

// Board holds the admin booking list. It only refreshes on Load.
type Board struct {
	source Source
	demo   repository.DemoRepository
	limit  int

	mu       sync.RWMutex
	snapshot Snapshot
	loaded   bool
}

func NewBoard(source Source, demo repository.DemoRepository, limit int) *Board {
	return &Board{source: source, demo: demo, limit: limit}
}

// Load fetches reservations and event bookings concurrently and merges the
// demo store. A paused or unreachable backend degrades to demo records only;
// any other backend error is returned and the previous snapshot is kept.
func (b *Board) Load(ctx context.Context) (Snapshot, error) {
	var reservations []remote.ReservationDTO
	var eventBookings []remote.EventBookingDTO
	opts := remote.ListOptions{Limit: b.limit, Order: "created_at.desc"}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reservations, err = b.source.ListReservations(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		eventBookings, err = b.source.ListEventBookings(gctx, opts)
		return err
	})

	records := b.demo.ReadAll(ctx)
	degraded := false

	if err := g.Wait(); err != nil {
		if !errors.Is(err, remote.ErrBackendPaused) && !errors.Is(err, remote.ErrBackendUnreachable) {
			return Snapshot{}, fmt.Errorf("failed to load bookings: %w", err)
		}
		logger.WarnContext(ctx, "Backend unavailable, showing demo bookings only", "error", err)
		degraded = true
	} else {
		for _, d := range reservations {
			records = append(records, d.ToRecord())
		}
		for _, d := range eventBookings {
			records = append(records, d.ToRecord())
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	snap := Snapshot{Records: records, Degraded: degraded, LoadedAt: time.Now()}

	b.mu.Lock()
	b.snapshot = snap
	b.loaded = true
	b.mu.Unlock()

	return snap.clone(), nil
}

// Snapshot returns the last loaded list and whether Load has run since the
// last Reset.
func (b *Board) Snapshot() (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot.clone(), b.loaded
}

func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = Snapshot{}
	b.loaded = false
}
