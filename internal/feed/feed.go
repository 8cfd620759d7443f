// Package feed owns the displayed appointment list: it sequences
// refreshes, keeps the last good list when a fetch fails, and tells
// subscribers when a new snapshot is applied.
package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"apptboard/internal/appointment"
	appLog "apptboard/internal/log"
	"apptboard/internal/model"
)

// ErrStale is returned by Refresh when a request issued later has already
// been applied; the response is discarded.
var ErrStale = errors.New("feed: response superseded by a newer request")

// Fetcher is the part of appointment.Client the feed needs.
type Fetcher interface {
	FetchList(ctx context.Context, res appointment.Resource) ([]appointment.RawRecord, error)
}

// Snapshot is an immutable view of the feed at one point in time.
type Snapshot struct {
	// Seq is the request sequence number of the applied data (0: none yet).
	Seq uint64

	Appointments []model.Appointment

	// RecordErrors are per-record validation failures of the applied batch.
	RecordErrors []error

	// LastError is the most recent fetch failure newer than the applied
	// data, nil once a later fetch succeeds.
	LastError error

	// Stale is true when LastError is set and Appointments are from an
	// earlier successful fetch (or empty if there never was one).
	Stale bool

	FetchedAt   time.Time
	AttemptedAt time.Time
}

// Feed is safe for concurrent use. Overlapping refreshes are allowed; the
// most recently issued request that completes wins and older responses
// arriving afterwards are dropped.
type Feed struct {
	fetcher   Fetcher
	validator *appointment.Validator
	resource  appointment.Resource
	now       func() time.Time

	issued atomic.Uint64

	mu      sync.RWMutex
	applied uint64
	lastErr uint64
	snap    Snapshot
	nextSub int
	subs    map[int]func(Snapshot)
}

// New returns a Feed over the appointment list endpoint.
func New(fetcher Fetcher, validator *appointment.Validator) *Feed {
	return &Feed{
		fetcher:   fetcher,
		validator: validator,
		resource:  appointment.ResourceAppointments,
		now:       time.Now,
		snap:      Snapshot{Appointments: []model.Appointment{}},
		subs:      make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current snapshot.
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

// Refresh fetches and validates the list once.
//
// On a fetch error the previous appointments stay in place and the error
// is both recorded in the snapshot and returned. Validation errors never
// fail a refresh; they are reported in Snapshot.RecordErrors.
func (f *Feed) Refresh(ctx context.Context) (Snapshot, error) {
	seq := f.issued.Add(1)
	started := f.now()

	raws, fetchErr := f.fetcher.FetchList(ctx, f.resource)

	var (
		appts  []model.Appointment
		recErr []error
	)
	if fetchErr == nil {
		appts, recErr = f.validator.ValidateBatch(raws)
	}

	f.mu.Lock()
	if seq < f.applied || (fetchErr != nil && seq < f.lastErr) {
		snap := f.snap
		f.mu.Unlock()
		appLog.Debug("feed refresh discarded", "seq", seq, "applied", snap.Seq)
		return snap, ErrStale
	}

	next := f.snap
	next.AttemptedAt = started
	if fetchErr != nil {
		f.lastErr = seq
		next.LastError = fetchErr
		next.Stale = true
	} else {
		f.applied = seq
		next.Seq = seq
		next.Appointments = appts
		next.RecordErrors = recErr
		next.LastError = nil
		next.Stale = false
		next.FetchedAt = f.now()
	}
	f.snap = next
	subs := make([]func(Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	if fetchErr != nil {
		appLog.Error("feed refresh failed; keeping previous list", fetchErr, "seq", seq, "kept", len(next.Appointments))
	} else {
		appLog.Info("feed refresh applied", "seq", seq, "appointments", len(appts), "rejected", len(recErr))
	}

	for _, fn := range subs {
		fn(next)
	}
	return next, fetchErr
}

// Subscribe registers fn to run after every applied refresh (success or
// recorded failure). The returned function removes the subscription.
func (f *Feed) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}
