package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apptboard/internal/appointment"
)

func record(id int64) appointment.RawRecord {
	return appointment.RawRecord(fmt.Sprintf(`{
		"id": %d,
		"start_time": "2024-01-01T10:00:00Z",
		"end_time": "2024-01-01T10:30:00Z",
		"customer": {"id": 1, "account": {"id": 1, "first_name": "A", "last_name": "B"}},
		"service": {"name": "Wash", "duration": 30},
		"vehicle": {"type": "Sedan", "model": "Civic"},
		"bay": {"bay": "A1"},
		"status": {"status": "Pending"},
		"staffs": []
	}`, id))
}

type result struct {
	raws []appointment.RawRecord
	err  error
}

// scriptedFetcher returns queued results in call order. A call whose
// gate is non-nil blocks until the gate is closed.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []result
	gates   []chan struct{}
	entered chan int
	calls   int
}

func (s *scriptedFetcher) FetchList(ctx context.Context, res appointment.Resource) ([]appointment.RawRecord, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	r := s.results[i]
	var gate chan struct{}
	if i < len(s.gates) {
		gate = s.gates[i]
	}
	s.mu.Unlock()

	if s.entered != nil {
		s.entered <- i
	}
	if gate != nil {
		<-gate
	}
	return r.raws, r.err
}

func newFeed(f Fetcher) *Feed {
	return New(f, appointment.NewValidator(time.UTC))
}

func TestRefresh_AppliesValidatedList(t *testing.T) {
	f := newFeed(&scriptedFetcher{results: []result{
		{raws: []appointment.RawRecord{record(1), appointment.RawRecord(`{"id":2}`), record(3)}},
	}})

	snap, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Seq)
	require.Len(t, snap.Appointments, 2)
	assert.Equal(t, int64(1), snap.Appointments[0].ID)
	assert.Equal(t, int64(3), snap.Appointments[1].ID)
	assert.Len(t, snap.RecordErrors, 1)
	assert.False(t, snap.Stale)
	assert.False(t, snap.FetchedAt.IsZero())
	assert.Equal(t, snap, f.Snapshot())
}

func TestRefresh_KeepsLastGoodListOnFailure(t *testing.T) {
	boom := &appointment.NetworkError{Op: "GET", URL: "http://x", Err: errors.New("connection refused")}
	f := newFeed(&scriptedFetcher{results: []result{
		{raws: []appointment.RawRecord{record(1), record(2)}},
		{err: boom},
		{raws: []appointment.RawRecord{record(5)}},
	}})

	_, err := f.Refresh(context.Background())
	require.NoError(t, err)

	snap, err := f.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, snap.Stale)
	assert.Equal(t, boom, snap.LastError)
	assert.Len(t, snap.Appointments, 2, "previous list is kept")

	snap, err = f.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Stale)
	assert.Nil(t, snap.LastError)
	require.Len(t, snap.Appointments, 1)
	assert.Equal(t, int64(5), snap.Appointments[0].ID)
}

func TestRefresh_FailureBeforeAnySuccess(t *testing.T) {
	f := newFeed(&scriptedFetcher{results: []result{{err: errors.New("down")}}})

	snap, err := f.Refresh(context.Background())
	assert.Error(t, err)
	assert.True(t, snap.Stale)
	assert.NotNil(t, snap.Appointments)
	assert.Empty(t, snap.Appointments)
}

func TestRefresh_DiscardsStaleResponse(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &scriptedFetcher{
		results: []result{
			{raws: []appointment.RawRecord{record(1)}},
			{raws: []appointment.RawRecord{record(2)}},
		},
		gates:   []chan struct{}{gate, nil},
		entered: make(chan int, 2),
	}
	f := newFeed(fetcher)

	type outcome struct {
		snap Snapshot
		err  error
	}
	slow := make(chan outcome, 1)
	go func() {
		snap, err := f.Refresh(context.Background())
		slow <- outcome{snap, err}
	}()
	require.Equal(t, 0, <-fetcher.entered)

	// Issued second, completes first.
	snap, err := f.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, <-fetcher.entered)
	assert.Equal(t, uint64(2), snap.Seq)

	close(gate)
	got := <-slow
	assert.ErrorIs(t, got.err, ErrStale)

	current := f.Snapshot()
	require.Len(t, current.Appointments, 1)
	assert.Equal(t, int64(2), current.Appointments[0].ID)
}

func TestSubscribe(t *testing.T) {
	f := newFeed(&scriptedFetcher{results: []result{
		{raws: []appointment.RawRecord{record(1)}},
		{err: errors.New("down")},
		{raws: nil},
	}})

	var got []int
	unsubscribe := f.Subscribe(func(s Snapshot) { got = append(got, len(s.Appointments)) })

	_, _ = f.Refresh(context.Background())
	_, _ = f.Refresh(context.Background())
	unsubscribe()
	_, _ = f.Refresh(context.Background())

	assert.Equal(t, []int{1, 1}, got)
}

func TestStartScheduler_InvalidSpec(t *testing.T) {
	f := newFeed(&scriptedFetcher{})
	_, err := StartScheduler(context.Background(), "not a schedule", f)
	assert.Error(t, err)
}

func TestStartScheduler_StopsWithContext(t *testing.T) {
	f := newFeed(&scriptedFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	c, err := StartScheduler(ctx, "@every 1h", f)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	cancel()
}
