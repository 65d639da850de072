package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/example/visa-rescheduler/internal/appointment"
	"github.com/example/visa-rescheduler/internal/state"
)

// --- Test doubles ---

type fakeSession struct{ id int }

// fakeClient scripts per-facility dates and times and records every call.
type fakeClient struct {
	mu sync.Mutex

	loginErr   error
	loginErrs  []error // consumed one per Login before loginErr applies
	logins     int
	dates      map[appointment.FacilityID][]appointment.Date
	datesErr   map[appointment.FacilityID]error
	dateCalls  int
	times      map[string]string // key: facility|date
	timesErr   map[string]error
	timeCalls  []appointment.FacilityID
	bookErr    error
	bookCalls  []bookCall
	afterDates func(c *fakeClient) // hook to mutate state mid-run
}

type bookCall struct {
	facility appointment.FacilityID
	date     appointment.Date
	slot     string
}

func timeKey(fid appointment.FacilityID, d appointment.Date) string {
	return fmt.Sprintf("%s|%s", fid, d)
}

func (f *fakeClient) Login(ctx context.Context) (appointment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if len(f.loginErrs) > 0 {
		err := f.loginErrs[0]
		f.loginErrs = f.loginErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &fakeSession{id: f.logins}, nil
}

func (f *fakeClient) AvailableDates(ctx context.Context, _ appointment.Session, _ string, fid appointment.FacilityID) ([]appointment.Date, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dateCalls++
	if err := f.datesErr[fid]; err != nil {
		return nil, err
	}
	dates := f.dates[fid]
	if f.afterDates != nil {
		f.afterDates(f)
	}
	return dates, nil
}

func (f *fakeClient) AvailableTime(ctx context.Context, _ appointment.Session, _ string, fid appointment.FacilityID, d appointment.Date) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeCalls = append(f.timeCalls, fid)
	if err := f.timesErr[timeKey(fid, d)]; err != nil {
		return "", err
	}
	return f.times[timeKey(fid, d)], nil
}

func (f *fakeClient) Book(ctx context.Context, _ appointment.Session, _ string, fid appointment.FacilityID, d appointment.Date, slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return f.bookErr
	}
	f.bookCalls = append(f.bookCalls, bookCall{facility: fid, date: d, slot: slot})
	return nil
}

// fakeStore records persisted results and snapshots.
type fakeStore struct {
	mu          sync.Mutex
	results     []state.Result
	snapshots   []state.Snapshot
	resultErr   error
	snapshotErr error
}

func (f *fakeStore) SaveResult(_ context.Context, r state.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resultErr != nil {
		return f.resultErr
	}
	f.results = append(f.results, r)
	return nil
}

func (f *fakeStore) SaveSnapshot(_ context.Context, s state.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return f.snapshotErr
	}
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakeStore) LoadSnapshot(_ context.Context) (state.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return state.Snapshot{}, false, nil
	}
	return f.snapshots[len(f.snapshots)-1], true, nil
}

type sleepRecord struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecord) fn(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
}

func newTestBot(client *fakeClient, store *fakeStore, facilities ...string) (*Bot, *sleepRecord) {
	fids := make([]appointment.FacilityID, len(facilities))
	for i, f := range facilities {
		fids[i] = appointment.FacilityID(f)
	}
	sr := &sleepRecord{}
	b := &Bot{
		Client:       client,
		Store:        store,
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		ScheduleID:   "555",
		Facilities:   fids,
		RefreshDelay: 3 * time.Second,
		Cooldown:     time.Hour,
		KeepPolling:  true,
		sleepFn:      sr.fn,
	}
	return b, sr
}
