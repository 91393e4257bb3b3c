package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
	"github.com/nhle/garden-reminders/internal/transport"
	"github.com/nhle/garden-reminders/tests/testutil"
)

type recorder struct {
	mu    sync.Mutex
	msgs  []transport.Message
	fails int
}

func (r *recorder) Send(_ context.Context, msg transport.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("mail server unavailable")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, string(m.Channel)+":"+m.To)
	}
	sort.Strings(out)
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedFeed(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	prefs := []model.UserPreferences{
		{ID: "ana", Email: "ana@example.com", EmailNotifications: true, WebPushNotifications: true},
		{ID: "ben", Email: "ben@example.com", EmailNotifications: false, WebPushNotifications: true},
		{ID: "cal", Email: "", EmailNotifications: true},
	}
	for _, p := range prefs {
		require.NoError(t, s.UpsertUserPreferences(ctx, p))
	}

	tasks := []model.Task{
		{ID: "water", UserID: "ana", Title: "Water beds", DueDate: date(2025, 1, 10),
			EnableNotification: true, NotificationType: model.ChannelEmail},
		{ID: "harvest", UserID: "ana", Title: "Harvest kale", DueDate: date(2025, 1, 10),
			EnableNotification: true, NotificationType: model.ChannelBoth},
		{ID: "prune", UserID: "ben", Title: "Prune roses", DueDate: date(2025, 1, 10),
			EnableNotification: true, NotificationType: model.ChannelBoth},
		{ID: "done", UserID: "ana", Title: "Done already", DueDate: date(2025, 1, 10),
			EnableNotification: true, Completed: true},
		{ID: "quiet", UserID: "ana", Title: "No reminders", DueDate: date(2025, 1, 10)},
		{ID: "later", UserID: "ana", Title: "Later", DueDate: date(2025, 1, 11), EnableNotification: true},
		{ID: "today", UserID: "ana", Title: "Today", DueDate: date(2025, 1, 9), EnableNotification: true},
		{ID: "stranger", UserID: "dan", Title: "No prefs", DueDate: date(2025, 1, 10), EnableNotification: true},
		{ID: "noaddr", UserID: "cal", Title: "No address", DueDate: date(2025, 1, 10), EnableNotification: true},
	}
	for _, task := range tasks {
		require.NoError(t, s.UpsertTask(ctx, task))
	}
}

func TestScanSendsRemindersForTasksDueTomorrow(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedFeed(t, s)
	rec := &recorder{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC))
	d := New(s, rec, Options{Clock: clock, Logger: zerolog.Nop()})

	report, err := d.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"email:ana@example.com",
		"email:ana@example.com",
		"web:ana",
		"web:ben",
	}, rec.sent())
	assert.Equal(t, Report{Due: 5, Sent: 4, Skipped: 1}, report)
	assert.Equal(t, 4, d.Delivered())
}

func TestScanDoesNotRepeatDeliveries(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedFeed(t, s)
	rec := &recorder{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC))
	d := New(s, rec, Options{Clock: clock, Logger: zerolog.Nop()})
	ctx := context.Background()

	_, err := d.Scan(ctx)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	report, err := d.Scan(ctx)
	require.NoError(t, err)

	assert.Len(t, rec.sent(), 4)
	assert.Zero(t, report.Sent)
	assert.Equal(t, 5, report.Skipped)

	// Two days on the remembered deliveries are in the past and pruned.
	clock.Advance(48 * time.Hour)
	_, err = d.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, d.Delivered())
}

func TestScanHonoursLeadDays(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedFeed(t, s)
	rec := &recorder{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC))
	d := New(s, rec, Options{LeadDays: 2, Clock: clock, Logger: zerolog.Nop()})

	report, err := d.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"email:ana@example.com"}, rec.sent())
	assert.Equal(t, 1, report.Sent)
}

func TestScanRetriesWithBackoff(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	clock := clockwork.NewRealClock()
	due := clock.Now().UTC().AddDate(0, 0, 1)

	require.NoError(t, s.UpsertUserPreferences(ctx, model.UserPreferences{
		ID: "ana", Email: "ana@example.com", EmailNotifications: true,
	}))
	require.NoError(t, s.UpsertTask(ctx, model.Task{
		ID: "water", UserID: "ana", Title: "Water", DueDate: due, EnableNotification: true,
	}))

	rec := &recorder{fails: 2}
	d := New(s, rec, Options{
		MaxAttempts: 3, RetryMin: time.Millisecond, RetryMax: 2 * time.Millisecond,
		Clock: clock, Logger: zerolog.Nop(),
	})

	report, err := d.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, []string{"email:ana@example.com"}, rec.sent())
}

func TestScanGivesUpAfterMaxAttempts(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	clock := clockwork.NewRealClock()
	due := clock.Now().UTC().AddDate(0, 0, 1)

	require.NoError(t, s.UpsertUserPreferences(ctx, model.UserPreferences{
		ID: "ana", Email: "ana@example.com", EmailNotifications: true,
	}))
	require.NoError(t, s.UpsertTask(ctx, model.Task{
		ID: "water", UserID: "ana", Title: "Water", DueDate: due, EnableNotification: true,
	}))

	rec := &recorder{fails: 2}
	d := New(s, rec, Options{
		MaxAttempts: 2, RetryMin: time.Millisecond, RetryMax: 2 * time.Millisecond,
		Clock: clock, Logger: zerolog.Nop(),
	})

	report, err := d.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, d.Delivered())

	// Not marked delivered, so the next scan tries again.
	report, err = d.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

type countingFeed struct {
	TaskFeed
	calls chan struct{}
}

func (f *countingFeed) ListOpenTasks(ctx context.Context) ([]model.Task, error) {
	f.calls <- struct{}{}
	return f.TaskFeed.ListOpenTasks(ctx)
}

func TestTickSkipsWhileScanInFlight(t *testing.T) {
	feed := &countingFeed{TaskFeed: testutil.NewTestStore(t), calls: make(chan struct{}, 4)}
	d := New(feed, &recorder{}, Options{Clock: clockwork.NewFakeClock(), Logger: zerolog.Nop()})

	d.inFlight.Store(true)
	d.tick(context.Background())
	d.scans.Wait()
	assert.Empty(t, feed.calls)

	d.inFlight.Store(false)
	d.tick(context.Background())
	d.scans.Wait()
	assert.Len(t, feed.calls, 1)
	assert.False(t, d.inFlight.Load())
}

func TestRunScansOnEveryTickUntilStopped(t *testing.T) {
	feed := &countingFeed{TaskFeed: testutil.NewTestStore(t), calls: make(chan struct{}, 4)}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC))
	d := New(feed, &recorder{}, Options{Interval: time.Minute, Clock: clock, Logger: zerolog.Nop()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-feed.calls:
	case <-ctx.Done():
		t.Fatal("initial scan did not run")
	}

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.ErrorIs(t, d.Run(ctx), ErrRunning)

	// Wait for the initial scan to release before the next tick.
	require.Eventually(t, func() bool { return !d.inFlight.Load() }, time.Second, time.Millisecond)
	clock.Advance(time.Minute)

	select {
	case <-feed.calls:
	case <-ctx.Done():
		t.Fatal("tick did not trigger a scan")
	}

	d.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Run did not return after Stop")
	}

	// Stop on an idle dispatcher is a no-op.
	d.Stop()
}

func TestRunReturnsWhenContextCancelled(t *testing.T) {
	d := New(testutil.NewTestStore(t), &recorder{}, Options{Clock: clockwork.NewFakeClock(), Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
