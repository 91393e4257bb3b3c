// Package dispatch sends reminders for tasks that are due soon.
//
// A Dispatcher polls the task feed on a fixed interval. Each scan keeps
// open, reminder-enabled tasks due exactly LeadDays from today and sends a
// reminder through the transport on every channel both the task and the
// user allow. Deliveries are remembered per task, due date and channel so
// later scans do not repeat them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/scheduler"
	"github.com/nhle/garden-reminders/internal/store"
	"github.com/nhle/garden-reminders/internal/transport"
)

const (
	DefaultInterval    = time.Hour
	DefaultLeadDays    = 1
	DefaultMaxAttempts = 3
	DefaultRetryMin    = time.Second
	DefaultRetryMax    = 30 * time.Second

	// DefaultScanTimeout is the maximum time allowed for a single scan.
	DefaultScanTimeout = 5 * time.Minute
)

// ErrRunning is returned by Run when the dispatcher is already running.
var ErrRunning = errors.New("dispatcher already running")

// TaskFeed supplies the tasks to scan and the preferences of their owners.
type TaskFeed interface {
	ListOpenTasks(ctx context.Context) ([]model.Task, error)
	GetUserPreferences(ctx context.Context, userID string) (*model.UserPreferences, error)
}

// Options configures a Dispatcher. Zero values take the defaults.
type Options struct {
	Interval    time.Duration
	LeadDays    int
	MaxAttempts int
	RetryMin    time.Duration
	RetryMax    time.Duration
	ScanTimeout time.Duration

	// Location decides what "today" is. Defaults to UTC.
	Location *time.Location

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// Report summarises one scan.
type Report struct {
	Due     int
	Sent    int
	Failed  int
	Skipped int
}

type deliveryKey struct {
	taskID  string
	due     string
	channel model.Channel
}

// Dispatcher orchestrates periodic reminder delivery. Scans never overlap:
// a tick that arrives while a scan is still running is skipped.
type Dispatcher struct {
	feed      TaskFeed
	transport transport.Transport
	opts      Options
	logger    zerolog.Logger

	inFlight atomic.Bool
	scans    sync.WaitGroup

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	delivered map[deliveryKey]time.Time
}

// New creates a Dispatcher reading tasks from feed and sending through t.
func New(feed TaskFeed, t transport.Transport, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.LeadDays <= 0 {
		opts.LeadDays = DefaultLeadDays
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryMin <= 0 {
		opts.RetryMin = DefaultRetryMin
	}
	if opts.RetryMax < opts.RetryMin {
		opts.RetryMax = max(DefaultRetryMax, opts.RetryMin)
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Dispatcher{
		feed:      feed,
		transport: t,
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "dispatcher").Logger(),
		stopCh:    make(chan struct{}),
		delivered: make(map[deliveryKey]time.Time),
	}
}

// Run scans once immediately and then on every interval until ctx is done
// or Stop is called. It waits for an in-flight scan before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrRunning
	}
	d.running = true
	stopCh := d.stopCh
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		d.scans.Wait()
		d.mu.Lock()
		d.running = false
		d.stopCh = make(chan struct{})
		d.mu.Unlock()
	}()

	ticker := d.opts.Clock.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.opts.Interval).Int("lead_days", d.opts.LeadDays).
		Msg("dispatcher started")

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopped")
			return nil
		case <-stopCh:
			d.logger.Info().Msg("dispatcher stopped")
			return nil
		case <-ticker.Chan():
			d.tick(ctx)
		}
	}
}

// Stop halts a running dispatcher. Run returns once the in-flight scan
// finishes.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
}

// tick starts a scan in the background unless one is still running.
func (d *Dispatcher) tick(ctx context.Context) {
	if !d.inFlight.CompareAndSwap(false, true) {
		d.logger.Warn().Msg("previous scan still running, skipping tick")
		return
	}
	d.scans.Add(1)
	go func() {
		defer d.scans.Done()
		defer d.inFlight.Store(false)

		ctx, cancel := context.WithTimeout(ctx, d.opts.ScanTimeout)
		defer cancel()

		report, err := d.Scan(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("reminder scan failed")
			return
		}
		d.logger.Info().Int("due", report.Due).Int("sent", report.Sent).
			Int("failed", report.Failed).Int("skipped", report.Skipped).Msg("reminder scan finished")
	}()
}

// Scan runs one pass over the task feed. It is called by Run on each tick
// and may be called directly.
func (d *Dispatcher) Scan(ctx context.Context) (Report, error) {
	var report Report

	tasks, err := d.feed.ListOpenTasks(ctx)
	if err != nil {
		return report, fmt.Errorf("listing tasks: %w", err)
	}

	today := d.today()
	target := today.AddDate(0, 0, d.opts.LeadDays)
	d.prune(today)

	prefsCache := make(map[string]*model.UserPreferences)
	for _, task := range tasks {
		if task.Completed || !task.EnableNotification {
			continue
		}
		if !sameDay(task.DueDay(d.opts.Location), target) {
			continue
		}
		report.Due++

		prefs, err := d.prefsFor(ctx, prefsCache, task.UserID)
		if err != nil {
			d.logger.Warn().Err(err).Str("task_id", task.ID).Str("user_id", task.UserID).
				Msg("loading user preferences failed")
			report.Failed++
			continue
		}
		if prefs == nil {
			report.Skipped++
			continue
		}

		for _, msg := range d.messagesFor(task, *prefs) {
			key := deliveryKey{taskID: task.ID, due: task.DueDate.Format(model.DateLayout), channel: msg.Channel}
			if d.wasDelivered(key) {
				report.Skipped++
				continue
			}
			if err := d.send(ctx, msg); err != nil {
				d.logger.Error().Err(err).Str("task_id", task.ID).Str("channel", string(msg.Channel)).
					Msg("reminder delivery failed")
				report.Failed++
				continue
			}
			d.markDelivered(key, task.DueDay(d.opts.Location))
			report.Sent++
		}
	}

	return report, nil
}

// send delivers msg, retrying with exponential backoff.
func (d *Dispatcher) send(ctx context.Context, msg transport.Message) error {
	b := &backoff.Backoff{
		Min:    d.opts.RetryMin,
		Max:    d.opts.RetryMax,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err = d.transport.Send(ctx, msg); err == nil {
			return nil
		}
		if attempt == d.opts.MaxAttempts {
			break
		}
		wait := b.Duration()
		d.logger.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("retrying reminder")
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-d.opts.Clock.After(wait):
		}
	}
	return fmt.Errorf("sending reminder to %s after %d attempts: %w", msg.To, d.opts.MaxAttempts, err)
}

func (d *Dispatcher) messagesFor(task model.Task, prefs model.UserPreferences) []transport.Message {
	channel := task.NotificationType
	if channel == "" {
		channel = model.ChannelEmail
	}

	subject := "Reminder: " + task.Title
	body := scheduler.ReminderMessage(task)

	var out []transport.Message
	if channel.Includes(model.ChannelEmail) && prefs.Accepts(model.ChannelEmail) {
		if prefs.Email == "" {
			d.logger.Warn().Str("user_id", task.UserID).Msg("email reminders enabled without an address")
		} else {
			out = append(out, transport.Message{
				Channel: model.ChannelEmail, To: prefs.Email, Subject: subject, Body: body,
			})
		}
	}
	if channel.Includes(model.ChannelWeb) && prefs.Accepts(model.ChannelWeb) {
		out = append(out, transport.Message{
			Channel: model.ChannelWeb, To: task.UserID, Subject: subject, Body: body,
		})
	}
	return out
}

// prefsFor loads and caches a user's preferences for one scan. A user
// without stored preferences gets nil and no reminders.
func (d *Dispatcher) prefsFor(
	ctx context.Context,
	cache map[string]*model.UserPreferences,
	userID string,
) (*model.UserPreferences, error) {
	if p, ok := cache[userID]; ok {
		return p, nil
	}
	p, err := d.feed.GetUserPreferences(ctx, userID)
	if store.IsNotFound(err) {
		cache[userID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cache[userID] = p
	return p, nil
}

func (d *Dispatcher) wasDelivered(k deliveryKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.delivered[k]
	return ok
}

func (d *Dispatcher) markDelivered(k deliveryKey, due time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered[k] = due
}

// prune forgets deliveries for due dates before today.
func (d *Dispatcher) prune(today time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, due := range d.delivered {
		if due.Before(today) {
			delete(d.delivered, k)
		}
	}
}

// Delivered returns how many deliveries are remembered.
func (d *Dispatcher) Delivered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

func (d *Dispatcher) today() time.Time {
	y, m, day := d.opts.Clock.Now().In(d.opts.Location).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.opts.Location)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
