// Package verification issues and checks one-time email codes.
//
// A code lives for TTL after issue and tolerates MaxAttempts wrong
// guesses. Expiry is evaluated lazily on Verify and takes precedence over
// the attempt count. Every terminal outcome (verified, expired, locked)
// deletes the record, so the next Verify for that email reports not found.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/moby/locker"
	"github.com/rs/zerolog"

	"github.com/nhle/garden-reminders/internal/model"
	"github.com/nhle/garden-reminders/internal/store"
	"github.com/nhle/garden-reminders/internal/transport"
)

const (
	DefaultTTL          = 10 * time.Minute
	DefaultMaxAttempts  = 3
	DefaultStoreTimeout = 5 * time.Second

	// DefaultDeliveryTimeout bounds one background send of a code.
	DefaultDeliveryTimeout = 30 * time.Second

	// ExpiryGrace keeps records in TTL-indexed stores past their logical
	// expiry, so Verify still finds them and reports expired.
	ExpiryGrace = 24 * time.Hour

	codeMin   = 100000
	codeRange = 900000
)

// Options configures a Manager. Zero values take the defaults.
type Options struct {
	TTL             time.Duration
	MaxAttempts     int
	StoreTimeout    time.Duration
	DeliveryTimeout time.Duration

	// ExposeCode makes Issue return the generated code. Diagnostics only.
	ExposeCode bool

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// Manager issues and verifies codes. It is safe for concurrent use;
// Issue and Verify for the same email are serialized.
type Manager struct {
	repo       store.VerificationRepository
	transport  transport.Transport
	opts       Options
	locks      *locker.Locker
	validate   *validator.Validate
	logger     zerolog.Logger
	deliveries sync.WaitGroup
}

// New creates a Manager storing records in repo and delivering codes
// through t.
func New(repo store.VerificationRepository, t transport.Transport, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Manager{
		repo:      repo,
		transport: t,
		opts:      opts,
		locks:     locker.New(),
		validate:  validator.New(),
		logger:    opts.Logger.With().Str("component", "verification").Logger(),
	}
}

// Issue generates a fresh code for email, replacing any live one, and
// sends it by email. The record is stored first; delivery runs in the
// background and its failure is only logged. The code is returned only
// when ExposeCode is set.
//
// Errors are either a wrapped ErrValidation for a malformed address or a
// store failure.
func (m *Manager) Issue(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := m.validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}

	now := m.opts.Clock.Now()
	rec := model.VerificationRecord{
		Email:     email,
		Code:      code,
		IssuedAt:  now,
		Attempts:  0,
		ExpiresAt: now.Add(m.opts.TTL + ExpiryGrace),
	}

	m.locks.Lock(email)
	err = m.withTimeout(ctx, func(ctx context.Context) error {
		return m.repo.PutVerification(ctx, rec)
	})
	m.locks.Unlock(email)
	if err != nil {
		return "", fmt.Errorf("storing code for %s: %w", email, err)
	}

	m.deliver(context.WithoutCancel(ctx), codeMessage(email, code, m.opts.TTL))

	m.logger.Debug().Str("email", email).Msg("verification code issued")

	if m.opts.ExposeCode {
		return code, nil
	}
	return "", nil
}

// Verify checks submitted against the live code for email.
//
// The returned error is non-nil only for store failures; every
// verification outcome, including malformed input, is reported in Result.
func (m *Manager) Verify(ctx context.Context, email, submitted string) (Result, error) {
	email = normalizeEmail(email)
	submitted = strings.TrimSpace(submitted)
	if m.validate.Var(email, "required,email") != nil ||
		m.validate.Var(submitted, "required,numeric,len=6") != nil {
		return invalidInput(), nil
	}

	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	var rec *model.VerificationRecord
	err := m.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		rec, err = m.repo.GetVerification(ctx, email)
		return err
	})
	if store.IsNotFound(err) {
		return notFound(), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("loading code for %s: %w", email, err)
	}

	if m.opts.Clock.Since(rec.IssuedAt) > m.opts.TTL {
		m.discard(ctx, email, "expired")
		return expired(), nil
	}

	if rec.Attempts >= m.opts.MaxAttempts {
		m.discard(ctx, email, "locked")
		return locked(), nil
	}

	if subtle.ConstantTimeCompare([]byte(submitted), []byte(rec.Code)) == 1 {
		err := m.withTimeout(ctx, func(ctx context.Context) error {
			return m.repo.DeleteVerification(ctx, email)
		})
		if err != nil {
			// A code that cannot be consumed must not verify twice.
			return Result{}, fmt.Errorf("consuming code for %s: %w", email, err)
		}
		m.logger.Info().Str("email", email).Msg("email verified")
		return verified(), nil
	}

	var attempts int
	err = m.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		attempts, err = m.repo.IncrementAttempts(ctx, email)
		return err
	})
	if store.IsNotFound(err) {
		return notFound(), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("recording attempt for %s: %w", email, err)
	}

	m.logger.Debug().Str("email", email).Int("attempts", attempts).Msg("verification code mismatch")
	return invalidCode(m.opts.MaxAttempts - attempts), nil
}

// deliver sends msg on its own goroutine, bounded by DeliveryTimeout.
func (m *Manager) deliver(ctx context.Context, msg transport.Message) {
	m.deliveries.Add(1)
	go func() {
		defer m.deliveries.Done()

		ctx, cancel := context.WithTimeout(ctx, m.opts.DeliveryTimeout)
		defer cancel()

		if err := m.transport.Send(ctx, msg); err != nil {
			m.logger.Warn().Err(err).Str("email", msg.To).Msg("verification code delivery failed")
		}
	}()
}

// Wait blocks until every pending code delivery has finished.
func (m *Manager) Wait() {
	m.deliveries.Wait()
}

// discard deletes a record that reached a terminal state. A failed delete
// is logged only: the record will be found terminal again next time.
func (m *Manager) discard(ctx context.Context, email, reason string) {
	err := m.withTimeout(ctx, func(ctx context.Context) error {
		return m.repo.DeleteVerification(ctx, email)
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("email", email).Str("reason", reason).
			Msg("deleting verification code failed")
		return
	}
	m.logger.Debug().Str("email", email).Str("reason", reason).Msg("verification code discarded")
}

func (m *Manager) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateCode draws a code uniformly from 100000-999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func codeMessage(email, code string, ttl time.Duration) transport.Message {
	minutes := int(ttl.Minutes())
	return transport.Message{
		Channel: model.ChannelEmail,
		To:      email,
		Subject: "Your verification code",
		Body: fmt.Sprintf(
			"Your verification code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this email.",
			code, minutes,
		),
		HTMLBody: fmt.Sprintf(
			"<p>Your verification code is <b>%s</b>.</p><p>It expires in %d minutes. If you did not request it, ignore this email.</p>",
			code, minutes,
		),
	}
}
