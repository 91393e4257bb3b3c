package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nhle/garden-reminders/internal/model"
)

// PutVerification stores rec, replacing any record for the same email.
func (s *SQLiteStore) PutVerification(ctx context.Context, rec model.VerificationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO verification_codes (email, code, issued_at, attempts, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Email, rec.Code, rec.IssuedAt.UTC(), rec.Attempts, rec.ExpiresAt.UTC(),
	)
	if err != nil {
		return classify("storing verification code", err)
	}
	return nil
}

// GetVerification returns the live record for email.
func (s *SQLiteStore) GetVerification(
	ctx context.Context,
	email string,
) (*model.VerificationRecord, error) {
	var rec model.VerificationRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT email, code, issued_at, attempts, expires_at
		FROM verification_codes WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("getting verification code")
	}
	if err != nil {
		return nil, classify("getting verification code", err)
	}
	return &rec, nil
}

// IncrementAttempts bumps the attempt counter in a single statement so
// concurrent failures cannot undercount.
func (s *SQLiteStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	var attempts int
	err := s.db.GetContext(ctx, &attempts, `
		UPDATE verification_codes SET attempts = attempts + 1
		WHERE email = ?
		RETURNING attempts`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, NotFound("incrementing verification attempts")
	}
	if err != nil {
		return 0, classify("incrementing verification attempts", err)
	}
	return attempts, nil
}

// DeleteVerification removes the record for email, if any.
func (s *SQLiteStore) DeleteVerification(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM verification_codes WHERE email = ?", email); err != nil {
		return classify("deleting verification code", err)
	}
	return nil
}
