package model

import "time"

// VerificationRecord is the live one-time code for an email address.
// There is at most one per email; issuing a new code replaces it.
type VerificationRecord struct {
	Email    string    `json:"email" db:"email" bson:"_id"`
	Code     string    `json:"code" db:"code" bson:"code"`
	IssuedAt time.Time `json:"issued_at" db:"issued_at" bson:"issued_at"`
	Attempts int       `json:"attempts" db:"attempts" bson:"attempts"`

	// ExpiresAt lets backends with native TTL support drop stale
	// records. It lies well past the code's TTL; verification itself
	// always checks IssuedAt.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at" bson:"expires_at"`
}
