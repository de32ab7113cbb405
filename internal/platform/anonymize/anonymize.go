// Package anonymize implements the response-side anonymization policies:
// deterministic case-keyed date shifting, personal-date truncation, age
// binning and string redaction. Nothing in this package ever mutates the
// persisted record; callers apply it to outgoing payloads only.
package anonymize

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/pkg/clinical"
)

// RedactedToken replaces free-text strings in anonymized responses.
const RedactedToken = "[REDACTED]"

// PlaceholderEmail replaces the address of non-shareable contributors.
const PlaceholderEmail = "anonymous@example.org"

// ErrInvalidAge is returned when an age falls outside the plausible range.
var ErrInvalidAge = fmt.Errorf("age outside valid range [0, 150]")

// AgeBin labels, five-year buckets with open ends.
const (
	AgeUnder20 = "UNDER_20"
	AgeOver90  = "OVER_90"
)

// Anonymizer derives all case-keyed transformations from a single secret.
type Anonymizer struct {
	secret string
}

func New(secret string) *Anonymizer {
	return &Anonymizer{secret: secret}
}

var shiftModulus = big.NewInt(181)

// DateShiftDays returns the deterministic shift in [-90, +90] days for a case.
// The shift is a pure function of (caseID, secret): the same case always moves
// by the same amount, different cases move independently.
func (a *Anonymizer) DateShiftDays(caseID string) int {
	digest := sha256.Sum256([]byte(caseID + a.secret))
	n := new(big.Int).SetBytes(digest[:])
	return int(n.Mod(n, shiftModulus).Int64()) - 90
}

// ShiftDate shifts a clinically-relevant date by the case-keyed offset.
func (a *Anonymizer) ShiftDate(d time.Time, caseID string) time.Time {
	return d.AddDate(0, 0, a.DateShiftDays(caseID))
}

// ShiftPeriod shifts both bounds of a period with the same case-keyed offset.
func (a *Anonymizer) ShiftPeriod(p clinical.Period, caseID string) clinical.Period {
	out := clinical.Period{}
	if p.Start != nil {
		s := a.ShiftDate(*p.Start, caseID)
		out.Start = &s
	}
	if p.End != nil {
		e := a.ShiftDate(*p.End, caseID)
		out.End = &e
	}
	return out
}

// TruncateToMonth truncates a personal date (e.g. a birthdate) to the first of
// its month, preserving the year.
func TruncateToMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
}

// AgeBin buckets an age in years into {<20, 20-24, ..., 85-89, >=90}.
func AgeBin(age int) (string, error) {
	if age < 0 || age > 150 {
		return "", ErrInvalidAge
	}
	switch {
	case age < 20:
		return AgeUnder20, nil
	case age >= 90:
		return AgeOver90, nil
	default:
		low := age / 5 * 5
		return fmt.Sprintf("AGE_%d_%d", low, low+4), nil
	}
}

// Redact replaces a free-text string with the constant redaction token.
func Redact(string) string {
	return RedactedToken
}

// AnonymousUsername derives the replacement username of a non-shareable
// contributor from the first five characters of their id.
func AnonymousUsername(userID uuid.UUID) string {
	return "user-" + userID.String()[:5]
}

// Contributor is the subset of a user that travels inside exported bundles.
type Contributor struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Shareable bool      `json:"shareable"`
}

// AnonymizeContributor replaces the identity of a non-shareable contributor.
// It returns the anonymized copy and the replacement username; shareable
// contributors pass through untouched.
func AnonymizeContributor(c Contributor) (Contributor, string) {
	if c.Shareable {
		return c, c.Username
	}
	replacement := AnonymousUsername(c.ID)
	return Contributor{
		ID:        c.ID,
		Username:  replacement,
		FirstName: "Anonymous",
		LastName:  "External User",
		Email:     PlaceholderEmail,
		Shareable: false,
	}, replacement
}
