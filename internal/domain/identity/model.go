package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/oncore/oncore/internal/platform/auth"
)

// User is a platform account. Role and Capabilities are derived from the
// access level on read, never stored.
type User struct {
	ID               uuid.UUID        `json:"id"`
	Username         string           `json:"username"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	Organization     string           `json:"organization"`
	Department       string           `json:"department"`
	Email            string           `json:"email"`
	AccessLevel      auth.AccessLevel `json:"accessLevel"`
	Shareable        bool             `json:"shareable"`
	IsServiceAccount bool             `json:"isServiceAccount"`

	OIDCSubject  string `json:"-"`
	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Role         string                   `json:"role"`
	Capabilities map[auth.Capability]bool `json:"capabilities"`
}

func (u *User) Decorate() {
	u.Role = u.AccessLevel.Role()
	u.Capabilities = u.AccessLevel.Capabilities()
}

func (u *User) Principal() auth.Principal {
	return auth.Principal{
		UserID:           u.ID,
		Username:         u.Username,
		AccessLevel:      u.AccessLevel,
		IsServiceAccount: u.IsServiceAccount,
	}
}

// Session is the response of both login endpoints.
type Session struct {
	SessionToken    string    `json:"sessionToken"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	ExpiresAt       time.Time `json:"expiresAt"`
	User            *User     `json:"user,omitempty"`
}
