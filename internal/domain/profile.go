package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is a user's access level
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile represents a user account and wallet
type Profile struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Role      Role            `json:"role"`
	UPIID     string          `json:"upi_id,omitempty"`
	Avatar    string          `json:"avatar,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsAdmin reports whether the profile has admin access.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// UpsertProfileRequest carries identity provider data for a profile.
// Balance and role are never taken from the request.
type UpsertProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	UPIID    string `json:"upi_id,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Validate checks the request fields.
func (r *UpsertProfileRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	if r.Username == "" {
		return InvalidInput("username is required")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return InvalidInput("email is malformed")
	}
	return nil
}

// Recipient is a user reachable by email
type Recipient struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
