package models

import "time"

// Role is the closed set of roles a firm user can hold. Capabilities are
// derived from the role at the API boundary; the core only cares about
// partner-equivalence (escalation fan-out) and the acknowledgment rule.
type Role string

const (
	RolePartner   Role = "partner"
	RoleAdvocate  Role = "advocate"
	RoleClerk     Role = "clerk"
	RoleRegistrar Role = "registrar"
)

func (r Role) Valid() bool {
	switch r {
	case RolePartner, RoleAdvocate, RoleClerk, RoleRegistrar:
		return true
	}
	return false
}

// PartnerEquivalent reports whether the role receives escalation alerts.
func (r Role) PartnerEquivalent() bool {
	return r == RolePartner
}

// User is a firm member who can hold custody of files.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
