package model

import "time"

// Member is an account that can browse the catalog and book class
// sessions.  Booking requires an active membership; the expiry is
// checked both before a batch is submitted and authoritatively by
// the store while each item is evaluated.
//
// Fields:
//  ID                  – primary key identifier.
//  Email               – login email, unique.
//  PasswordHash        – bcrypt hash of the password.
//  Role                – MEMBER or ADMIN.
//  MembershipExpiresAt – end of the paid membership period; nil means
//                        no membership was ever purchased.
//  CreatedAt           – creation timestamp.
type Member struct {
	ID                  uint64     // members.id
	Email               string     // members.email
	PasswordHash        string     // members.password_hash
	Role                string     // members.role
	MembershipExpiresAt *time.Time // members.membership_expires_at (nullable)
	CreatedAt           time.Time  // members.created_at
}
