package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/talkademy/booking-api/internal/model"
	"github.com/talkademy/booking-api/internal/utils"
)

// MemberRepo manages member accounts and membership validity.  It
// implements booking.MembershipSource for the advisory entitlement
// check.
type MemberRepo struct {
	db *sql.DB
}

// NewMemberRepo returns a MemberRepo bound to the given database.
func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{db: db} }

// Create registers a member with a bcrypt-hashed password and returns
// the new id.  ErrEmailExists is returned for a taken email.
func (r *MemberRepo) Create(ctx context.Context, email, password, role string, bcryptCost int) (uint64, error) {
	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO members (email, password_hash, role) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, email, hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail loads a member by login email.  sql.ErrNoRows passes
// through so the auth handler can answer "invalid credentials".
func (r *MemberRepo) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	const q = `SELECT id, email, password_hash, role, membership_expires_at, created_at
               FROM members WHERE email = ?`
	return r.scanMember(r.db.QueryRowContext(ctx, q, email))
}

// GetByID loads a member by id.  Returns ErrMemberNotFound when absent.
func (r *MemberRepo) GetByID(ctx context.Context, id uint64) (*model.Member, error) {
	const q = `SELECT id, email, password_hash, role, membership_expires_at, created_at
               FROM members WHERE id = ?`
	m, err := r.scanMember(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	return m, err
}

// MembershipActive reports whether the member's membership covers the
// given instant.  This is the advisory pre-check; the reservation store
// re-checks per item during submission.
func (r *MemberRepo) MembershipActive(ctx context.Context, viewerID uint64, at time.Time) (bool, error) {
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT membership_expires_at FROM members WHERE id = ?`, viewerID).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expires.Valid && expires.Time.After(at.UTC()), nil
}

// SetMembershipExpiry updates the member's membership end date (admin
// operation).  A nil expiresAt clears the expiry.  Returns
// ErrMemberNotFound for an unknown id.
func (r *MemberRepo) SetMembershipExpiry(ctx context.Context, memberID uint64, expiresAt *time.Time) error {
	var value interface{}
	if expiresAt != nil {
		value = expiresAt.UTC().Format("2006-01-02 15:04:05")
	}
	const q = `UPDATE members SET membership_expires_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, value, memberID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM members WHERE id = ?)`, memberID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrMemberNotFound
		}
	}
	return nil
}

func (r *MemberRepo) scanMember(row *sql.Row) (*model.Member, error) {
	var (
		m       model.Member
		expires sql.NullTime
	)
	err := row.Scan(&m.ID, &m.Email, &m.PasswordHash, &m.Role, &expires, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time.UTC()
		m.MembershipExpiresAt = &t
	}
	return &m, nil
}
