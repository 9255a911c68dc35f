package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rajarshidattapy/R-Credit/internal/auth"
	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
)

type SessionRepository struct {
	s *Store
}

func (r *SessionRepository) CreateSession(_ context.Context, identityID, deviceHash string, expiresAt time.Time) (*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.identities[identityID]; !ok {
		return nil, errs.ErrIdentityNotFound
	}
	item := &auth.Session{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		DeviceHash: deviceHash,
		ExpiresAt:  expiresAt,
		CreatedAt:  r.s.now(),
	}
	r.s.sessions[item.ID] = item
	out := *item
	return &out, nil
}

func (r *SessionRepository) GetSessionByID(_ context.Context, sessionID string) (*auth.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, errs.ErrSessionInvalid
	}
	out := *item
	out.RevokedAt = copyTime(item.RevokedAt)
	return &out, nil
}

func (r *SessionRepository) RevokeSession(_ context.Context, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if item, ok := r.s.sessions[sessionID]; ok && item.RevokedAt == nil {
		item.RevokedAt = timePtr(r.s.now())
	}
	return nil
}

func (r *SessionRepository) RevokeByIdentityExceptDevice(_ context.Context, identityID, deviceHash string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var revoked int64
	now := r.s.now()
	for _, item := range r.s.sessions {
		if item.IdentityID != identityID || item.DeviceHash == deviceHash || item.RevokedAt != nil {
			continue
		}
		item.RevokedAt = timePtr(now)
		revoked++
	}
	return revoked, nil
}
