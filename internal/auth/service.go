package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/identity"
)

type Session struct {
	ID         string
	IdentityID string
	DeviceHash string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

type Repository interface {
	CreateSession(ctx context.Context, identityID, deviceHash string, expiresAt time.Time) (*Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeByIdentityExceptDevice(ctx context.Context, identityID, deviceHash string) (int64, error)
}

type IdentityService interface {
	ResolveAttestation(ctx context.Context, proof string) (*identity.Identity, error)
	BindDevice(ctx context.Context, identityID, deviceToken string) (*identity.Identity, error)
	Get(ctx context.Context, identityID string) (*identity.Identity, error)
}

type Service struct {
	repo       Repository
	identities IdentityService
	jwt        *JWTManager
	ttl        time.Duration
	now        func() time.Time
}

type LoginResult struct {
	Token    string
	Session  *Session
	Identity *identity.Identity
}

// Principal is the caller resolved from a valid session token.
type Principal struct {
	IdentityID string
	SessionID  string
}

func NewService(repo Repository, identities IdentityService, jwt *JWTManager, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{repo: repo, identities: identities, jwt: jwt, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login opens a session for the human behind the attestation on the given
// device. Logging in from a new device rebinds the identity to it, which
// revokes the sessions of the previous device.
func (s *Service) Login(ctx context.Context, proof, deviceToken string) (*LoginResult, error) {
	if strings.TrimSpace(deviceToken) == "" {
		return nil, errs.ErrInvalidDevice
	}
	ident, err := s.identities.ResolveAttestation(ctx, proof)
	if err != nil {
		return nil, err
	}
	deviceHash := identity.HashDeviceToken(deviceToken)
	if ident.DeviceBindingHash != deviceHash {
		ident, err = s.identities.BindDevice(ctx, ident.ID, deviceToken)
		if err != nil {
			return nil, err
		}
	}

	session, err := s.repo.CreateSession(ctx, ident.ID, deviceHash, s.now().Add(s.ttl))
	if err != nil {
		return nil, err
	}
	token, err := s.jwt.Mint(ident.ID, session.ID, deviceHash, s.ttl)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Session: session, Identity: ident}, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errs.ErrSessionInvalid
	}
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSessionInvalid, err)
	}
	session, err := s.repo.GetSessionByID(ctx, claims.SessionID)
	if err != nil {
		return nil, errs.ErrSessionInvalid
	}
	if session.RevokedAt != nil {
		return nil, fmt.Errorf("%w: session revoked", errs.ErrSessionInvalid)
	}
	if s.now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: session expired", errs.ErrSessionInvalid)
	}
	if session.IdentityID != claims.IdentityID || session.DeviceHash != claims.DeviceHash {
		return nil, errs.ErrSessionInvalid
	}

	ident, err := s.identities.Get(ctx, session.IdentityID)
	if err != nil {
		if errors.Is(err, errs.ErrIdentityNotFound) {
			return nil, errs.ErrSessionInvalid
		}
		return nil, err
	}
	if ident.DeviceBindingHash != session.DeviceHash {
		return nil, fmt.Errorf("%w: device rebound", errs.ErrSessionInvalid)
	}
	return &Principal{IdentityID: session.IdentityID, SessionID: session.ID}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil
	}
	if claims.SessionID == "" {
		return nil
	}
	return s.repo.RevokeSession(ctx, claims.SessionID)
}
