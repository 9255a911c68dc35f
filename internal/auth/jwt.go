package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionTokenType = "session"

type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
}

// Claims bind a token to one session and to the device that opened it.
type Claims struct {
	IdentityID string `json:"uid"`
	SessionID  string `json:"sid"`
	DeviceHash string `json:"dvh"`
	Type       string `json:"typ"`
	jwt.RegisteredClaims
}

func NewJWTManager(issuer, audience, signingKey string) *JWTManager {
	return &JWTManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(signingKey),
	}
}

func (m *JWTManager) Mint(identityID, sessionID, deviceHash string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		IdentityID: identityID,
		SessionID:  sessionID,
		DeviceHash: deviceHash,
		Type:       sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   identityID,
			Audience:  []string{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Type != sessionTokenType {
		return nil, errors.New("invalid token type")
	}
	return claims, nil
}
