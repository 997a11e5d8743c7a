package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	acctentity "github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/session/repo"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("refresh session expired")
)

// RefreshStore persists refresh sessions keyed by token digest.
type RefreshStore interface {
	Save(ctx context.Context, s *entity.RefreshSession) error
	Take(ctx context.Context, token string) (*entity.RefreshSession, error)
	Delete(ctx context.Context, token string) error
}

// Options configure token issuance.
type Options struct {
	Issuer     string
	Audience   string
	TTL        time.Duration
	RefreshTTL time.Duration
}

// Claims carried by access tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs access tokens and manages refresh sessions.
type Service struct {
	key     *rsa.PrivateKey
	kid     string
	opts    Options
	refresh RefreshStore
	now     func() time.Time
}

func NewService(key *rsa.PrivateKey, opts Options, refresh RefreshStore) (*Service, error) {
	if key == nil {
		return nil, errors.New("session: nil signing key")
	}
	if opts.TTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, errors.New("session: token lifetimes must be positive")
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("session: marshal public key: %w", err)
	}
	h := sha256.Sum256(pub)
	kid := base64.RawURLEncoding.EncodeToString(h[:8])
	return &Service{key: key, kid: kid, opts: opts, refresh: refresh, now: time.Now}, nil
}

// LoadSigningKey reads a PEM encoded RSA private key, or generates a fresh
// 2048-bit key when path is empty. Generated keys do not survive restarts.
func LoadSigningKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		return rsa.GenerateKey(rand.Reader, 2048)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signing key %s: %w", path, err)
	}
	return key, nil
}

// IssueTokens creates an access token and a persisted refresh token.
func (s *Service) IssueTokens(ctx context.Context, a *acctentity.Account, clientID string) (*entity.TokenPair, error) {
	now := s.now()
	claims := Claims{
		Email: a.Email,
		Role:  string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.opts.Issuer,
			Subject:   a.ID,
			Audience:  jwt.ClaimStrings{s.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.TTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	access, err := tok.SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	rtBytes := make([]byte, 32)
	if _, err := rand.Read(rtBytes); err != nil {
		return nil, err
	}
	refresh := base64.RawURLEncoding.EncodeToString(rtBytes)
	rs := &entity.RefreshSession{
		Token:     digest(refresh),
		UserID:    a.ID,
		ClientID:  clientID,
		ExpiresAt: now.Add(s.opts.RefreshTTL),
	}
	if err := s.refresh.Save(ctx, rs); err != nil {
		return nil, fmt.Errorf("save refresh session: %w", err)
	}

	return &entity.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.opts.TTL / time.Second),
	}, nil
}

// VerifyAccessToken validates signature, issuer, audience and expiry and
// returns the account id in the subject.
func (s *Service) VerifyAccessToken(_ context.Context, token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return &s.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.opts.Issuer),
		jwt.WithAudience(s.opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Redeem consumes a refresh token. The caller issues a new pair for the
// returned session; the old token can never be used again.
func (s *Service) Redeem(ctx context.Context, refresh string) (*entity.RefreshSession, error) {
	rs, err := s.refresh.Take(ctx, digest(refresh))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !rs.ExpiresAt.After(s.now()) {
		return nil, ErrExpired
	}
	return rs, nil
}

// Revoke removes a refresh token. Unknown tokens are not an error.
func (s *Service) Revoke(ctx context.Context, refresh string) error {
	return s.refresh.Delete(ctx, digest(refresh))
}

// JWKS returns a minimal JWKS containing the public key.
func (s *Service) JWKS() map[string]any {
	pub := s.key.PublicKey
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	jwk := map[string]any{
		"kty": "RSA",
		"use": "sig",
		"alg": "RS256",
		"kid": s.kid,
		"n":   n,
		"e":   e,
	}
	return map[string]any{"keys": []any{jwk}}
}

func digest(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
