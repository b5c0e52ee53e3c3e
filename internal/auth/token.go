// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ItemVault Contributors

package auth

import (
	"crypto/ed25519"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinSecretLength is the minimum HMAC secret length in bytes.
const MinSecretLength = 32

// TokenConfig configures a TokenService.
type TokenConfig struct {
	// Algorithm is the JWT "alg" used to sign and the only one accepted.
	Algorithm string
	// Secret signs HS256, HS384 and HS512 tokens.
	Secret []byte
	// PrivateKeyPEM signs RS*, ES* and EdDSA tokens; its public half verifies.
	PrivateKeyPEM []byte
	Lifetime      time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Claims are the verified contents of an access token.
type Claims struct {
	// Subject is the username the token was issued to.
	Subject string
	// UserID pins the token to one account, so a username freed by a delete
	// and registered again does not inherit old tokens.
	UserID int64
}

type accessClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"uid"`
}

// TokenService issues and validates stateless JWT access tokens whose
// subject is a username.
type TokenService struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	lifetime  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewTokenService creates a TokenService. The algorithm and key material are
// checked up front so a misconfiguration fails at startup.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Lifetime <= 0 {
		return nil, oops.Code("TOKEN_INVALID_CONFIG").With("lifetime", cfg.Lifetime).Errorf("token lifetime must be positive")
	}

	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, oops.Code("TOKEN_INVALID_CONFIG").With("algorithm", cfg.Algorithm).Errorf("unknown signing algorithm")
	}
	signKey, verifyKey, err := signingKeys(method, cfg)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenService{
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		lifetime:  cfg.Lifetime,
		now:       now,
		logger:    logger,
	}, nil
}

func signingKeys(method jwt.SigningMethod, cfg TokenConfig) (sign, verify any, err error) {
	invalid := oops.Code("TOKEN_INVALID_CONFIG").With("algorithm", method.Alg())

	switch m := method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(cfg.Secret) < MinSecretLength {
			return nil, nil, invalid.Errorf("secret key must be at least %d bytes", MinSecretLength)
		}
		return cfg.Secret, cfg.Secret, nil

	case *jwt.SigningMethodRSA:
		if len(cfg.PrivateKeyPEM) == 0 {
			return nil, nil, invalid.Errorf("private key is required")
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, nil, invalid.Wrap(err)
		}
		return key, &key.PublicKey, nil

	case *jwt.SigningMethodECDSA:
		if len(cfg.PrivateKeyPEM) == 0 {
			return nil, nil, invalid.Errorf("private key is required")
		}
		key, err := jwt.ParseECPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, nil, invalid.Wrap(err)
		}
		if bits := key.Curve.Params().BitSize; bits != m.CurveBits {
			return nil, nil, invalid.With("curve_bits", bits).Errorf("key curve does not match algorithm")
		}
		return key, &key.PublicKey, nil

	case *jwt.SigningMethodEd25519:
		if len(cfg.PrivateKeyPEM) == 0 {
			return nil, nil, invalid.Errorf("private key is required")
		}
		key, err := jwt.ParseEdPrivateKeyFromPEM(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, nil, invalid.Wrap(err)
		}
		edKey, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, nil, invalid.Errorf("not an Ed25519 private key")
		}
		return edKey, edKey.Public(), nil
	}
	return nil, nil, invalid.Errorf("unsupported signing algorithm")
}

// Algorithm returns the configured JWT algorithm.
func (s *TokenService) Algorithm() string {
	return s.method.Alg()
}

// Issue signs a token for the user with the given id and username. The
// returned expiry is what the token's exp claim carries.
func (s *TokenService) Issue(userID int64, subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").Errorf("subject is required")
	}
	if userID <= 0 {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").With("user_id", userID).Errorf("user id is required")
	}
	now := s.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").With("algorithm", s.method.Alg()).Wrap(err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Validate checks the signature, algorithm and expiry of token and returns
// its claims. All failures return the same AUTH_INVALID_TOKEN error.
func (s *TokenService) Validate(token string) (Claims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.verifyKey, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.Debug("token rejected", "reason", err.Error())
		return Claims{}, errInvalidToken()
	}
	if claims.Subject == "" {
		s.logger.Debug("token rejected", "reason", "missing subject")
		return Claims{}, errInvalidToken()
	}
	if claims.UserID <= 0 {
		s.logger.Debug("token rejected", "reason", "missing user id")
		return Claims{}, errInvalidToken()
	}
	return Claims{Subject: claims.Subject, UserID: claims.UserID}, nil
}
