// Package tokens issues and verifies the HS256 bearer tokens that carry a
// user's email.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = time.Hour

var (
	ErrMissingSecret = errors.New("tokens: signing secret is required")
	ErrInvalidTTL    = errors.New("tokens: ttl must be positive")
)

// Status is the typed outcome of verifying a presented token.
type Status int

const (
	Malformed Status = iota
	Expired
	Valid
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "malformed"
	}
}

// Claims is the identity claim embedded in every token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verification carries Claims only when Status is Valid. Err keeps the
// parser's reason for logging.
type Verification struct {
	Status Status
	Claims *Claims
	Err    error
}

func (v Verification) Valid() bool {
	return v.Status == Valid
}

type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

type Manager struct {
	config Config
	now    func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	return NewManagerWithClock(cfg, time.Now)
}

func NewManagerWithClock(cfg Config, now func() time.Time) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, ErrInvalidTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// Issue signs a token for email that expires after the configured TTL.
func (m *Manager) Issue(email string) (string, error) {
	now := m.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

func (m *Manager) Verify(tokenStr string) Verification {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verification{Status: Expired, Err: err}
		}
		return Verification{Status: Malformed, Err: err}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return Verification{Status: Malformed, Err: jwt.ErrTokenInvalidClaims}
	}
	return Verification{Status: Valid, Claims: claims}
}

func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}
