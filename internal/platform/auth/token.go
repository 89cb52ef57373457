package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultServiceTokenTTL = 5 * time.Minute

// ServiceTokens signs short-lived HS256 tokens that identify this gateway to
// the backend. Tokens are reused until shortly before they expire.
type ServiceTokens struct {
	Key      []byte
	Subject  string
	Audience string
	TTL      time.Duration

	mu     sync.Mutex
	now    func() time.Time
	cached string
	expiry time.Time
}

// Token returns a signed bearer token. It is safe for concurrent use.
func (s *ServiceTokens) Token() (string, error) {
	if len(s.Key) == 0 {
		return "", errors.New("service token key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	t := now()
	if s.cached != "" && t.Before(s.expiry.Add(-30*time.Second)) {
		return s.cached, nil
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultServiceTokenTTL
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Subject,
			IssuedAt:  jwt.NewNumericDate(t),
			ExpiresAt: jwt.NewNumericDate(t.Add(ttl)),
		},
		Roles: []string{"service"},
	}
	if s.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
	if err != nil {
		return "", err
	}
	s.cached = signed
	s.expiry = t.Add(ttl)
	return signed, nil
}
