package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "localfm"

// Claims identify the signed-in user of a session.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator hashes passwords and signs session tokens.
type Authenticator struct {
	secret []byte
	cost   int
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Authenticator)

// WithCost sets the bcrypt cost used by Hash.
func WithCost(cost int) Option {
	return func(a *Authenticator) { a.cost = cost }
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) { a.ttl = ttl }
}

func NewAuthenticator(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{
		secret: []byte(secret),
		cost:   bcrypt.DefaultCost,
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Authenticator) Hash(password string) (string, error) {
	return HashPasswordCost(password, a.cost)
}

func (a *Authenticator) Check(password, hash string) bool {
	return CheckPasswordHash(password, hash)
}

// Issue signs a token for the user.
func (a *Authenticator) Issue(userID int64, username string) (string, error) {
	now := a.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify parses a token and returns its claims.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// RandomSecret returns a fresh 256-bit signing key, hex encoded.
func RandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("auth: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
