package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles a user can log in as. There is no password: the source system's login
// is a self-asserted name plus a chosen role, and that contract is kept.
const (
	RoleStudent  = "student"
	RoleLecturer = "lecturer"
)

// User is the logged-in identity persisted at the currentUser key.
type User struct {
	Name string `json:"name"`
	Role string `json:"role"`
	ID   string `json:"id"`
}

// NewUser builds an identity with a role-prefixed opaque id, unique per login.
func NewUser(name, role string) (User, error) {
	if name == "" {
		return User{}, errors.New("name required")
	}
	if role != RoleStudent && role != RoleLecturer {
		return User{}, fmt.Errorf("role must be %q or %q", RoleStudent, RoleLecturer)
	}
	return User{Name: name, Role: role, ID: role + "-" + uuid.NewString()}, nil
}

// Token is an issued access token and its expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims represents the JWT payload for a logged-in user.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs an HS256 access token for user.
func Issue(user User, issuer, key string, ttl time.Duration) (Token, error) {
	exp := time.Now().Add(ttl)
	claims := Claims{
		Name: user.Name,
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: token, ExpiresAt: exp}, nil
}

// Parse validates a token and returns its claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
