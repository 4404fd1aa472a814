package auth

import (
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"
	"github.com/golang-jwt/jwt/v4"
)

const tokenDuration = 24 * time.Hour

// Claims carries the student profile issued by the auth collaborator.
type Claims struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	SchoolName string `json:"schoolName"`
	Mobile     string `json:"mobile,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier resolves bearer tokens into identities. The auth provider itself
// is external; this service only checks signatures and reads the profile
// out of the claims.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Identity resolves a token into a three-state identity: an empty token is
// resolved-absent, a valid token is resolved-present, and an invalid token
// is an error (not silently absent, so expired sessions surface).
func (v *Verifier) Identity(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.AnonymousIdentity(), nil
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return domain.Identity{}, errors.New("invalid token")
	}
	return domain.ResolvedIdentity(domain.Profile{
		UserID:     claims.Subject,
		Name:       claims.Name,
		Email:      claims.Email,
		SchoolName: claims.SchoolName,
		Mobile:     claims.Mobile,
		Role:       claims.Role,
	}), nil
}

// Issue signs a token for the given profile. The production issuer is the
// external auth service; this one backs local development and tests.
func (v *Verifier) Issue(profile domain.Profile) (string, error) {
	claims := &Claims{
		Name:       profile.Name,
		Email:      profile.Email,
		SchoolName: profile.SchoolName,
		Mobile:     profile.Mobile,
		Role:       profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
