package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredential = errors.New("credential is empty")
	ErrInvalidCredential = errors.New("credential is invalid")
	ErrExpiredCredential = errors.New("credential has expired")
	ErrMissingEmail      = errors.New("credential carries no email")
)

// UserMetadata is the profile block the auth provider embeds in its tokens.
type UserMetadata struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Claims are the fields read from a session credential.
type Claims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// Decoder turns a raw session credential into Claims. With a secret it also
// checks the HS256 signature; without one the credential is only decoded, on
// the assumption that the auth provider already verified it. Unsigned
// (alg "none") credentials are rejected either way.
type Decoder struct {
	secret []byte
	now    func() time.Time
}

func NewDecoder(secret string) *Decoder {
	d := &Decoder{now: time.Now}
	if secret != "" {
		d.secret = []byte(secret)
	}
	return d
}

func (d *Decoder) Verifies() bool { return d.secret != nil }

func (d *Decoder) Decode(credential string) (*Claims, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}

	claims := &Claims{}
	if d.secret != nil {
		// 1. Parse and verify the signature.
		_, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return d.secret, nil
		}, jwt.WithTimeFunc(d.now), jwt.WithExpirationRequired())
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrExpiredCredential
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
	} else {
		// 1. Decode only, but never accept an unsigned credential.
		token, parts, err := jwt.NewParser().ParseUnverified(credential, claims)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok || len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("%w: unsigned or unsupported algorithm %v", ErrInvalidCredential, token.Header["alg"])
		}
		if claims.ExpiresAt == nil || !d.now().Before(claims.ExpiresAt.Time) {
			return nil, ErrExpiredCredential
		}
	}

	// 2. The email is the lookup key for the user row.
	if claims.Email == "" {
		return nil, ErrMissingEmail
	}
	return claims, nil
}

// Sign issues an HS256 credential for claims. It is used by tests and local
// tooling that stand in for the auth provider.
func Sign(secret string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
