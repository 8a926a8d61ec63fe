package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"tradezone/pkg/errors"
)

const issuer = "tradezone"

// HMACVerifier signs and verifies HS256 tokens with a shared secret.
type HMACVerifier struct {
	secret []byte
	ttl    time.Duration
}

func NewHMACVerifier(secret string, ttl time.Duration) *HMACVerifier {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HMACVerifier{secret: []byte(secret), ttl: ttl}
}

// Issue creates a token for memberID. Only exposed through the development token route.
func (v *HMACVerifier) Issue(memberID int64) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(v.ttl)
	claims := &Claims{
		MemberID: memberID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(memberID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, errors.Internal("Failed to sign token", err)
	}
	return signed, expiresAt, nil
}

func (v *HMACVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}
	return identityFromClaims(claims)
}
