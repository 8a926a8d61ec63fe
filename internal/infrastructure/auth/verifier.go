package auth

import (
	"context"
	"strconv"

	"github.com/golang-jwt/jwt/v4"

	"tradezone/pkg/errors"
)

// Identity is the caller bound to a request or a websocket connection.
type Identity struct {
	MemberID int64
	Subject  string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Claims carries the member id next to the registered claims.
type Claims struct {
	MemberID int64 `json:"member_id,omitempty"`
	jwt.RegisteredClaims
}

func identityFromClaims(c *Claims) (*Identity, error) {
	if c.MemberID > 0 {
		return &Identity{MemberID: c.MemberID, Subject: c.Subject}, nil
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.Unauthorized("Token carries no member id", err)
	}
	return &Identity{MemberID: id, Subject: c.Subject}, nil
}
