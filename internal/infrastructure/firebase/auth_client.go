package firebase

import (
	"context"

	fbauth "firebase.google.com/go/v4/auth"

	"tradezone/internal/domain/repository"
	"tradezone/internal/infrastructure/auth"
	"tradezone/pkg/errors"
)

const memberIDClaim = "member_id"

type FirebaseAuthClient struct {
	client  *fbauth.Client
	members repository.MemberDirectory
}

func NewFirebaseAuthClient(client *fbauth.Client, members repository.MemberDirectory) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client:  client,
		members: members,
	}
}

// Verify checks a Firebase ID token. The member id comes from the member_id custom claim
// when present, otherwise from the member directory keyed by the Firebase UID.
func (f *FirebaseAuthClient) Verify(ctx context.Context, token string) (*auth.Identity, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	if id, ok := memberIDFromClaims(result.Claims); ok {
		return &auth.Identity{MemberID: id, Subject: result.UID}, nil
	}

	member, err := f.members.GetMemberByExternalID(ctx, result.UID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.Unauthorized("No member registered for this account", err)
		}
		return nil, err
	}
	return &auth.Identity{MemberID: member.ID, Subject: result.UID}, nil
}

// SetMemberClaim binds uid to memberID so later tokens skip the directory lookup.
func (f *FirebaseAuthClient) SetMemberClaim(ctx context.Context, uid string, memberID int64) error {
	return f.client.SetCustomUserClaims(ctx, uid, map[string]interface{}{memberIDClaim: memberID})
}

func memberIDFromClaims(claims map[string]interface{}) (int64, bool) {
	switch v := claims[memberIDClaim].(type) {
	case float64:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	}
	return 0, false
}
