package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"tradezone/internal/domain/entity"
	"tradezone/pkg/errors"
)

// FirestoreDirectory reads listings/{id} and members/{id}, both written by other services.
type FirestoreDirectory struct {
	client *firestore.Client
}

func NewFirestoreDirectory(client *firestore.Client) *FirestoreDirectory {
	return &FirestoreDirectory{
		client: client,
	}
}

func (r *FirestoreDirectory) GetListing(ctx context.Context, id int64) (*entity.Listing, error) {
	doc, err := r.client.Collection(listingsCollection).Doc(docID(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Listing", err)
		}
		return nil, errors.Internal("Failed to get listing", err)
	}

	var listing entity.Listing
	if err := doc.DataTo(&listing); err != nil {
		return nil, errors.Internal("Failed to parse listing data", err)
	}
	return &listing, nil
}

func (r *FirestoreDirectory) GetMember(ctx context.Context, id int64) (*entity.Member, error) {
	doc, err := r.client.Collection(membersCollection).Doc(docID(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("Member", err)
		}
		return nil, errors.Internal("Failed to get member", err)
	}
	return decodeMember(doc)
}

func (r *FirestoreDirectory) GetMemberByExternalID(ctx context.Context, externalID string) (*entity.Member, error) {
	q := r.client.Collection(membersCollection).Where("externalId", "==", externalID).Limit(1)
	members, err := collect(q.Documents(ctx), decodeMember)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, errors.NotFound("Member", nil)
	}
	return members[0], nil
}

func decodeMember(doc *firestore.DocumentSnapshot) (*entity.Member, error) {
	var member entity.Member
	if err := doc.DataTo(&member); err != nil {
		return nil, errors.Internal("Failed to parse member data", err)
	}
	return &member, nil
}
