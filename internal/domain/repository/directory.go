package repository

import (
	"context"

	"tradezone/internal/domain/entity"
)

// ListingCatalog resolves listings owned by the catalog service.
type ListingCatalog interface {
	GetListing(ctx context.Context, id int64) (*entity.Listing, error)
}

// MemberDirectory resolves registered members.
type MemberDirectory interface {
	GetMember(ctx context.Context, id int64) (*entity.Member, error)
	GetMemberByExternalID(ctx context.Context, externalID string) (*entity.Member, error)
}
