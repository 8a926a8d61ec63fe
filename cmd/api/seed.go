package main

import (
	"context"

	adapterrepo "tradezone/internal/adapter/repository"
	"tradezone/internal/domain/entity"
	"tradezone/pkg/logger"
)

// Development fixtures: two members trading over two listings.
var (
	seedMembers = []entity.Member{
		{ID: 1, ExternalID: "dev-alice", DisplayName: "Alice"},
		{ID: 2, ExternalID: "dev-bob", DisplayName: "Bob"},
		{ID: 3, ExternalID: "dev-carol", DisplayName: "Carol"},
	}
	seedListings = []entity.Listing{
		{ID: 100, SellerID: 2, Title: "Road bike", Status: entity.ListingStatusActive},
		{ID: 101, SellerID: 1, Title: "Film camera", Status: entity.ListingStatusActive},
	}
)

func seedMemory(store *adapterrepo.MemoryStore) {
	for _, m := range seedMembers {
		store.SeedMember(m)
	}
	for _, l := range seedListings {
		store.SeedListing(l)
	}
	logger.Info("seeded %d members and %d listings", len(seedMembers), len(seedListings))
}

// seedGorm inserts fixtures that are not there yet.
func seedGorm(ctx context.Context, dir *adapterrepo.GormDirectory) {
	for _, m := range seedMembers {
		if _, err := dir.GetMember(ctx, m.ID); err == nil {
			continue
		}
		if err := dir.SeedMember(ctx, m); err != nil {
			logger.Warn("failed to seed member %d: %v", m.ID, err)
		}
	}
	for _, l := range seedListings {
		if _, err := dir.GetListing(ctx, l.ID); err == nil {
			continue
		}
		if err := dir.SeedListing(ctx, l); err != nil {
			logger.Warn("failed to seed listing %d: %v", l.ID, err)
		}
	}
}
