package main

import (
	"context"
	"fmt"

	adapterrepo "tradezone/internal/adapter/repository"
	"tradezone/internal/domain/repository"
	"tradezone/internal/infrastructure/database"
	"tradezone/internal/infrastructure/firebase"
	"tradezone/pkg/config"
	"tradezone/pkg/logger"
)

// stores is the persistence backend picked by cfg.Store.Driver.
type stores struct {
	tx       repository.Transactor
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	trades   repository.TradeRepository
	listings repository.ListingCatalog
	members  repository.MemberDirectory

	closers []func() error
}

func (s *stores) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("close failed: %v", err)
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (*stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		store := adapterrepo.NewMemoryStore()
		if cfg.IsDevelopment() {
			seedMemory(store)
		}
		dir := adapterrepo.NewMemoryDirectory(store)
		return &stores{
			tx:       store,
			rooms:    adapterrepo.NewMemoryRoomRepository(store),
			messages: adapterrepo.NewMemoryMessageRepository(store),
			trades:   adapterrepo.NewMemoryTradeRepository(store),
			listings: dir,
			members:  dir,
		}, nil

	case "gorm":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := database.AutoMigrate(db, adapterrepo.Models()...); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("failed to migrate: %w", err)
			}
		}
		dir := adapterrepo.NewGormDirectory(db)
		if cfg.IsDevelopment() {
			seedGorm(ctx, dir)
		}
		s := &stores{
			tx:       adapterrepo.NewGormTransactor(db),
			rooms:    adapterrepo.NewGormRoomRepository(db),
			messages: adapterrepo.NewGormMessageRepository(db),
			trades:   adapterrepo.NewGormTradeRepository(db),
			listings: dir,
			members:  dir,
		}
		s.onClose(sqlDB.Close)
		return s, nil

	case "firestore":
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		dir := adapterrepo.NewFirestoreDirectory(client)
		s := &stores{
			tx:       adapterrepo.NewFirestoreTransactor(client),
			rooms:    adapterrepo.NewFirestoreRoomRepository(client),
			messages: adapterrepo.NewFirestoreMessageRepository(client),
			trades:   adapterrepo.NewFirestoreTradeRepository(client),
			listings: dir,
			members:  dir,
		}
		s.onClose(client.Close)
		return s, nil
	}
	return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
}
