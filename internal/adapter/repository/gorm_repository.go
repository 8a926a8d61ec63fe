package repository

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
)

type gormTxKey struct{}

type GormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (t *GormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	var hooks *repository.TxHooks
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, gormTxKey{}, tx)
		txCtx, hooks = repository.BeginHooks(txCtx)
		return fn(txCtx)
	})
	if err != nil {
		return err
	}
	hooks.Run()
	return nil
}

// conn returns the transaction bound to ctx, or the pool.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

func isUniqueViolation(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

type gormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) repository.RoomRepository {
	return &gormRoomRepository{db: db}
}

// Create runs inside a savepoint so a unique violation leaves an outer transaction usable.
func (r *gormRoomRepository) Create(ctx context.Context, room *entity.Room) error {
	m := newRoomModel(room)
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errors.DuplicateKey("room "+room.Key(), err)
		}
		return errors.Internal("Failed to create room", err)
	}
	room.ID = m.ID
	return nil
}

func (r *gormRoomRepository) GetByID(ctx context.Context, id int64) (*entity.Room, error) {
	var m roomModel
	if err := conn(ctx, r.db).First(&m, id).Error; err != nil {
		return nil, notFoundOr("Room", err)
	}
	return m.toEntity(), nil
}

func (r *gormRoomRepository) FindByPair(ctx context.Context, listingID, a, b int64) (*entity.Room, error) {
	var m roomModel
	err := conn(ctx, r.db).
		Where("listing_id = ? AND user_a_id = ? AND user_b_id = ?", listingID, a, b).
		First(&m).Error
	if err != nil {
		return nil, notFoundOr("Room", err)
	}
	return m.toEntity(), nil
}

func (r *gormRoomRepository) ListByMember(ctx context.Context, memberID int64) ([]*entity.Room, error) {
	var models []roomModel
	err := conn(ctx, r.db).
		Where("user_a_id = ? OR user_b_id = ?", memberID, memberID).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Internal("Failed to list rooms", err)
	}

	rooms := make([]*entity.Room, 0, len(models))
	for i := range models {
		rooms = append(rooms, models[i].toEntity())
	}
	return rooms, nil
}

func (r *gormRoomRepository) RecordMessage(ctx context.Context, roomID int64, at time.Time, unreadSide entity.Side) error {
	updates := map[string]interface{}{"last_message_at": at}
	switch unreadSide {
	case entity.SideA:
		updates["unread_a"] = gorm.Expr("unread_a + 1")
	case entity.SideB:
		updates["unread_b"] = gorm.Expr("unread_b + 1")
	}

	res := conn(ctx, r.db).Model(&roomModel{}).Where("id = ?", roomID).Updates(updates)
	if res.Error != nil {
		return errors.Internal("Failed to update room", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("Room", nil)
	}
	return nil
}

func (r *gormRoomRepository) ClearUnread(ctx context.Context, roomID int64, side entity.Side) error {
	column := "unread_b"
	if side == entity.SideA {
		column = "unread_a"
	}
	err := conn(ctx, r.db).Model(&roomModel{}).Where("id = ?", roomID).Update(column, 0).Error
	if err != nil {
		return errors.Internal("Failed to clear unread counter", err)
	}
	return nil
}

type gormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	m := newMessageModel(msg)
	if err := conn(ctx, r.db).Create(m).Error; err != nil {
		return errors.Internal("Failed to create message", err)
	}
	msg.ID = m.ID
	return nil
}

func (r *gormMessageRepository) ListBefore(ctx context.Context, roomID, beforeID int64, limit int) ([]*entity.Message, error) {
	q := conn(ctx, r.db).Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	return r.find(q.Order("id DESC").Limit(limit))
}

func (r *gormMessageRepository) ListAfter(ctx context.Context, roomID, afterID int64, limit int) ([]*entity.Message, error) {
	q := conn(ctx, r.db).Where("room_id = ? AND id > ?", roomID, afterID)
	return r.find(q.Order("id ASC").Limit(limit))
}

func (r *gormMessageRepository) ListPage(ctx context.Context, roomID int64, limit, offset int) ([]*entity.Message, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&messageModel{}).Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}

	msgs, err := r.find(conn(ctx, r.db).Where("room_id = ?", roomID).Order("id DESC").Offset(offset).Limit(limit))
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (r *gormMessageRepository) Latest(ctx context.Context, roomID int64) (*entity.Message, error) {
	var m messageModel
	err := conn(ctx, r.db).Where("room_id = ?", roomID).Order("id DESC").First(&m).Error
	if err != nil {
		return nil, notFoundOr("Message", err)
	}
	return m.toEntity(), nil
}

func (r *gormMessageRepository) MarkAllRead(ctx context.Context, roomID int64, side entity.Side) (int64, error) {
	column := "read_by_b"
	if side == entity.SideA {
		column = "read_by_a"
	}
	res := conn(ctx, r.db).Model(&messageModel{}).
		Where("room_id = ? AND "+column+" = ?", roomID, false).
		Update(column, true)
	if res.Error != nil {
		return 0, errors.Internal("Failed to mark messages read", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormMessageRepository) find(q *gorm.DB) ([]*entity.Message, error) {
	var models []messageModel
	if err := q.Find(&models).Error; err != nil {
		return nil, errors.Internal("Failed to list messages", err)
	}
	msgs := make([]*entity.Message, 0, len(models))
	for i := range models {
		msgs = append(msgs, models[i].toEntity())
	}
	return msgs, nil
}

type gormTradeRepository struct {
	db *gorm.DB
}

func NewGormTradeRepository(db *gorm.DB) repository.TradeRepository {
	return &gormTradeRepository{db: db}
}

func (r *gormTradeRepository) Create(ctx context.Context, trade *entity.Trade) error {
	m := newTradeModel(trade)
	m.Version = 1
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errors.DuplicateKey("trade for room", err)
		}
		return errors.Internal("Failed to create trade", err)
	}
	trade.ID = m.ID
	trade.Version = m.Version
	return nil
}

func (r *gormTradeRepository) GetByID(ctx context.Context, id int64) (*entity.Trade, error) {
	var m tradeModel
	if err := conn(ctx, r.db).First(&m, id).Error; err != nil {
		return nil, notFoundOr("Trade", err)
	}
	return m.toEntity(), nil
}

// GetByIDForUpdate takes a row lock. SQLite has no row locks; its single writer already serializes.
func (r *gormTradeRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Trade, error) {
	q := conn(ctx, r.db)
	if q.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m tradeModel
	if err := q.First(&m, id).Error; err != nil {
		return nil, notFoundOr("Trade", err)
	}
	return m.toEntity(), nil
}

func (r *gormTradeRepository) GetByRoomID(ctx context.Context, roomID int64) (*entity.Trade, error) {
	var m tradeModel
	if err := conn(ctx, r.db).Where("room_id = ?", roomID).First(&m).Error; err != nil {
		return nil, notFoundOr("Trade", err)
	}
	return m.toEntity(), nil
}

func (r *gormTradeRepository) Update(ctx context.Context, trade *entity.Trade) error {
	res := conn(ctx, r.db).Model(&tradeModel{}).
		Where("id = ? AND version = ?", trade.ID, trade.Version).
		Updates(map[string]interface{}{
			"status":          string(trade.Status),
			"pending_type":    string(trade.PendingType),
			"requested_by":    trade.RequestedBy,
			"requested_at":    trade.RequestedAt,
			"completed_at":    trade.CompletedAt,
			"ended_at":        trade.EndedAt,
			"canceled_reason": trade.CanceledReason,
			"last_action_by":  trade.LastActionBy,
			"updated_at":      trade.UpdatedAt,
			"version":         trade.Version + 1,
		})
	if res.Error != nil {
		return errors.Internal("Failed to update trade", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := conn(ctx, r.db).Model(&tradeModel{}).Where("id = ?", trade.ID).Count(&count).Error; err != nil {
			return errors.Internal("Failed to update trade", err)
		}
		if count == 0 {
			return errors.NotFound("Trade", nil)
		}
		return errors.ConcurrentModification("trade", trade.ID)
	}
	trade.Version++
	return nil
}

func (r *gormTradeRepository) ExistsParticipantInRoom(ctx context.Context, roomID, memberID int64) (bool, error) {
	return r.exists(ctx, "room_id = ? AND (buyer_id = ? OR seller_id = ?)", roomID, memberID, memberID)
}

func (r *gormTradeRepository) ExistsParticipantInTrade(ctx context.Context, tradeID, memberID int64) (bool, error) {
	return r.exists(ctx, "id = ? AND (buyer_id = ? OR seller_id = ?)", tradeID, memberID, memberID)
}

func (r *gormTradeRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var ids []int64
	err := conn(ctx, r.db).Model(&tradeModel{}).Where(query, args...).Limit(1).Pluck("id", &ids).Error
	if err != nil {
		return false, errors.Internal("Failed to check trade participants", err)
	}
	return len(ids) > 0, nil
}

// GormDirectory reads the listings and members tables.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (r *GormDirectory) GetListing(ctx context.Context, id int64) (*entity.Listing, error) {
	var m listingModel
	if err := conn(ctx, r.db).First(&m, id).Error; err != nil {
		return nil, notFoundOr("Listing", err)
	}
	return &entity.Listing{ID: m.ID, SellerID: m.SellerID, Title: m.Title, Status: entity.ListingStatus(m.Status)}, nil
}

func (r *GormDirectory) GetMember(ctx context.Context, id int64) (*entity.Member, error) {
	var m memberModel
	if err := conn(ctx, r.db).First(&m, id).Error; err != nil {
		return nil, notFoundOr("Member", err)
	}
	return &entity.Member{ID: m.ID, ExternalID: m.ExternalID, DisplayName: m.DisplayName}, nil
}

func (r *GormDirectory) GetMemberByExternalID(ctx context.Context, externalID string) (*entity.Member, error) {
	var m memberModel
	if err := conn(ctx, r.db).Where("external_id = ?", externalID).First(&m).Error; err != nil {
		return nil, notFoundOr("Member", err)
	}
	return &entity.Member{ID: m.ID, ExternalID: m.ExternalID, DisplayName: m.DisplayName}, nil
}

// SeedListing and SeedMember fill the read-only tables in development and tests.
func (r *GormDirectory) SeedListing(ctx context.Context, l entity.Listing) error {
	return conn(ctx, r.db).Create(&listingModel{ID: l.ID, SellerID: l.SellerID, Title: l.Title, Status: string(l.Status)}).Error
}

func (r *GormDirectory) SeedMember(ctx context.Context, m entity.Member) error {
	return conn(ctx, r.db).Create(&memberModel{ID: m.ID, ExternalID: m.ExternalID, DisplayName: m.DisplayName}).Error
}

func notFoundOr(resource string, err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound(resource, err)
	}
	return errors.Internal("Failed to load "+strings.ToLower(resource), err)
}
