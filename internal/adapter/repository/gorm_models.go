package repository

import (
	"time"

	"tradezone/internal/domain/entity"
)

type roomModel struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"`
	ListingID     int64      `gorm:"not null;uniqueIndex:ux_rooms_listing_pair,priority:1"`
	UserAID       int64      `gorm:"column:user_a_id;not null;uniqueIndex:ux_rooms_listing_pair,priority:2;index:ix_rooms_user_a"`
	UserBID       int64      `gorm:"column:user_b_id;not null;uniqueIndex:ux_rooms_listing_pair,priority:3;index:ix_rooms_user_b"`
	Status        string     `gorm:"size:16;not null"`
	CreatedAt     time.Time  `gorm:"not null"`
	LastMessageAt *time.Time `gorm:"index"`
	UnreadA       int        `gorm:"column:unread_a;not null;default:0"`
	UnreadB       int        `gorm:"column:unread_b;not null;default:0"`
}

func (roomModel) TableName() string { return "rooms" }

func newRoomModel(r *entity.Room) *roomModel {
	return &roomModel{
		ID:            r.ID,
		ListingID:     r.ListingID,
		UserAID:       r.UserAID,
		UserBID:       r.UserBID,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		LastMessageAt: r.LastMessageAt,
		UnreadA:       r.UnreadA,
		UnreadB:       r.UnreadB,
	}
}

func (m *roomModel) toEntity() *entity.Room {
	return &entity.Room{
		ID:            m.ID,
		ListingID:     m.ListingID,
		UserAID:       m.UserAID,
		UserBID:       m.UserBID,
		Status:        entity.RoomStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		LastMessageAt: m.LastMessageAt,
		UnreadA:       m.UnreadA,
		UnreadB:       m.UnreadB,
	}
}

type messageModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;index:ix_messages_room_id_id,priority:2"`
	RoomID    int64     `gorm:"not null;index:ix_messages_room_id_id,priority:1"`
	SenderID  *int64    `gorm:"index"`
	Content   string    `gorm:"type:text;not null"`
	Type      string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"not null"`
	Delivered bool      `gorm:"not null;default:false"`
	ReadByA   bool      `gorm:"column:read_by_a;not null;default:false"`
	ReadByB   bool      `gorm:"column:read_by_b;not null;default:false"`
}

func (messageModel) TableName() string { return "messages" }

func newMessageModel(m *entity.Message) *messageModel {
	return &messageModel{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      string(m.Type),
		CreatedAt: m.CreatedAt,
		Delivered: m.Delivered,
		ReadByA:   m.ReadByA,
		ReadByB:   m.ReadByB,
	}
}

func (m *messageModel) toEntity() *entity.Message {
	return &entity.Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      entity.MessageType(m.Type),
		CreatedAt: m.CreatedAt,
		Delivered: m.Delivered,
		ReadByA:   m.ReadByA,
		ReadByB:   m.ReadByB,
	}
}

type tradeModel struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	RoomID         int64      `gorm:"not null;uniqueIndex:ux_trades_room"`
	ListingID      int64      `gorm:"not null;index"`
	BuyerID        int64      `gorm:"not null;index"`
	SellerID       int64      `gorm:"not null;index"`
	Status         string     `gorm:"size:24;not null;index"`
	PendingType    string     `gorm:"size:16;not null;index"`
	RequestedBy    *int64
	RequestedAt    *time.Time
	CompletedAt    *time.Time
	EndedAt        *time.Time
	CanceledReason string `gorm:"size:500"`
	LastActionBy   *int64
	Version        int64     `gorm:"not null;default:1"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (tradeModel) TableName() string { return "trades" }

func newTradeModel(t *entity.Trade) *tradeModel {
	return &tradeModel{
		ID:             t.ID,
		RoomID:         t.RoomID,
		ListingID:      t.ListingID,
		BuyerID:        t.BuyerID,
		SellerID:       t.SellerID,
		Status:         string(t.Status),
		PendingType:    string(t.PendingType),
		RequestedBy:    t.RequestedBy,
		RequestedAt:    t.RequestedAt,
		CompletedAt:    t.CompletedAt,
		EndedAt:        t.EndedAt,
		CanceledReason: t.CanceledReason,
		LastActionBy:   t.LastActionBy,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (m *tradeModel) toEntity() *entity.Trade {
	return &entity.Trade{
		ID:             m.ID,
		RoomID:         m.RoomID,
		ListingID:      m.ListingID,
		BuyerID:        m.BuyerID,
		SellerID:       m.SellerID,
		Status:         entity.TradeStatus(m.Status),
		PendingType:    entity.PendingType(m.PendingType),
		RequestedBy:    m.RequestedBy,
		RequestedAt:    m.RequestedAt,
		CompletedAt:    m.CompletedAt,
		EndedAt:        m.EndedAt,
		CanceledReason: m.CanceledReason,
		LastActionBy:   m.LastActionBy,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// listingModel and memberModel are read-only views of tables owned by other services.
type listingModel struct {
	ID       int64  `gorm:"primaryKey"`
	SellerID int64  `gorm:"not null;index"`
	Title    string `gorm:"size:200"`
	Status   string `gorm:"size:16"`
}

func (listingModel) TableName() string { return "listings" }

type memberModel struct {
	ID          int64  `gorm:"primaryKey"`
	ExternalID  string `gorm:"size:128;index"`
	DisplayName string `gorm:"size:100"`
}

func (memberModel) TableName() string { return "members" }

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&roomModel{}, &messageModel{}, &tradeModel{}, &listingModel{}, &memberModel{}}
}
