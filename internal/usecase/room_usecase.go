package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"tradezone/internal/domain/entity"
	"tradezone/internal/domain/repository"
	"tradezone/pkg/errors"
	"tradezone/pkg/logger"
)

const previewLength = 80

type RoomUseCase struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	tradeRepo   repository.TradeRepository
	listings    repository.ListingCatalog
	members     repository.MemberDirectory

	inflight singleflight.Group
	now      Clock
}

func NewRoomUseCase(
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	tradeRepo repository.TradeRepository,
	listings repository.ListingCatalog,
	members repository.MemberDirectory,
) *RoomUseCase {
	return &RoomUseCase{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		tradeRepo:   tradeRepo,
		listings:    listings,
		members:     members,
		now:         utcNow,
	}
}

type NegotiationResponse struct {
	Room  *entity.Room  `json:"room"`
	Trade *entity.Trade `json:"trade"`
}

type RoomSummary struct {
	RoomID        int64              `json:"room_id"`
	ListingID     int64              `json:"listing_id"`
	TradeID       *int64             `json:"trade_id,omitempty"`
	TradeStatus   entity.TradeStatus `json:"trade_status,omitempty"`
	PendingType   entity.PendingType `json:"pending_type,omitempty"`
	PartnerID     int64              `json:"partner_id"`
	PartnerName   string             `json:"partner_name"`
	LastMessage   string             `json:"last_message,omitempty"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	Unread        int                `json:"unread"`
}

// GetOrCreate returns the single room for listingID and the unordered pair {u1, u2}.
// Concurrent callers converge on one row: a lost insert race re-reads the winner.
func (uc *RoomUseCase) GetOrCreate(ctx context.Context, listingID, u1, u2 int64) (*entity.Room, error) {
	if err := entity.ValidatePair(listingID, u1, u2); err != nil {
		return nil, err
	}
	if _, err := uc.listings.GetListing(ctx, listingID); err != nil {
		return nil, err
	}

	a, b := entity.NormalizePair(u1, u2)
	// The shared call outlives any single caller; each caller still honors its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := uc.inflight.DoChan(entity.RoomKey(listingID, a, b), func() (interface{}, error) {
		return uc.findOrInsert(shared, listingID, a, b)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		room := *res.Val.(*entity.Room)
		return &room, nil
	}
}

func (uc *RoomUseCase) findOrInsert(ctx context.Context, listingID, a, b int64) (*entity.Room, error) {
	room, err := uc.roomRepo.FindByPair(ctx, listingID, a, b)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}

	room, err = entity.NewRoom(listingID, a, b, uc.now())
	if err != nil {
		return nil, err
	}
	err = uc.roomRepo.Create(ctx, room)
	if errors.Is(err, errors.CodeDuplicateKey) {
		logger.Debug("room %s created concurrently, re-reading", room.Key())
		return uc.roomRepo.FindByPair(ctx, listingID, a, b)
	}
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64(logger.FieldRoomID, room.ID).Int64("listing_id", listingID).Msg("room created")
	return room, nil
}

// OpenNegotiation resolves the buyer's room with the listing's seller and makes sure it has a trade.
func (uc *RoomUseCase) OpenNegotiation(ctx context.Context, buyerID, listingID int64) (*NegotiationResponse, error) {
	listing, err := uc.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, errors.InvalidArgument("You cannot negotiate on your own listing")
	}

	room, err := uc.GetOrCreate(ctx, listing.ID, buyerID, listing.SellerID)
	if err != nil {
		return nil, err
	}

	trade, err := uc.ensureTrade(ctx, room, buyerID, listing.SellerID)
	if err != nil {
		return nil, err
	}
	return &NegotiationResponse{Room: room, Trade: trade}, nil
}

func (uc *RoomUseCase) ensureTrade(ctx context.Context, room *entity.Room, buyerID, sellerID int64) (*entity.Trade, error) {
	trade, err := uc.tradeRepo.GetByRoomID(ctx, room.ID)
	if err == nil {
		return trade, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}

	trade, err = entity.NewTrade(room.ID, room.ListingID, buyerID, sellerID, uc.now())
	if err != nil {
		return nil, err
	}
	err = uc.tradeRepo.Create(ctx, trade)
	if errors.Is(err, errors.CodeDuplicateKey) {
		return uc.tradeRepo.GetByRoomID(ctx, room.ID)
	}
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64(logger.FieldTradeID, trade.ID).Int64(logger.FieldRoomID, room.ID).Msg("trade opened")
	return trade, nil
}

// ListMyRooms returns memberID's rooms, most recently active first.
func (uc *RoomUseCase) ListMyRooms(ctx context.Context, memberID int64) ([]*RoomSummary, error) {
	rooms, err := uc.roomRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		side, ok := room.SideOf(memberID)
		if !ok {
			continue
		}
		partnerID := room.Partner(memberID)

		summary := &RoomSummary{
			RoomID:        room.ID,
			ListingID:     room.ListingID,
			PartnerID:     partnerID,
			PartnerName:   displayName(ctx, uc.members, partnerID),
			LastMessageAt: room.LastMessageAt,
			Unread:        room.UnreadFor(side),
		}

		latest, err := uc.messageRepo.Latest(ctx, room.ID)
		switch {
		case err == nil:
			summary.LastMessage = latest.Preview(previewLength)
		case !errors.Is(err, errors.CodeNotFound):
			return nil, err
		}

		trade, err := uc.tradeRepo.GetByRoomID(ctx, room.ID)
		switch {
		case err == nil:
			id := trade.ID
			summary.TradeID = &id
			summary.TradeStatus = trade.Status
			summary.PendingType = trade.PendingType
		case !errors.Is(err, errors.CodeNotFound):
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		ti, tj := summaries[i].LastMessageAt, summaries[j].LastMessageAt
		switch {
		case ti == nil && tj == nil:
			return summaries[i].RoomID > summaries[j].RoomID
		case ti == nil:
			return false
		case tj == nil:
			return true
		case ti.Equal(*tj):
			return summaries[i].RoomID > summaries[j].RoomID
		}
		return ti.After(*tj)
	})
	return summaries, nil
}

// displayName never fails: an unknown member is shown by id.
func displayName(ctx context.Context, members repository.MemberDirectory, memberID int64) string {
	member, err := members.GetMember(ctx, memberID)
	if err != nil || member.DisplayName == "" {
		if err != nil && !errors.Is(err, errors.CodeNotFound) {
			logger.Warn("failed to resolve member %d: %v", memberID, err)
		}
		return fmt.Sprintf("Member %d", memberID)
	}
	return member.DisplayName
}
