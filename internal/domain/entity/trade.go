package entity

import (
	"fmt"
	"time"

	apperrors "tradezone/pkg/errors"
)

type TradeStatus string

const (
	TradeStatusPending           TradeStatus = "PENDING"
	TradeStatusCompleteRequested TradeStatus = "COMPLETE_REQUESTED"
	TradeStatusCompleted         TradeStatus = "COMPLETED"
	TradeStatusEnded             TradeStatus = "ENDED"
)

// PendingType marks which request, if any, awaits the other participant.
type PendingType string

const (
	PendingNone     PendingType = "NONE"
	PendingComplete PendingType = "COMPLETE"
	PendingCancel   PendingType = "CANCEL"
)

// Transition names one of the six negotiation moves.
type Transition string

const (
	TransitionRequestComplete Transition = "REQUEST_COMPLETE"
	TransitionApproveComplete Transition = "APPROVE_COMPLETE"
	TransitionRejectComplete  Transition = "REJECT_COMPLETE"
	TransitionRequestCancel   Transition = "REQUEST_CANCEL"
	TransitionApproveCancel   Transition = "APPROVE_CANCEL"
	TransitionRejectCancel    Transition = "REJECT_CANCEL"
)

var AllTransitions = []Transition{
	TransitionRequestComplete,
	TransitionApproveComplete,
	TransitionRejectComplete,
	TransitionRequestCancel,
	TransitionApproveCancel,
	TransitionRejectCancel,
}

func (t Transition) IsRequest() bool {
	return t == TransitionRequestComplete || t == TransitionRequestCancel
}

// Trade is the negotiation bound 1:1 to a room.
// Version is owned by the repository: it is compared and bumped on every update.
type Trade struct {
	ID             int64       `json:"id" firestore:"id"`
	RoomID         int64       `json:"room_id" firestore:"roomId"`
	ListingID      int64       `json:"listing_id" firestore:"listingId"`
	BuyerID        int64       `json:"buyer_id" firestore:"buyerId"`
	SellerID       int64       `json:"seller_id" firestore:"sellerId"`
	Status         TradeStatus `json:"status" firestore:"status"`
	PendingType    PendingType `json:"pending_type" firestore:"pendingType"`
	RequestedBy    *int64      `json:"requested_by,omitempty" firestore:"requestedBy"`
	RequestedAt    *time.Time  `json:"requested_at,omitempty" firestore:"requestedAt"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty" firestore:"completedAt"`
	EndedAt        *time.Time  `json:"ended_at,omitempty" firestore:"endedAt"`
	CanceledReason string      `json:"canceled_reason,omitempty" firestore:"canceledReason"`
	LastActionBy   *int64      `json:"last_action_by,omitempty" firestore:"lastActionBy"`
	Version        int64       `json:"version" firestore:"version"`
	CreatedAt      time.Time   `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time   `json:"updated_at" firestore:"updatedAt"`
}

func NewTrade(roomID, listingID, buyerID, sellerID int64, now time.Time) (*Trade, error) {
	if buyerID == sellerID {
		return nil, apperrors.InvalidArgument("buyer and seller must differ")
	}
	return &Trade{
		RoomID:      roomID,
		ListingID:   listingID,
		BuyerID:     buyerID,
		SellerID:    sellerID,
		Status:      TradeStatusPending,
		PendingType: PendingNone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (t *Trade) IsTerminal() bool {
	return t.Status == TradeStatusCompleted || t.Status == TradeStatusEnded
}

func (t *Trade) IsPending() bool {
	return t.PendingType != PendingNone
}

func (t *Trade) IsParticipant(memberID int64) bool {
	return memberID == t.BuyerID || memberID == t.SellerID
}

func (t *Trade) Clone() *Trade {
	c := *t
	c.RequestedBy = cloneID(t.RequestedBy)
	c.LastActionBy = cloneID(t.LastActionBy)
	c.RequestedAt = cloneTime(t.RequestedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.EndedAt = cloneTime(t.EndedAt)
	return &c
}

// Apply runs the named transition. Reason is only read by TransitionRequestCancel.
func (t *Trade) Apply(tr Transition, actor int64, reason string, now time.Time) error {
	switch tr {
	case TransitionRequestComplete:
		return t.RequestComplete(actor, now)
	case TransitionApproveComplete:
		return t.ApproveComplete(actor, now)
	case TransitionRejectComplete:
		return t.RejectComplete(actor, now)
	case TransitionRequestCancel:
		return t.RequestCancel(actor, reason, now)
	case TransitionApproveCancel:
		return t.ApproveCancel(actor, now)
	case TransitionRejectCancel:
		return t.RejectCancel(actor, now)
	}
	return apperrors.InvalidArgument(fmt.Sprintf("unknown transition %q", tr))
}

func (t *Trade) RequestComplete(actor int64, now time.Time) error {
	if err := t.requireOpenForRequest(); err != nil {
		return err
	}
	t.Status = TradeStatusCompleteRequested
	t.PendingType = PendingComplete
	t.RequestedBy = &actor
	t.RequestedAt = &now
	t.touch(actor, now)
	return nil
}

func (t *Trade) ApproveComplete(actor int64, now time.Time) error {
	if err := t.requireCounterparty(TradeStatusCompleteRequested, PendingComplete, actor); err != nil {
		return err
	}
	t.Status = TradeStatusCompleted
	t.PendingType = PendingNone
	t.CompletedAt = &now
	t.RequestedBy = nil
	t.RequestedAt = nil
	t.touch(actor, now)
	return nil
}

func (t *Trade) RejectComplete(actor int64, now time.Time) error {
	if err := t.requireCounterparty(TradeStatusCompleteRequested, PendingComplete, actor); err != nil {
		return err
	}
	t.Status = TradeStatusPending
	t.PendingType = PendingNone
	t.RequestedBy = nil
	t.RequestedAt = nil
	t.touch(actor, now)
	return nil
}

// RequestCancel leaves Status at PENDING; the request lives in PendingType.
func (t *Trade) RequestCancel(actor int64, reason string, now time.Time) error {
	if err := t.requireOpenForRequest(); err != nil {
		return err
	}
	t.PendingType = PendingCancel
	t.CanceledReason = reason
	t.RequestedBy = &actor
	t.RequestedAt = &now
	t.touch(actor, now)
	return nil
}

func (t *Trade) ApproveCancel(actor int64, now time.Time) error {
	if err := t.requireCounterparty(TradeStatusPending, PendingCancel, actor); err != nil {
		return err
	}
	t.Status = TradeStatusEnded
	t.PendingType = PendingNone
	t.EndedAt = &now
	t.RequestedBy = nil
	t.RequestedAt = nil
	t.touch(actor, now)
	return nil
}

func (t *Trade) RejectCancel(actor int64, now time.Time) error {
	if err := t.requireCounterparty(TradeStatusPending, PendingCancel, actor); err != nil {
		return err
	}
	t.PendingType = PendingNone
	t.CanceledReason = ""
	t.RequestedBy = nil
	t.RequestedAt = nil
	t.touch(actor, now)
	return nil
}

// At returns the timestamp a signal for tr should carry.
func (t *Trade) At(tr Transition, fallback time.Time) time.Time {
	var at *time.Time
	switch tr {
	case TransitionRequestComplete, TransitionRequestCancel:
		at = t.RequestedAt
	case TransitionApproveComplete:
		at = t.CompletedAt
	case TransitionApproveCancel:
		at = t.EndedAt
	}
	if at == nil {
		return fallback
	}
	return *at
}

func (t *Trade) requireOpenForRequest() error {
	if t.IsTerminal() {
		return apperrors.IllegalStateTransition(fmt.Sprintf("trade %d is already %s", t.ID, t.Status))
	}
	if t.IsPending() {
		return apperrors.IllegalStateTransition(fmt.Sprintf("trade %d already has a pending %s request", t.ID, t.PendingType))
	}
	return nil
}

func (t *Trade) requireCounterparty(status TradeStatus, pending PendingType, actor int64) error {
	if t.Status != status || t.PendingType != pending {
		return apperrors.IllegalStateTransition(fmt.Sprintf("trade %d has no pending %s request (status %s, pending %s)", t.ID, pending, t.Status, t.PendingType))
	}
	if t.RequestedBy != nil && *t.RequestedBy == actor {
		return apperrors.SelfApprovalForbidden("the requester cannot answer their own request")
	}
	return nil
}

func (t *Trade) touch(actor int64, now time.Time) {
	t.LastActionBy = &actor
	t.UpdatedAt = now
}

func cloneID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
