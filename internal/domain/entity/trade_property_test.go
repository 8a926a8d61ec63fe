package entity

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	apperrors "tradezone/pkg/errors"
)

// legal mirrors the transition table for the given trade and actor.
func legal(trade *Trade, move Transition, actor int64) (bool, string) {
	if trade.IsTerminal() {
		return false, apperrors.CodeIllegalStateTransition
	}
	requester := int64(0)
	if trade.RequestedBy != nil {
		requester = *trade.RequestedBy
	}
	switch move {
	case TransitionRequestComplete, TransitionRequestCancel:
		if trade.PendingType != PendingNone {
			return false, apperrors.CodeIllegalStateTransition
		}
	case TransitionApproveComplete, TransitionRejectComplete:
		if trade.Status != TradeStatusCompleteRequested || trade.PendingType != PendingComplete {
			return false, apperrors.CodeIllegalStateTransition
		}
		if actor == requester {
			return false, apperrors.CodeSelfApprovalForbidden
		}
	case TransitionApproveCancel, TransitionRejectCancel:
		if trade.Status != TradeStatusPending || trade.PendingType != PendingCancel {
			return false, apperrors.CodeIllegalStateTransition
		}
		if actor == requester {
			return false, apperrors.CodeSelfApprovalForbidden
		}
	}
	return true, ""
}

func TestProperty_TransitionsFollowTable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		trade, err := NewTrade(7, 42, testBuyer, testSeller, testNow)
		if err != nil {
			t.Fatalf("new trade: %v", err)
		}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		now := testNow
		for i := 0; i < steps; i++ {
			move := rapid.SampledFrom(AllTransitions).Draw(t, "move")
			actor := rapid.SampledFrom([]int64{testBuyer, testSeller}).Draw(t, "actor")
			now = now.Add(time.Second)

			wantOK, wantCode := legal(trade, move, actor)
			before := trade.Clone()
			err := trade.Apply(move, actor, "reason", now)

			if wantOK && err != nil {
				t.Fatalf("step %d: %s by %d should succeed from %s/%s: %v", i, move, actor, before.Status, before.PendingType, err)
			}
			if !wantOK {
				if err == nil {
					t.Fatalf("step %d: %s by %d should fail from %s/%s", i, move, actor, before.Status, before.PendingType)
				}
				if code := apperrors.CodeOf(err); code != wantCode {
					t.Fatalf("step %d: want %s, got %s", i, wantCode, code)
				}
				continue
			}

			if trade.LastActionBy == nil || *trade.LastActionBy != actor {
				t.Fatalf("step %d: lastActionBy not recorded", i)
			}
			if (trade.Status == TradeStatusCompleteRequested) != (trade.PendingType == PendingComplete) {
				t.Fatalf("step %d: status %s inconsistent with pending %s", i, trade.Status, trade.PendingType)
			}
			if trade.PendingType == PendingCancel && trade.Status != TradeStatusPending {
				t.Fatalf("step %d: cancel request changed status to %s", i, trade.Status)
			}
			if (trade.PendingType == PendingNone) != (trade.RequestedBy == nil && trade.RequestedAt == nil) {
				t.Fatalf("step %d: request data %v/%v out of step with pending %s", i, trade.RequestedBy, trade.RequestedAt, trade.PendingType)
			}
		}
	})
}

func TestProperty_TerminalTradesRejectEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		trade, _ := NewTrade(7, 42, testBuyer, testSeller, testNow)
		requester := rapid.SampledFrom([]int64{testBuyer, testSeller}).Draw(t, "requester")
		other := testBuyer + testSeller - requester

		if rapid.Bool().Draw(t, "complete") {
			_ = trade.RequestComplete(requester, testNow)
			_ = trade.ApproveComplete(other, testNow)
		} else {
			_ = trade.RequestCancel(requester, "", testNow)
			_ = trade.ApproveCancel(other, testNow)
		}
		if !trade.IsTerminal() {
			t.Fatalf("expected terminal trade, got %s", trade.Status)
		}

		for _, move := range AllTransitions {
			actor := rapid.SampledFrom([]int64{testBuyer, testSeller}).Draw(t, "actor")
			if err := trade.Apply(move, actor, "", testNow); !apperrors.Is(err, apperrors.CodeIllegalStateTransition) {
				t.Fatalf("%s on %s: want illegal transition, got %v", move, trade.Status, err)
			}
		}
	})
}
