package broker

import (
	"encoding/json"
	"time"

	"github.com/avvvet/sweeps-services/internal/comm"
	"github.com/avvvet/sweeps-services/internal/gamesvc/models"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Broadcaster fans settlement events out to round- and user-scoped NATS
// subjects. Delivery is best effort and at most once: a failed publish is
// logged and play continues, round and payout state stay queryable through
// the engines regardless.
type Broadcaster struct {
	Conn *nats.Conn
}

func NewBroadcaster(nc *nats.Conn) *Broadcaster {
	return &Broadcaster{Conn: nc}
}

// Publish sends an event on the round channel, and additionally on the
// user channel when the event carries a user id.
func (b *Broadcaster) Publish(event comm.Event) {
	if b == nil || b.Conn == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("broadcast marshal %s for round %d: %v", event.Kind, event.RoundID, err)
		return
	}

	if err := b.Conn.Publish(comm.RoundSubject(event.RoundID), payload); err != nil {
		log.Errorf("broadcast %s to round %d: %v", event.Kind, event.RoundID, err)
	}
	if event.UserID != 0 {
		if err := b.Conn.Publish(comm.UserSubject(event.UserID), payload); err != nil {
			log.Errorf("broadcast %s to user %d: %v", event.Kind, event.UserID, err)
		}
	}
}

func (b *Broadcaster) PublishEntrySubmitted(round *models.Round, entry *models.Entry) {
	data, err := json.Marshal(comm.EntrySubmitted{
		EntryID:    entry.ID,
		EntryCount: round.EntryCount,
		PrizePool:  round.PrizePool.StringFixed(2),
	})
	if err != nil {
		log.Errorf("marshal entry_submitted for round %d: %v", round.ID, err)
		return
	}
	b.Publish(comm.Event{
		Kind:    comm.KindEntrySubmitted,
		GameID:  round.GameID,
		RoundID: round.ID,
		Data:    data,
	})
}

func (b *Broadcaster) PublishRoundStatus(round *models.Round) {
	data, err := json.Marshal(comm.RoundStatus{
		Status:     round.Status,
		EntryCount: round.EntryCount,
		PrizePool:  round.PrizePool.StringFixed(2),
	})
	if err != nil {
		log.Errorf("marshal round_status for round %d: %v", round.ID, err)
		return
	}
	b.Publish(comm.Event{
		Kind:    comm.KindRoundStatus,
		GameID:  round.GameID,
		RoundID: round.ID,
		Data:    data,
	})
}

// PublishWinnerAnnounced goes to the round channel only; the amount and win
// type are public, stake details are not.
func (b *Broadcaster) PublishWinnerAnnounced(gameID, roundID, userID int64, winType string, amount decimal.Decimal, currency string) {
	data, err := json.Marshal(comm.WinnerAnnounced{
		UserID:   userID,
		WinType:  winType,
		Amount:   amount.StringFixed(2),
		Currency: currency,
	})
	if err != nil {
		log.Errorf("marshal winner_announced for round %d: %v", roundID, err)
		return
	}
	b.Publish(comm.Event{
		Kind:    comm.KindWinnerAnnounced,
		GameID:  gameID,
		RoundID: roundID,
		Data:    data,
	})
}

// PublishPayoutProcessed carries the personal notification to the winner's
// user channel alongside the round channel copy.
func (b *Broadcaster) PublishPayoutProcessed(gameID int64, p *models.Payout) {
	data, err := json.Marshal(comm.PayoutProcessed{
		PayoutID: p.ID,
		WinType:  p.WinType,
		AmountGC: p.AmountGC.StringFixed(2),
		AmountSC: p.AmountSC.StringFixed(2),
	})
	if err != nil {
		log.Errorf("marshal payout_processed for payout %d: %v", p.ID, err)
		return
	}
	b.Publish(comm.Event{
		Kind:    comm.KindPayoutProcessed,
		GameID:  gameID,
		RoundID: p.RoundID,
		UserID:  p.UserID,
		Data:    data,
	})
}
