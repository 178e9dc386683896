package comm

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event kinds fanned out by the broadcaster.
const (
	KindEntrySubmitted  = "entry_submitted"
	KindRoundStatus     = "round_status"
	KindWinnerAnnounced = "winner_announced"
	KindPayoutProcessed = "payout_processed"
)

// NATS subjects. Round channels are public; user channels only reach
// sockets that bound an identity first.
func RoundSubject(roundID int64) string {
	return fmt.Sprintf("sweeps.round.%d", roundID)
}

func UserSubject(userID int64) string {
	return fmt.Sprintf("sweeps.user.%d", userID)
}

const (
	RoundSubjectWildcard = "sweeps.round.>"
	UserSubjectWildcard  = "sweeps.user.>"
)

// Event is the envelope published on round and user subjects.
type Event struct {
	Kind      string          `json:"kind"`
	GameID    int64           `json:"game_id"`
	RoundID   int64           `json:"round_id"`
	UserID    int64           `json:"user_id,omitempty"` // set on user-channel events only
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"ts"`
}

type EntrySubmitted struct {
	EntryID    int64  `json:"entry_id"`
	EntryCount int    `json:"entry_count"`
	PrizePool  string `json:"prize_pool"`
}

type RoundStatus struct {
	Status     string `json:"status"`
	EntryCount int    `json:"entry_count"`
	PrizePool  string `json:"prize_pool"`
}

// WinnerAnnounced is public: prize amount and type only, no stake details.
type WinnerAnnounced struct {
	UserID   int64  `json:"user_id"`
	WinType  string `json:"win_type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type PayoutProcessed struct {
	PayoutID int64  `json:"payout_id"`
	WinType  string `json:"win_type"`
	AmountGC string `json:"amount_gc"`
	AmountSC string `json:"amount_sc"`
}

// WSMessage is the socket-service client protocol envelope.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "bind", "subscribe_round"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

// Client-to-socket message payloads.
type BindRequest struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

type SubscribeRound struct {
	GameID  int64 `json:"game_id"`
	RoundID int64 `json:"round_id"`
}

type UnsubscribeGame struct {
	GameID int64 `json:"game_id"`
}
