package broker

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/avvvet/sweeps-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Deliverer is the hub surface the broker fans events into.
type Deliverer interface {
	DeliverRound(roundID int64, payload []byte)
	DeliverUser(userID int64, payload []byte)
}

// Broker bridges the broadcaster's NATS subjects to websocket channels.
// It is downstream only: nothing here can affect round or payout state.
type Broker struct {
	Conn *nats.Conn
	hub  Deliverer
}

func NewBroker(conn *nats.Conn, hub Deliverer) *Broker {
	return &Broker{Conn: conn, hub: hub}
}

// SubscribeEvents attaches to the round and user subject trees.
func (b *Broker) SubscribeEvents() ([]*nats.Subscription, error) {
	roundSub, err := b.Conn.Subscribe(comm.RoundSubjectWildcard, b.handleRoundEvent)
	if err != nil {
		return nil, err
	}
	userSub, err := b.Conn.Subscribe(comm.UserSubjectWildcard, b.handleUserEvent)
	if err != nil {
		roundSub.Unsubscribe()
		return nil, err
	}
	return []*nats.Subscription{roundSub, userSub}, nil
}

func (b *Broker) handleRoundEvent(msg *nats.Msg) {
	roundID, ok := subjectID(msg.Subject)
	if !ok {
		log.Errorf("unparseable round subject: %s", msg.Subject)
		return
	}
	if !validEvent(msg.Data) {
		return
	}
	b.hub.DeliverRound(roundID, msg.Data)
}

func (b *Broker) handleUserEvent(msg *nats.Msg) {
	userID, ok := subjectID(msg.Subject)
	if !ok {
		log.Errorf("unparseable user subject: %s", msg.Subject)
		return
	}
	if !validEvent(msg.Data) {
		return
	}
	b.hub.DeliverUser(userID, msg.Data)
}

// subjectID pulls the numeric tail of "sweeps.round.123" / "sweeps.user.42".
func subjectID(subject string) (int64, bool) {
	parts := strings.Split(subject, ".")
	if len(parts) != 3 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func validEvent(data []byte) bool {
	var event comm.Event
	if err := json.Unmarshal(data, &event); err != nil {
		log.Errorf("invalid event payload: %v", err)
		return false
	}
	return true
}
