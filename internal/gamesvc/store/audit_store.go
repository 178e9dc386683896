package store

import (
	"context"
	"time"

	"github.com/avvvet/sweeps-services/internal/gamesvc/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditCollection = "rng_audit"

// auditRetention keeps derivation records long enough for any fairness
// dispute; mongo's TTL index purges older documents.
const auditRetention = 180 * 24 * time.Hour

// AuditStore appends RNG derivation records to an append-only mongo
// collection. Callers treat writes as best effort.
type AuditStore struct {
	coll *mongo.Collection
}

func NewAuditStore(db *mongo.Database) *AuditStore {
	return &AuditStore{coll: db.Collection(auditCollection)}
}

func (s *AuditStore) Append(ctx context.Context, entry models.RNGAuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.ExpiresAt = entry.CreatedAt.Add(auditRetention)
	_, err := s.coll.InsertOne(ctx, entry)
	return err
}

// ListByRound returns the derivation trail of one round, oldest first.
func (s *AuditStore) ListByRound(ctx context.Context, roundID int64) ([]models.RNGAuditLog, error) {
	cur, err := s.coll.Find(ctx, bson.M{"round_id": roundID},
		options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var logs []models.RNGAuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
