package models

import "time"

// RNGAuditLog is the immutable record of one RNG derivation, stored in
// the mongo audit collection. Writes are best effort and never block a draw.
type RNGAuditLog struct {
	GameID         int64     `bson:"game_id" json:"game_id"`
	RoundID        int64     `bson:"round_id" json:"round_id"`
	ServerSeedHash string    `bson:"server_seed_hash" json:"server_seed_hash"`
	ClientSeed     string    `bson:"client_seed" json:"client_seed"`
	Nonce          int       `bson:"nonce" json:"nonce"`
	Range          int64     `bson:"range" json:"range"`
	Value          int64     `bson:"value" json:"value"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt      time.Time `bson:"expires_at,omitempty" json:"-"` // TTL housekeeping
}
