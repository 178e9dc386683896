package models

import "time"

// Result is the provably-fair artifact of one draw. Once stored the
// server seed is public and any third party can re-derive the value.
type Result struct {
	ID             int64     `json:"id"` // Primary key
	RoundID        int64     `json:"round_id"`
	GameID         int64     `json:"game_id"`
	ServerSeed     string    `json:"server_seed"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Nonce          int       `json:"nonce"`
	Range          int64     `json:"range"`
	Value          int64     `json:"value"`
	VerifyCode     string    `json:"verify_code"` // handle players paste into the verifier
	WinnerCount    int       `json:"winner_count"`
	CreatedAt      time.Time `json:"created_at"`
}
