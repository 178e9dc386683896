package rng

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
)

const seedBytes = 32 // 256 bits of entropy

// GenerateSeed returns a fresh server seed as a hex string.
func GenerateSeed() (string, error) {
	buf := make([]byte, seedBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashSeed returns the SHA-256 commitment of a server seed. The hash is
// published before entries open so the house cannot swap seeds afterwards.
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// DeriveOutcome maps (serverSeed, clientSeed, nonce) to an integer in
// [0, max). SHA-256 over "server:client:nonce", first 4 bytes as a
// big-endian uint32, reduced modulo max. The modulo bias is negligible
// at realistic ranges and is part of the published contract.
func DeriveOutcome(serverSeed, clientSeed string, nonce int, max int64) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("derive outcome: range must be positive, got %d", max)
	}
	msg := serverSeed + ":" + clientSeed + ":" + strconv.Itoa(nonce)
	sum := sha256.Sum256([]byte(msg))
	v := binary.BigEndian.Uint32(sum[:4])
	return int64(v) % max, nil
}

// DeriveMany derives n independent values by varying the nonce 0..n-1.
func DeriveMany(serverSeed, clientSeed string, n int, max int64) ([]int64, error) {
	values := make([]int64, 0, n)
	for nonce := 0; nonce < n; nonce++ {
		v, err := DeriveOutcome(serverSeed, clientSeed, nonce, max)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Verify re-derives the outcome and compares it with the claimed value.
// This is the player-facing fairness contract; its semantics must not change.
func Verify(serverSeed, clientSeed string, nonce int, max int64, claimed int64) bool {
	v, err := DeriveOutcome(serverSeed, clientSeed, nonce, max)
	if err != nil {
		return false
	}
	return v == claimed
}
