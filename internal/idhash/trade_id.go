package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(mint|trade_sequence|entry_time_ms)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(mint string, sequence int, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%d|%d", mint, sequence, entryTimeMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
