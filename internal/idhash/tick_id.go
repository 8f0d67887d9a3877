package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTickID identifies one price sample so replays of the same
// observation collapse to a single row.
// Formula: SHA256(mint|source|timestamp_ms)
func ComputeTickID(mint, source string, timestampMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, source, timestampMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
