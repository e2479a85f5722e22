// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ComputeBatchID computes a deterministic batch_id.
// Formula: SHA256(category|worker_id|taken_at_ms|ticker,ticker,...)
// Returns the base58-encoded hash (43 or 44 characters).
func ComputeBatchID(category, workerID string, takenAtMs int64, tickers []string) string {
	data := fmt.Sprintf("%s|%s|%d|%s",
		category,
		workerID,
		takenAtMs,
		strings.Join(tickers, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ComputeGapID computes a deterministic id for a gap.
// Formula: SHA256(symbol|band|start_unix_s)
// Returns the first 16 bytes base58-encoded.
func ComputeGapID(symbol, band string, startUnix int64) string {
	data := fmt.Sprintf("%s|%s|%d", symbol, band, startUnix)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}
