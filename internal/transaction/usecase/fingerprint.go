package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fingerprint computes the deterministic deduplication key for a transaction:
// sha256 over "userId|amount|date|merchant" with the amount fixed to two
// fraction digits and the date in ISO form. Must be recomputed whenever any
// input changes, notably after the provider's authoritative timestamp replaces
// a heuristic date.
func Fingerprint(userID string, amount float64, date time.Time, merchant string) string {
	input := fmt.Sprintf("%s|%.2f|%s|%s", userID, amount, date.Format("2006-01-02"), merchant)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
