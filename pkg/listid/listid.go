// Package listid derives content-addressed identifiers for payment lists.
//
// A list id is the hex-encoded SHA-256 of the canonical JSON rendering of
// {payments, submitter, token_id} with alphabetically sorted keys and the
// payments sorted by recipient. The same content always hashes to the same
// id, so the id doubles as a tamper-evidence check and a dedup key.
package listid

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
)

// Payment is the canonical form of a single payment entry. Field order
// matters: encoding/json emits struct fields in declaration order, and the
// canonical rendering sorts keys alphabetically.
type Payment struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type canonicalList struct {
	Payments  []Payment `json:"payments"`
	Submitter string    `json:"submitter"`
	TokenID   string    `json:"token_id"`
}

var idPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Compute returns the list id for the given content.
func Compute(submitter, tokenID string, payments []Payment) (string, error) {
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Recipient < sorted[j].Recipient
	})

	canonical, err := json.Marshal(canonicalList{
		Payments:  sorted,
		Submitter: submitter,
		TokenID:   tokenID,
	})
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Valid reports whether id is a well-formed list id: 64 lowercase hex
// characters.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}
