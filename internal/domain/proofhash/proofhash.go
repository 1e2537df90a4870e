// Package proofhash derives the reproducible content fingerprint of a composed artifact.
//
// Each item is encoded as the record contentHash US riskImpact. Records are
// sorted and joined with RS, and the result is hashed with SHA-256. Content
// hashes may not contain control characters, so neither separator can occur
// inside a record and the encoding is injective over the multiset of
// (contentHash, riskImpact) pairs. Status, name, kind and id never
// contribute.
package proofhash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/proofkit/internal/domain/model"
)

// Prefix names the digest algorithm in every derived hash.
const Prefix = "sha256:"

const (
	unitSep   = '\x1f'
	recordSep = '\x1e'
)

// Derive returns the proof hash for items. It fails with an error matching
// model.ErrInvalidItemData when a content hash is empty, too long or contains
// a control character, or a risk impact is out of range.
func Derive(items []model.SelectableItem) (string, error) {
	records := make([]string, 0, len(items))
	for _, it := range items {
		rec, err := record(it)
		if err != nil {
			return "", err
		}
		records = append(records, rec)
	}
	slices.Sort(records)
	return Prefix + sha256Hex([]byte(strings.Join(records, string(recordSep)))), nil
}

// Verify re-derives the hash for items and compares it with expected in constant time.
func Verify(items []model.SelectableItem, expected string) (bool, error) {
	got, err := Derive(items)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1, nil
}

func record(it model.SelectableItem) (string, error) {
	if err := it.CheckContentHash(); err != nil {
		return "", err
	}
	if err := it.CheckRiskImpact(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(it.ContentHash) + 4)
	b.WriteString(it.ContentHash)
	b.WriteByte(unitSep)
	b.WriteString(strconv.Itoa(it.RiskImpact))
	return b.String(), nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
