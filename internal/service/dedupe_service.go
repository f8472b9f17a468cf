package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// DedupeService computes stable fingerprints of (recipient, final
// message) pairs, used to reject resend-of-identical-content within a
// single broadcast
type DedupeService struct{}

// NewDedupeService creates a new dedupe service
func NewDedupeService() *DedupeService {
	return &DedupeService{}
}

// Hash returns a stable hex fingerprint for the given recipient and
// fully personalized message. Equal inputs always produce equal hashes.
func (s *DedupeService) Hash(recipientID int, finalMessage string) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(recipientID)))
	h.Write([]byte{0}) // separator so (1, "2x") and (12, "x") differ
	h.Write([]byte(finalMessage))
	return hex.EncodeToString(h.Sum(nil))
}
