package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIdentity returns a short stable digest of an identity id for log
// lines. Raw identities never appear in logs; an empty identity reads as
// "anonymous".
func HashIdentity(identityID string) string {
	if identityID == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(identityID))
	return hex.EncodeToString(sum[:])[:12]
}
