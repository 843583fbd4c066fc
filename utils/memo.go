package utils

import (
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"
)

// MaxMemoLen is the longest memo the memo program accepts from us. The
// on-chain program allows more, but wallets start truncating display around
// this size, so callers must reject anything longer before submission.
const MaxMemoLen = 200

var ErrMemoTooLong = errors.New("memo exceeds maximum length")

// SimpleMemo derives the payment identifier for a (user, pack) pair:
// base58 of sha256(userID + "-" + packID). Deterministic, so any transaction
// carrying it can be matched back to "this user paying for this pack"
// regardless of which wallet sent it.
func SimpleMemo(userID, packID string) string {
	sum := sha256.Sum256([]byte(userID + "-" + packID))
	return base58.Encode(sum[:])
}

// QRMemo binds the payment identifier to one checkout attempt. A fresh
// orderID per QR code means an old, already-consumed transaction can never
// satisfy a new code.
func QRMemo(userID, packID, orderID string) string {
	return SimpleMemo(userID, packID) + ";" + orderID
}

// ValidMemo reports whether s is safe to embed verbatim in a memo
// instruction: printable ASCII and within MaxMemoLen bytes.
func ValidMemo(s string) error {
	if len(s) > MaxMemoLen {
		return ErrMemoTooLong
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return errors.New("memo contains non-printable characters")
		}
	}
	return nil
}
