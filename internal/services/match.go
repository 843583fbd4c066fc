package services

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var (
	// Token Program ID: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	// Memo Program ID: MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr
	MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
)

// SPL token instruction discriminators.
const (
	tokenInstructionTransfer        = 3
	tokenInstructionTransferChecked = 12
)

// MatchesTransfer reports whether tx carries a token-program transfer of
// exactly amount smallest units into dest. Transfer data layout:
// discriminator byte, then amount as uint64 little-endian. The destination
// account sits at index 1 for Transfer and index 2 for TransferChecked
// (which inserts the mint between source and destination).
func MatchesTransfer(tx *TokenTransaction, dest solana.PublicKey, amount uint64) bool {
	for _, in := range tx.Instructions {
		if !in.ProgramID.Equals(TokenProgramID) {
			continue
		}
		if len(in.Data) < 9 {
			continue
		}
		destIndex := -1
		switch in.Data[0] {
		case tokenInstructionTransfer:
			destIndex = 1
		case tokenInstructionTransferChecked:
			destIndex = 2
		default:
			continue
		}
		if binary.LittleEndian.Uint64(in.Data[1:9]) != amount {
			continue
		}
		if destIndex >= len(in.Accounts) || !in.Accounts[destIndex].Equals(dest) {
			continue
		}
		return true
	}
	return false
}

// MatchesMemo reports whether tx carries a memo instruction whose content
// equals memo byte-for-byte. Case-sensitive, no trimming.
func MatchesMemo(tx *TokenTransaction, memo string) bool {
	for _, in := range tx.Instructions {
		if !in.ProgramID.Equals(MemoProgramID) {
			continue
		}
		if string(in.Data) == memo {
			return true
		}
	}
	return false
}

// Matches is the shared payment predicate: a transaction counts as payment
// only when both the exact transfer and the exact memo are present. A
// transfer without the memo could be any unrelated deposit of the same
// amount; a memo without the transfer paid nothing.
func Matches(tx *TokenTransaction, dest solana.PublicKey, amount uint64, memo string) bool {
	return MatchesTransfer(tx, dest, amount) && MatchesMemo(tx, memo)
}
