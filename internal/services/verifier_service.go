package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"EstudaquiPay/internal/db"
	"EstudaquiPay/utils"
)

// CreditLedger is the slice of the credit store the verifier needs: one
// idempotent register-and-credit operation keyed by transaction signature.
type CreditLedger interface {
	CreditPurchase(ctx context.Context, rec db.PaymentRecord, credits int) (already bool, err error)
}

// Verifier checks a claimed payment signature against the chain and credits
// the buyer exactly once per signature. It is the single source of truth for
// crediting: both the wallet confirm path and the QR polling path end here.
type Verifier struct {
	chain       ChainClient
	packs       *PackService
	ledger      CreditLedger
	receiverATA solana.PublicKey
	log         *utils.Logger
}

func NewVerifier(chain ChainClient, packs *PackService, ledger CreditLedger, receiverATA solana.PublicKey) *Verifier {
	return &Verifier{
		chain:       chain,
		packs:       packs,
		ledger:      ledger,
		receiverATA: receiverATA,
		log:         utils.DefaultLogger,
	}
}

// VerifyAndCredit fetches the transaction for signature and, when it carries
// both the exact USDC transfer to the receiver token account and the memo
// derived from (userID, packID[, orderID]), registers the payment and adds
// the pack's credits.
//
// A predicate miss is (false, nil) with no side effects; the caller decides
// whether to retry or surface it. Sentinel errors cover the malformed and
// not-found cases; anything else is an infrastructure failure. A signature
// that was credited before reports success without crediting again.
func (v *Verifier) VerifyAndCredit(ctx context.Context, userID, signature, packID, orderID string) (bool, error) {
	if userID == "" || signature == "" || packID == "" {
		return false, ErrInvalidRequest
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, ErrInvalidRequest
	}

	tx, err := v.chain.Transaction(ctx, sig)
	if err != nil {
		return false, fmt.Errorf("failed to fetch transaction %s: %w", signature, err)
	}
	if tx == nil {
		return false, ErrTxNotFound
	}
	if tx.Err != nil {
		return false, ErrTxFailed
	}

	pack, err := v.packs.GetPackInfoByID(ctx, packID)
	if err != nil {
		return false, fmt.Errorf("failed to look up pack %s: %w", packID, err)
	}
	if pack == nil || !pack.Active {
		return false, ErrUnknownPack
	}

	memo := utils.SimpleMemo(userID, packID)
	if orderID != "" {
		memo = utils.QRMemo(userID, packID, orderID)
	}
	amount := PriceToTokenAmount(pack.PriceUSD)

	if !Matches(tx, v.receiverATA, amount, memo) {
		v.log.Debug("no matching transfer+memo in %s (pack %s, amount %d)", signature, packID, amount)
		return false, nil
	}

	credits := pack.Credits + pack.ExtraCredits
	already, err := v.ledger.CreditPurchase(ctx, db.PaymentRecord{
		Method:      "solana",
		UserID:      userID,
		PackID:      packID,
		TXSignature: signature,
		PaidAt:      time.Now(),
	}, credits)
	if err != nil {
		return false, fmt.Errorf("failed to credit purchase for %s: %w", signature, err)
	}
	if already {
		v.log.Info("signature %s already credited, treating as success", signature)
	} else {
		v.log.Info("credited %d credits to %s for pack %s (tx %s)", credits, userID, packID, signature)
	}
	return true, nil
}
