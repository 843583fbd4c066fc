package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"EstudaquiPay/internal/db"
	"EstudaquiPay/utils"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrTxNotFound     = errors.New("transaction not found")
	ErrTxFailed       = errors.New("transaction failed on chain")
	ErrUnknownPack    = errors.New("unknown pack")
)

// Instruction is one resolved instruction of a confirmed transaction:
// program id and accounts looked up from the message's account table.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// TokenTransaction is the slice of a confirmed transaction this service
// cares about. Err carries the on-chain execution error, if any.
type TokenTransaction struct {
	Slot         uint64
	Err          interface{}
	Instructions []Instruction
}

// SignatureInfo is one entry of an account's signature history.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	Err       interface{}
}

// ChainClient is the RPC surface the verifier and poller consume. A nil
// TokenTransaction with a nil error means the signature does not resolve
// on-chain, which is distinct from a transaction that resolved but failed.
type ChainClient interface {
	Transaction(ctx context.Context, sig solana.Signature) (*TokenTransaction, error)
	RecentSignatures(ctx context.Context, account solana.PublicKey, limit int) ([]SignatureInfo, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// SolanaConfig holds the chain-side configuration read from config.yaml.
type SolanaConfig struct {
	RPCURL     string
	Receiver   string
	USDCMint   string
	RPCTimeout time.Duration
}

// SolanaService owns the RPC client and the derived receiver token account.
type SolanaService struct {
	chain       ChainClient
	Mint        solana.PublicKey
	Receiver    solana.PublicKey
	ReceiverATA solana.PublicKey
}

func NewSolanaService(cfg SolanaConfig) (*SolanaService, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("solana.rpc_url is empty in config")
	}
	receiver, err := solana.PublicKeyFromBase58(cfg.Receiver)
	if err != nil {
		return nil, fmt.Errorf("failed to parse solana.receiver as base58: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(cfg.USDCMint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse solana.usdc_mint as base58: %w", err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(receiver, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive receiver token account: %w", err)
	}
	timeout := cfg.RPCTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SolanaService{
		chain:       &rpcChain{client: rpc.New(cfg.RPCURL), timeout: timeout},
		Mint:        mint,
		Receiver:    receiver,
		ReceiverATA: ata,
	}, nil
}

func (s *SolanaService) Chain() ChainClient { return s.chain }

// BuildPaymentTx assembles the unsigned USDC transfer + memo transaction for
// a pack purchase, with the buyer's wallet as fee payer. The wallet client
// signs and submits it, then confirms via the payment endpoint.
func (s *SolanaService) BuildPaymentTx(ctx context.Context, wallet string, pack *db.Pack, memo string) (string, error) {
	userPk, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return "", ErrInvalidRequest
	}
	if err := utils.ValidMemo(memo); err != nil {
		return "", err
	}
	sourceATA, _, err := solana.FindAssociatedTokenAddress(userPk, s.Mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive sender token account: %w", err)
	}

	amount := PriceToTokenAmount(pack.PriceUSD)
	data := make([]byte, 9)
	data[0] = tokenInstructionTransfer
	binary.LittleEndian.PutUint64(data[1:9], amount)

	// Source, destination, owner: the account order the token program expects.
	accounts := solana.AccountMetaSlice{
		{PublicKey: sourceATA, IsSigner: false, IsWritable: true},
		{PublicKey: s.ReceiverATA, IsSigner: false, IsWritable: true},
		{PublicKey: userPk, IsSigner: true, IsWritable: false},
	}
	transferInstruction := solana.NewInstruction(TokenProgramID, accounts, data)
	memoInstruction := solana.NewInstruction(MemoProgramID, solana.AccountMetaSlice{}, []byte(memo))

	bh, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{transferInstruction, memoInstruction},
		bh,
		solana.TransactionPayer(userPk),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}
	return utils.EncodeBase64Tx(tx)
}

// PriceToTokenAmount converts a 2dp USD price to USDC smallest units
// (6 decimals). Matching is done on this integer, never on floats.
func PriceToTokenAmount(priceUSD float64) uint64 {
	return uint64(priceUSD*1e6 + 0.5)
}

// rpcChain implements ChainClient over the gagliardetto RPC client. Each
// call gets its own bounded timeout so a hung node cannot stall a poll loop
// past its tick.
type rpcChain struct {
	client  *rpc.Client
	timeout time.Duration
}

func (c *rpcChain) Transaction(ctx context.Context, sig solana.Signature) (*TokenTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if out == nil || out.Transaction == nil {
		return nil, nil
	}
	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	res := &TokenTransaction{Slot: uint64(out.Slot)}
	if out.Meta != nil {
		res.Err = out.Meta.Err
	}
	msg := tx.Message
	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(msg.AccountKeys) {
			continue
		}
		in := Instruction{
			ProgramID: msg.AccountKeys[ci.ProgramIDIndex],
			Data:      ci.Data,
		}
		for _, ai := range ci.Accounts {
			if int(ai) < len(msg.AccountKeys) {
				in.Accounts = append(in.Accounts, msg.AccountKeys[ai])
			}
		}
		res.Instructions = append(res.Instructions, in)
	}
	return res, nil
}

func (c *rpcChain) RecentSignatures(ctx context.Context, account solana.PublicKey, limit int) ([]SignatureInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.GetSignaturesForAddressWithOpts(ctx, account, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, err
	}
	infos := make([]SignatureInfo, 0, len(out))
	for _, si := range out {
		infos = append(infos, SignatureInfo{
			Signature: si.Signature,
			Slot:      uint64(si.Slot),
			Err:       si.Err,
		})
	}
	return infos, nil
}

func (c *rpcChain) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bh, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, err
	}
	return bh.Value.Blockhash, nil
}
