// Package poller runs per-order reconciliation loops over the receiver's
// USDC token account. Each checkout session scans recent signatures until a
// transaction matching the order's memo and amount appears, then hands it to
// the verifier; success, verifier rejection, timeout and cancellation are all
// terminal for the session.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"EstudaquiPay/internal/services"
	"EstudaquiPay/utils"
)

var (
	ErrPollTimeout = errors.New("payment polling timed out")
)

// State is a session's position in its lifecycle. Polling is the only
// non-terminal state.
type State string

const (
	StatePolling   State = "pending"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
	StateTimedOut  State = "timeout"
	StateCancelled State = "cancelled"
)

// Poller starts checkout sessions. The interval is the poll period, limit
// bounds how many recent signatures one cycle examines.
type Poller struct {
	chain       services.ChainClient
	verifier    *services.Verifier
	packs       *services.PackService
	receiverATA solana.PublicKey
	interval    time.Duration
	limit       int
	log         *utils.Logger
}

func New(chain services.ChainClient, verifier *services.Verifier, packs *services.PackService, receiverATA solana.PublicKey, interval time.Duration, limit int) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if limit <= 0 {
		limit = 5
	}
	return &Poller{
		chain:       chain,
		verifier:    verifier,
		packs:       packs,
		receiverATA: receiverATA,
		interval:    interval,
		limit:       limit,
		log:         utils.DefaultLogger,
	}
}

// Session is one active (or finished) checkout poll loop.
type Session struct {
	OrderID string

	mu    sync.Mutex
	state State
	stop  chan struct{}
	once  sync.Once
	seen  map[solana.Signature]struct{}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel stops the session. Safe to call any number of times and after the
// session already reached a terminal state; callbacks never fire after it.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state == StatePolling {
		s.state = StateCancelled
	}
	s.mu.Unlock()
	s.once.Do(func() { close(s.stop) })
}

// finish moves the session from Polling to st. It reports false when the
// session already left Polling, which is how results of in-flight cycles are
// discarded after cancellation: the losing caller must not fire callbacks.
func (s *Session) finish(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePolling {
		return false
	}
	s.state = st
	return true
}

// Start begins polling for a payment matching the order's QR memo. onSuccess
// fires exactly once when the verifier credits the matched transaction;
// onError fires once on timeout or on a matched-but-rejected transaction.
// A rejected match does not resume polling: it surfaces.
func (p *Poller) Start(userID, packID, orderID string, timeout time.Duration, onError func(error), onSuccess func()) *Session {
	s := &Session{
		OrderID: orderID,
		state:   StatePolling,
		stop:    make(chan struct{}),
		seen:    make(map[solana.Signature]struct{}),
	}
	go p.run(s, userID, packID, orderID, timeout, onError, onSuccess)
	return s
}

func (p *Poller) run(s *Session, userID, packID, orderID string, timeout time.Duration, onError func(error), onSuccess func()) {
	ctx := context.Background()

	pack, err := p.packs.GetPackInfoByID(ctx, packID)
	if err == nil && pack == nil {
		err = services.ErrUnknownPack
	}
	if err != nil {
		if s.finish(StateFailed) {
			onError(err)
		}
		return
	}
	memo := utils.QRMemo(userID, packID, orderID)
	amount := services.PriceToTokenAmount(pack.PriceUSD)
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// One goroutine per session processes ticks serially, so a slow cycle
	// cannot overlap the next one; ticks arriving meanwhile are dropped.
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if time.Now().After(deadline) {
				if s.finish(StateTimedOut) {
					p.log.Info("order %s: polling timed out", orderID)
					onError(ErrPollTimeout)
				}
				return
			}

			sig, found := p.scan(ctx, s, amount, memo)
			if !found {
				continue
			}
			// The session may have been cancelled while the scan's RPC
			// calls were in flight; its result is then discarded.
			if s.State() != StatePolling {
				return
			}
			p.log.Info("order %s: matched transaction %s, verifying", orderID, sig)

			ok, err := p.verifier.VerifyAndCredit(ctx, userID, sig.String(), packID, orderID)
			switch {
			case err != nil:
				if s.finish(StateFailed) {
					onError(err)
				}
			case !ok:
				if s.finish(StateFailed) {
					onError(errors.New("payment verification failed"))
				}
			default:
				if s.finish(StateSuccess) {
					onSuccess()
				}
			}
			return
		}
	}
}

// scan runs one poll cycle: fetch the receiver account's recent signatures,
// newest first, and test each not-yet-examined confirmed transaction against
// the order's transfer+memo predicate. RPC failures are logged and retried
// on the next cycle; only a full match ends the scan.
func (p *Poller) scan(ctx context.Context, s *Session, amount uint64, memo string) (solana.Signature, bool) {
	sigs, err := p.chain.RecentSignatures(ctx, p.receiverATA, p.limit)
	if err != nil {
		p.log.Warn("order %s: signature fetch failed: %v", s.OrderID, err)
		return solana.Signature{}, false
	}
	for _, si := range sigs {
		if si.Err != nil {
			continue
		}
		if _, done := s.seen[si.Signature]; done {
			continue
		}
		tx, err := p.chain.Transaction(ctx, si.Signature)
		if err != nil {
			p.log.Warn("order %s: transaction fetch %s failed: %v", s.OrderID, si.Signature, err)
			continue
		}
		if tx == nil {
			// Not visible at our commitment yet; retry next cycle.
			continue
		}
		s.seen[si.Signature] = struct{}{}
		if tx.Err != nil {
			continue
		}
		if services.Matches(tx, p.receiverATA, amount, memo) {
			return si.Signature, true
		}
	}
	return solana.Signature{}, false
}
