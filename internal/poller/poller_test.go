package poller

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EstudaquiPay/internal/db"
	"EstudaquiPay/internal/services"
	"EstudaquiPay/utils"
)

var (
	pollSource   = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	pollReceiver = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	pollOwner    = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
)

// fakeChain surfaces one matching signature starting at call matchAt
// (1-based); before that, cycles see an empty history. An optional gate
// makes Transaction block so a cancel can land mid-cycle.
type fakeChain struct {
	mu      sync.Mutex
	calls   int
	matchAt int
	sig     solana.Signature
	tx      *services.TokenTransaction

	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeChain) RecentSignatures(_ context.Context, _ solana.PublicKey, _ int) ([]services.SignatureInfo, error) {
	f.mu.Lock()
	f.calls++
	ready := f.matchAt > 0 && f.calls >= f.matchAt
	f.mu.Unlock()
	if !ready {
		return nil, nil
	}
	return []services.SignatureInfo{{Signature: f.sig}}, nil
}

func (f *fakeChain) Transaction(_ context.Context, sig solana.Signature) (*services.TokenTransaction, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if sig != f.sig {
		return nil, nil
	}
	return f.tx, nil
}

func (f *fakeChain) LatestBlockhash(_ context.Context) (solana.Hash, error) {
	return solana.Hash{}, nil
}

func (f *fakeChain) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLedger struct {
	mu      sync.Mutex
	credits map[string]int
	seen    map[string]struct{}
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{credits: map[string]int{}, seen: map[string]struct{}{}}
}

func (f *fakeLedger) CreditPurchase(_ context.Context, rec db.PaymentRecord, credits int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.seen[rec.TXSignature]; ok {
		return true, nil
	}
	f.seen[rec.TXSignature] = struct{}{}
	f.credits[rec.UserID] += credits
	return false, nil
}

func (f *fakeLedger) balance(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credits[userID]
}

type fakePackSource struct {
	packs []db.Pack
}

func (f *fakePackSource) ActivePacks(_ context.Context) ([]db.Pack, error) {
	return f.packs, nil
}

// recorder counts callback invocations across goroutines.
type recorder struct {
	mu   sync.Mutex
	succ int
	errs []error
}

func (r *recorder) onSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succ++
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) successes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succ
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func pollPack() db.Pack {
	return db.Pack{PackID: "standard", Name: "Standard Pack", PriceUSD: 10.00, Credits: 100, Active: true}
}

func pollSig() solana.Signature {
	var sig solana.Signature
	sig[0] = 0xAB
	return sig
}

// paymentTxFor builds the resolved transaction a correct wallet payment for
// the given memo produces.
func paymentTxFor(amount uint64, memo string) *services.TokenTransaction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return &services.TokenTransaction{Instructions: []services.Instruction{
		{
			ProgramID: services.TokenProgramID,
			Accounts:  []solana.PublicKey{pollSource, pollReceiver, pollOwner},
			Data:      data,
		},
		{
			ProgramID: services.MemoProgramID,
			Data:      []byte(memo),
		},
	}}
}

func newTestPoller(chain services.ChainClient, ledger services.CreditLedger, interval time.Duration) *Poller {
	catalog := services.NewPackService(&fakePackSource{packs: []db.Pack{pollPack()}}, time.Minute)
	verifier := services.NewVerifier(chain, catalog, ledger, pollReceiver)
	return New(chain, verifier, catalog, pollReceiver, interval, 5)
}

func TestPollerCreditsWhenMatchAppears(t *testing.T) {
	const (
		user    = "alice@example.com"
		orderID = "01HTESTORDER0000000000000A"
	)
	memo := utils.QRMemo(user, "standard", orderID)
	chain := &fakeChain{
		matchAt: 3,
		sig:     pollSig(),
		tx:      paymentTxFor(10_000_000, memo),
	}
	ledger := newFakeLedger()
	p := newTestPoller(chain, ledger, 10*time.Millisecond)

	rec := &recorder{}
	s := p.Start(user, "standard", orderID, time.Minute, rec.onError, rec.onSuccess)

	require.Eventually(t, func() bool { return s.State() == StateSuccess },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.successes())
	assert.Empty(t, rec.errors())
	assert.Equal(t, 100, ledger.balance(user))
	assert.GreaterOrEqual(t, chain.callCount(), 3)

	// The loop must have exited with the session: no further cycles.
	calls := chain.callCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, chain.callCount())
}

func TestPollerTimeoutIsTerminal(t *testing.T) {
	chain := &fakeChain{}
	p := newTestPoller(chain, newFakeLedger(), 10*time.Millisecond)

	rec := &recorder{}
	s := p.Start("alice@example.com", "standard", "order-t", 25*time.Millisecond, rec.onError, rec.onSuccess)

	require.Eventually(t, func() bool { return s.State() == StateTimedOut },
		2*time.Second, 5*time.Millisecond)
	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrPollTimeout)
	assert.Zero(t, rec.successes())

	calls := chain.callCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, chain.callCount(), "timed-out session must stop polling")
}

func TestPollerVerifierRejectionIsTerminal(t *testing.T) {
	const (
		user    = "alice@example.com"
		orderID = "order-v"
	)
	memo := utils.QRMemo(user, "standard", orderID)
	chain := &fakeChain{
		matchAt: 1,
		sig:     pollSig(),
		tx:      paymentTxFor(10_000_000, memo),
	}
	ledger := newFakeLedger()
	ledger.err = errors.New("ledger unavailable")
	p := newTestPoller(chain, ledger, 10*time.Millisecond)

	rec := &recorder{}
	s := p.Start(user, "standard", orderID, time.Minute, rec.onError, rec.onSuccess)

	require.Eventually(t, func() bool { return s.State() == StateFailed },
		2*time.Second, 5*time.Millisecond)
	require.Len(t, rec.errors(), 1)
	assert.Zero(t, rec.successes())

	calls := chain.callCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, calls, chain.callCount(), "rejection must not resume polling")
}

func TestPollerUnknownPackFailsImmediately(t *testing.T) {
	chain := &fakeChain{}
	catalog := services.NewPackService(&fakePackSource{}, time.Minute)
	verifier := services.NewVerifier(chain, catalog, newFakeLedger(), pollReceiver)
	p := New(chain, verifier, catalog, pollReceiver, 10*time.Millisecond, 5)

	rec := &recorder{}
	s := p.Start("alice@example.com", "missing", "order-u", time.Minute, rec.onError, rec.onSuccess)

	require.Eventually(t, func() bool { return s.State() == StateFailed },
		2*time.Second, 5*time.Millisecond)
	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], services.ErrUnknownPack)
}

func TestSessionCancelIsIdempotent(t *testing.T) {
	chain := &fakeChain{}
	p := newTestPoller(chain, newFakeLedger(), 10*time.Millisecond)

	rec := &recorder{}
	s := p.Start("alice@example.com", "standard", "order-c", time.Minute, rec.onError, rec.onSuccess)

	s.Cancel()
	s.Cancel()
	assert.Equal(t, StateCancelled, s.State())
	assert.Zero(t, rec.successes())
	assert.Empty(t, rec.errors())

	require.Eventually(t, func() bool {
		calls := chain.callCount()
		time.Sleep(30 * time.Millisecond)
		return calls == chain.callCount()
	}, 2*time.Second, 10*time.Millisecond, "cancelled session must stop polling")
}

func TestCancelDiscardsInFlightMatch(t *testing.T) {
	const (
		user    = "alice@example.com"
		orderID = "order-f"
	)
	memo := utils.QRMemo(user, "standard", orderID)
	chain := &fakeChain{
		matchAt: 1,
		sig:     pollSig(),
		tx:      paymentTxFor(10_000_000, memo),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	ledger := newFakeLedger()
	p := newTestPoller(chain, ledger, 10*time.Millisecond)

	rec := &recorder{}
	s := p.Start(user, "standard", orderID, time.Minute, rec.onError, rec.onSuccess)

	// Wait until the cycle is inside the transaction fetch, cancel the
	// session, then let the fetch resolve with a full match.
	select {
	case <-chain.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("poll cycle never fetched the transaction")
	}
	s.Cancel()
	close(chain.gate)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateCancelled, s.State())
	assert.Zero(t, rec.successes(), "no success callback after cancel")
	assert.Empty(t, rec.errors())
	assert.Zero(t, ledger.balance(user), "cancelled session must not credit")
}
