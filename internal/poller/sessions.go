package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"EstudaquiPay/internal/services"
	"EstudaquiPay/utils"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrAlreadyPolling = errors.New("order already has an active poll session")
)

// How long finished sessions stay queryable before eviction.
const retention = 10 * time.Minute

// Manager owns the active checkout sessions, one per order id. It is the
// server-side equivalent of the browser keeping its poll interval per open
// payment modal: open starts the loop, close cancels it.
type Manager struct {
	poller  *Poller
	packs   *services.PackService
	timeout time.Duration
	log     *utils.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(p *Poller, packs *services.PackService, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Manager{
		poller:   p,
		packs:    packs,
		timeout:  timeout,
		log:      utils.DefaultLogger,
		sessions: make(map[string]*Session),
	}
}

// Timeout returns the session timeout orders are started with.
func (m *Manager) Timeout() time.Duration { return m.timeout }

// Open mints a fresh order id for (userID, packID), derives its QR memo and
// starts a poll session bound to it. The order id is random per checkout so
// a new QR code cannot be satisfied by an old transaction.
func (m *Manager) Open(ctx context.Context, userID, packID string) (orderID, memo string, err error) {
	pack, err := m.packs.GetPackInfoByID(ctx, packID)
	if err != nil {
		return "", "", err
	}
	if pack == nil {
		return "", "", services.ErrUnknownPack
	}

	orderID = ulid.Make().String()
	memo = utils.QRMemo(userID, packID, orderID)
	if err := utils.ValidMemo(memo); err != nil {
		return "", "", err
	}

	m.mu.Lock()
	if _, exists := m.sessions[orderID]; exists {
		m.mu.Unlock()
		return "", "", ErrAlreadyPolling
	}
	s := m.poller.Start(userID, packID, orderID, m.timeout,
		func(err error) { m.log.Warn("order %s: %v", orderID, err) },
		func() { m.log.Info("order %s: payment credited", orderID) },
	)
	m.sessions[orderID] = s
	m.mu.Unlock()

	time.AfterFunc(m.timeout+retention, func() { m.evict(orderID) })
	return orderID, memo, nil
}

// Status reports the session state for an order id.
func (m *Manager) Status(orderID string) (State, error) {
	m.mu.Lock()
	s, ok := m.sessions[orderID]
	m.mu.Unlock()
	if !ok {
		return "", ErrOrderNotFound
	}
	return s.State(), nil
}

// Cancel stops an order's session. Idempotent; cancelling a finished
// session leaves its terminal state untouched.
func (m *Manager) Cancel(orderID string) error {
	m.mu.Lock()
	s, ok := m.sessions[orderID]
	m.mu.Unlock()
	if !ok {
		return ErrOrderNotFound
	}
	s.Cancel()
	return nil
}

func (m *Manager) evict(orderID string) {
	m.mu.Lock()
	s, ok := m.sessions[orderID]
	if ok {
		delete(m.sessions, orderID)
	}
	m.mu.Unlock()
	if ok {
		s.Cancel()
	}
}
