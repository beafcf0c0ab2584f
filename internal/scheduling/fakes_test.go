package scheduling

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// memStore is an in-memory Store. Transactions buffer writes and apply them
// on commit.
type memStore struct {
	mu           sync.Mutex
	courts       map[int64]policy.Policy
	reservations map[int64]reservation.Reservation
	nextID       int64
}

func newMemStore() *memStore {
	return &memStore{
		courts:       make(map[int64]policy.Policy),
		reservations: make(map[int64]reservation.Reservation),
	}
}

func (m *memStore) addCourt(id int64, p policy.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courts[id] = p
}

// seed stores r directly, bypassing every check.
func (m *memStore) seed(r reservation.Reservation) reservation.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.reservations[r.ID] = r
	return r
}

func (m *memStore) get(id int64) reservation.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[id]
}

func (m *memStore) LoadCourtPolicy(_ context.Context, courtID int64) (policy.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.courts[courtID]
	if !ok {
		return policy.Policy{}, ErrCourtNotFound
	}
	return p, nil
}

// gatedStore blocks LoadCourtPolicy until release is closed or ctx ends.
type gatedStore struct {
	*memStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) LoadCourtPolicy(ctx context.Context, courtID int64) (policy.Policy, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return policy.Policy{}, ctx.Err()
	}
	return g.memStore.LoadCourtPolicy(ctx, courtID)
}

type txCountingStore struct {
	*memStore
	txs atomic.Int32
}

func (c *txCountingStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	c.txs.Add(1)
	return c.memStore.RunInTx(ctx, fn)
}

func (m *memStore) LoadActiveReservations(_ context.Context, courtID int64, date civil.Date) ([]reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reservation.Reservation
	for _, r := range m.reservations {
		if r.CourtID == courtID && r.Date == date && r.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) LoadByID(_ context.Context, id int64) (reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return reservation.Reservation{}, reservation.ErrNotFound
	}
	return r, nil
}

func (m *memStore) InsertReservation(_ context.Context, r reservation.Reservation) (reservation.Reservation, error) {
	return m.seed(r), nil
}

func (m *memStore) SaveReservation(_ context.Context, r reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[r.ID]; !ok {
		return reservation.ErrNotFound
	}
	m.reservations[r.ID] = r
	return nil
}

func (m *memStore) RunInTx(ctx context.Context, fn func(Store) error) error {
	tx := &memTx{base: m, pending: make(map[int64]reservation.Reservation)}
	if err := fn(tx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range tx.pending {
		if id > m.nextID {
			m.nextID = id
		}
		m.reservations[id] = r
	}
	return nil
}

type memTx struct {
	base    *memStore
	pending map[int64]reservation.Reservation
}

func (t *memTx) LoadCourtPolicy(ctx context.Context, courtID int64) (policy.Policy, error) {
	return t.base.LoadCourtPolicy(ctx, courtID)
}

func (t *memTx) LoadActiveReservations(ctx context.Context, courtID int64, date civil.Date) ([]reservation.Reservation, error) {
	base, err := t.base.LoadActiveReservations(ctx, courtID, date)
	if err != nil {
		return nil, err
	}
	var out []reservation.Reservation
	for _, r := range base {
		if _, overridden := t.pending[r.ID]; !overridden {
			out = append(out, r)
		}
	}
	for _, r := range t.pending {
		if r.CourtID == courtID && r.Date == date && r.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) LoadByID(ctx context.Context, id int64) (reservation.Reservation, error) {
	if r, ok := t.pending[id]; ok {
		return r, nil
	}
	return t.base.LoadByID(ctx, id)
}

func (t *memTx) InsertReservation(_ context.Context, r reservation.Reservation) (reservation.Reservation, error) {
	t.base.mu.Lock()
	t.base.nextID++
	r.ID = t.base.nextID
	t.base.mu.Unlock()
	t.pending[r.ID] = r
	return r, nil
}

func (t *memTx) SaveReservation(ctx context.Context, r reservation.Reservation) error {
	if _, ok := t.pending[r.ID]; !ok {
		if _, err := t.base.LoadByID(ctx, r.ID); err != nil {
			return err
		}
	}
	t.pending[r.ID] = r
	return nil
}

func (t *memTx) RunInTx(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends []string
}

func (n *recordingNotifier) Notify(_ context.Context, template string, _ reservation.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, template)
	return nil
}

type refundCall struct {
	paymentID string
	amount    int64
}

type recordingPayments struct {
	mu      sync.Mutex
	refunds []refundCall
}

func (p *recordingPayments) Refund(_ context.Context, paymentID string, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds = append(p.refunds, refundCall{paymentID: paymentID, amount: amount})
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) Publish(_ context.Context, event string, _ reservation.Reservation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}
