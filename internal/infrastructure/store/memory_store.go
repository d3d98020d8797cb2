package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/outbox"
)

// ErrCommitAborted is returned by Do when FailNextCommit was armed.
var ErrCommitAborted = errors.New("store: commit aborted")

type memState struct {
	products map[string]product.Product
	stock    map[string]inventory.StockItem // productID -> ledger
	carts    map[string]*cart.Cart          // userID -> cart
	orders   map[string]*order.Order
	outbox   []outbox.Message
}

func newMemState() memState {
	return memState{
		products: make(map[string]product.Product),
		stock:    make(map[string]inventory.StockItem),
		carts:    make(map[string]*cart.Cart),
		orders:   make(map[string]*order.Order),
	}
}

func (s memState) clone() memState {
	n := newMemState()
	for k, v := range s.products {
		n.products[k] = v
	}
	for k, v := range s.stock {
		n.stock[k] = v
	}
	for k, v := range s.carts {
		n.carts[k] = v.Clone()
	}
	for k, v := range s.orders {
		n.orders[k] = v.Clone()
	}
	n.outbox = append([]outbox.Message(nil), s.outbox...)
	return n
}

// MemoryStore is an in-process UnitOfWork. Units of work are serialized by a
// single mutex and run against a private copy that replaces the live state on commit.
type MemoryStore struct {
	mu          sync.Mutex
	state       memState
	failCommits int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// FailNextCommit makes the next Do discard its writes after fn succeeds.
func (s *MemoryStore) FailNextCommit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits++
}

func (s *MemoryStore) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(ctx, &memTx{state: &work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failCommits > 0 {
		s.failCommits--
		return ErrCommitAborted
	}
	s.state = work
	return nil
}

// RemoveStockItem deletes a ledger row outside any unit of work.
func (s *MemoryStore) RemoveStockItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.stock, productID)
}

// OutboxMessages returns a snapshot of every outbox row in insertion order.
func (s *MemoryStore) OutboxMessages() []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Message(nil), s.state.outbox...)
}

// ============================================
// Tx
// ============================================

type memTx struct {
	state *memState
}

func (t *memTx) GetProduct(_ context.Context, id string) (*product.Product, error) {
	p, ok := t.state.products[id]
	if !ok {
		return nil, notFoundProduct(id)
	}
	return &p, nil
}

func (t *memTx) GetProducts(_ context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.state.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (t *memTx) SaveProduct(_ context.Context, p *product.Product) error {
	t.state.products[p.ID] = *p
	return nil
}

func (t *memTx) GetStockItem(_ context.Context, productID string) (*inventory.StockItem, error) {
	s, ok := t.state.stock[productID]
	if !ok {
		return nil, notFoundStockItem(productID)
	}
	return &s, nil
}

func (t *memTx) SaveStockItem(_ context.Context, s *inventory.StockItem) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.state.stock[s.ProductID] = *s
	return nil
}

func (t *memTx) GetCart(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := t.state.carts[userID]
	if !ok {
		return nil, notFoundCart(userID)
	}
	return c.Clone(), nil
}

func (t *memTx) SaveCart(_ context.Context, c *cart.Cart) error {
	t.state.carts[c.UserID] = c.Clone()
	return nil
}

func (t *memTx) GetOrder(_ context.Context, id string) (*order.Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, notFoundOrder(id)
	}
	return o.Clone(), nil
}

func (t *memTx) SaveOrder(_ context.Context, o *order.Order) error {
	t.state.orders[o.ID] = o.Clone()
	return nil
}

func (t *memTx) AppendOutbox(_ context.Context, m outbox.Message) error {
	t.state.outbox = append(t.state.outbox, m)
	return nil
}

// ============================================
// Reader
// ============================================

func (s *MemoryStore) FindCart(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.carts[userID]
	if !ok {
		return nil, notFoundCart(userID)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) FindOrder(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[id]
	if !ok {
		return nil, notFoundOrder(id)
	}
	return o.Clone(), nil
}

// ListOrders returns the user's orders newest first.
func (s *MemoryStore) ListOrders(_ context.Context, userID string) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.state.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindStockItem(_ context.Context, productID string) (*inventory.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	si, ok := s.state.stock[productID]
	if !ok {
		return nil, notFoundStockItem(productID)
	}
	return &si, nil
}

func (s *MemoryStore) FindProduct(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	if !ok {
		return nil, notFoundProduct(id)
	}
	return &p, nil
}

// ============================================
// outbox.Repository
// ============================================

func (s *MemoryStore) Pending(_ context.Context, limit, maxRetries int) ([]outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Message
	for _, m := range s.state.outbox {
		if m.Pending() && m.RetryCount < maxRetries {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.outboxRow(id)
	if m == nil {
		return notFoundMessage(id)
	}
	m.ProcessedAt = &at
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id, lastError string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.outboxRow(id)
	if m == nil {
		return 0, notFoundMessage(id)
	}
	m.RetryCount++
	m.LastError = &lastError
	return m.RetryCount, nil
}

func (s *MemoryStore) PruneProcessed(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.outbox[:0]
	var n int64
	for _, m := range s.state.outbox {
		if m.ProcessedAt != nil && m.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.state.outbox = kept
	return n, nil
}

func (s *MemoryStore) Stats(_ context.Context, maxRetries int) (outbox.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st outbox.Stats
	for _, m := range s.state.outbox {
		switch {
		case !m.Pending():
			st.Processed++
		case m.RetryCount >= maxRetries:
			st.DeadLettered++
		default:
			st.Pending++
		}
	}
	return st, nil
}

func (s *MemoryStore) DeadLettered(_ context.Context, maxRetries, limit int) ([]outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Message
	for _, m := range s.state.outbox {
		if m.DeadLettered(maxRetries) {
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) outboxRow(id string) *outbox.Message {
	for i := range s.state.outbox {
		if s.state.outbox[i].ID == id {
			return &s.state.outbox[i]
		}
	}
	return nil
}
