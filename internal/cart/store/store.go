// Package store holds the cart state container: it validates and applies mutations,
// recomputes totals, persists snapshots through a storage adapter and reports every
// change as a transition.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/storage"
	"github.com/angelmondragon/packfinderz-cart/pkg/logger"
	"github.com/angelmondragon/packfinderz-cart/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	opAddItem    = "add_item"
	opUpdateItem = "update_item"
	opRemoveItem = "remove_item"
	opClearCart  = "clear_cart"
	opInitialize = "initialize"
	opPersist    = "persist"
)

// Store owns one cart. All mutations run under a single lock, so no reader ever observes
// a half-applied change. Transition listeners run after the lock is released and must not
// block for long.
type Store struct {
	adapter          *storage.Adapter
	storageKey       string
	validateOnChange bool
	validateItem     func(cart.Item) string
	log              *logger.Logger
	metrics          *metrics.CartMetrics
	now              func() time.Time
	writer           *writer

	mu      sync.RWMutex
	state   cart.State
	rates   cart.Rates
	phase   Phase
	err     error
	interim *interimLog

	loads singleflight.Group

	notifyMu sync.Mutex
	outbox   []notification
	draining bool

	subsMu    sync.RWMutex
	nextSubID int
	subs      map[int]func(Snapshot)
	observers map[int]func(Transition)
}

// ErrNotInitialized fills the error slot while mutations are held in memory because
// Initialize has not run yet. Initialize writes them and empties the slot.
var ErrNotInitialized = errors.New("cart store not initialized: changes are kept in memory until Initialize")

// interimLog tracks mutations made before Initialize finishes, so a loaded snapshot can be
// merged under them instead of replacing them.
type interimLog struct {
	touched map[string]bool // id -> still present
	cleared bool
	dirty   bool
}

func newInterimLog() *interimLog {
	return &interimLog{touched: make(map[string]bool)}
}

func (l *interimLog) mutated() bool {
	return l.cleared || len(l.touched) > 0
}

// New builds an isolated store. If opts.Storage is nil the default adapter is selected
// here, once. Durability starts at Initialize: earlier mutations succeed in memory, set
// ErrNotInitialized in the error slot and are merged with the stored cart when it loads.
func New(opts Options) *Store {
	opts = opts.withDefaults()
	s := &Store{
		adapter:          opts.Storage,
		storageKey:       opts.StorageKey,
		validateOnChange: *opts.ValidateOnChange,
		validateItem:     opts.ValidateItem,
		log:              opts.Logger,
		metrics:          opts.Metrics,
		now:              opts.Clock,
		rates:            opts.rates(),
		phase:            PhaseUninitialized,
		interim:          newInterimLog(),
		subs:             make(map[int]func(Snapshot)),
		observers:        make(map[int]func(Transition)),
	}
	s.state = cart.Empty(s.rates, s.now())
	if opts.Metadata != nil {
		s.state.Metadata = opts.Metadata.Clone()
	} else {
		s.state.Metadata = &cart.StateMetadata{CartID: uuid.NewString(), Currency: opts.Currency}
	}
	if s.adapter.Kind() == storage.KindAsync {
		s.writer = newWriter(opts.WriteTimeout, s.writeAsync)
	}
	return s
}

// Backend names the storage backend the store persists to.
func (s *Store) Backend() string { return s.adapter.Backend() }

// AddItem validates opts and adds the line, or merges the quantity into the existing line
// with the same identity. With MergeIfExists set to false an existing identity is a
// *cart.DuplicateItemError.
func (s *Store) AddItem(ctx context.Context, opts cart.AddItemOptions) (*cart.Item, error) {
	item, job, err := s.addItem(opts)
	s.metrics.IncMutation(opAddItem, err)
	if err != nil {
		return nil, err
	}
	s.flush()
	s.await(ctx, opAddItem, job)
	return item, nil
}

func (s *Store) addItem(opts cart.AddItemOptions) (*cart.Item, *writeJob, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := opts.Identity()
	if idx := s.state.Find(id); idx >= 0 {
		if !opts.Merge() {
			return nil, nil, &cart.DuplicateItemError{ItemID: id}
		}
		merged := opts.MergeInto(s.state.Items[idx], now)
		if err := s.checkItem(merged); err != nil {
			return nil, nil, err
		}
		s.state.Items[idx] = merged
		s.commitLocked(TransitionItemUpdated, &merged, id, "")
		return cloneItem(merged), s.persistLocked(opSave), nil
	}

	item := opts.NewItem(now)
	if err := s.checkItem(item); err != nil {
		return nil, nil, err
	}
	s.state.Items = append(s.state.Items, item)
	s.commitLocked(TransitionItemAdded, &item, id, "")
	return cloneItem(item), s.persistLocked(opSave), nil
}

// UpdateItem merges opts into the item with id. A quantity of exactly zero removes the
// item and returns it as it was before removal.
func (s *Store) UpdateItem(ctx context.Context, id string, opts cart.UpdateItemOptions) (*cart.Item, error) {
	item, job, err := s.updateItem(id, opts)
	s.metrics.IncMutation(opUpdateItem, err)
	if err != nil {
		return nil, err
	}
	s.flush()
	s.await(ctx, opUpdateItem, job)
	return item, nil
}

func (s *Store) updateItem(id string, opts cart.UpdateItemOptions) (*cart.Item, *writeJob, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.state.Find(id)
	if idx < 0 {
		return nil, nil, &cart.ItemNotFoundError{ItemID: id}
	}
	if opts.RemovesItem() {
		removed := s.removeLocked(idx)
		return cloneItem(removed), s.persistLocked(opSave), nil
	}

	updated := opts.Apply(s.state.Items[idx], s.now())
	if updated.ID != id && s.state.Find(updated.ID) >= 0 {
		return nil, nil, &cart.DuplicateItemError{ItemID: updated.ID}
	}
	if err := s.checkItem(updated); err != nil {
		return nil, nil, err
	}
	s.state.Items[idx] = updated
	prevID := ""
	if updated.ID != id {
		prevID = id
	}
	s.commitLocked(TransitionItemUpdated, &updated, updated.ID, prevID)
	return cloneItem(updated), s.persistLocked(opSave), nil
}

// RemoveItem drops the item with id. Removing an unknown id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.state.Find(id)
	if idx < 0 {
		s.mu.Unlock()
		s.metrics.IncMutation(opRemoveItem, nil)
		return nil
	}
	s.removeLocked(idx)
	job := s.persistLocked(opSave)
	s.mu.Unlock()

	s.metrics.IncMutation(opRemoveItem, nil)
	s.flush()
	s.await(ctx, opRemoveItem, job)
	return nil
}

func (s *Store) removeLocked(idx int) cart.Item {
	removed := s.state.Items[idx]
	s.state.Items = slices.Delete(s.state.Items, idx, idx+1)
	s.commitLocked(TransitionItemRemoved, &removed, removed.ID, "")
	return removed
}

// ClearCart empties the cart, keeping the rate configuration and cart metadata, and
// clears the backing store instead of writing an empty snapshot.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	s.state.Items = []cart.Item{}
	if s.interim != nil {
		s.interim.touched = make(map[string]bool)
		s.interim.cleared = true
	}
	s.commitLocked(TransitionCartCleared, nil, "", "")
	job := s.persistLocked(opClear)
	s.mu.Unlock()

	s.metrics.IncMutation(opClearCart, nil)
	s.flush()
	s.await(ctx, opClearCart, job)
	return nil
}

// RecalculateTotals recomputes totals from the current items without persisting. A
// non-nil override becomes the store's rate configuration.
func (s *Store) RecalculateTotals(override *cart.Rates) {
	s.mu.Lock()
	if override != nil {
		s.rates = *override
	}
	s.state.Totals = cart.ComputeTotals(s.state.Items, s.rates)
	s.publishLocked(nil)
	s.mu.Unlock()
	s.flush()
}

// PreviewTotals computes the totals the current items would have under rates. The store
// is not modified.
func (s *Store) PreviewTotals(rates cart.Rates) cart.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cart.ComputeTotals(s.state.Items, rates)
}

// Rates returns the active rate configuration.
func (s *Store) Rates() cart.Rates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates
}

// Initialize loads the stored snapshot. Stored totals are never trusted: they are
// recomputed from the loaded items. Mutations made before or during the load are kept on
// top of the loaded items and the merged cart is written back. Load failures land in the
// error slot; the store still becomes ready. Concurrent calls share one load, and calls
// after the store is ready do nothing.
func (s *Store) Initialize(ctx context.Context) error {
	_, err, _ := s.loads.Do(opInitialize, func() (any, error) {
		return nil, s.initialize(ctx)
	})
	return err
}

func (s *Store) initialize(ctx context.Context) error {
	ctx = s.logContext(ctx, opInitialize)

	s.mu.Lock()
	if s.phase == PhaseReady {
		s.mu.Unlock()
		return nil
	}
	s.phase = PhaseLoading
	if s.interim == nil {
		s.interim = newInterimLog()
	}
	s.publishLocked(nil)
	s.mu.Unlock()
	s.flush()

	loaded, loadErr := s.adapter.Load(ctx)

	s.mu.Lock()
	if errors.Is(s.err, ErrNotInitialized) {
		s.err = nil
	}
	persist := false
	switch {
	case loadErr != nil:
		s.log.Error(ctx, "loading cart snapshot failed", loadErr)
		s.metrics.IncPersistFailure(s.adapter.Backend())
		s.setErrLocked(loadErr)
	case loaded != nil:
		persist = s.adoptLocked(ctx, *loaded)
	default:
		persist = s.interim.dirty
	}
	op := opSave
	if s.interim.cleared && len(s.state.Items) == 0 {
		op = opClear
	}
	s.phase = PhaseReady
	s.interim = nil
	s.commitLocked(TransitionCartLoaded, nil, "", "")
	var job *writeJob
	if persist {
		job = s.persistLocked(op)
	}
	s.mu.Unlock()

	s.metrics.IncMutation(opInitialize, loadErr)
	s.flush()
	s.await(ctx, opInitialize, job)
	return nil
}

// adoptLocked installs a loaded snapshot and reports whether the result differs from what
// is stored because interim mutations were merged in.
func (s *Store) adoptLocked(ctx context.Context, loaded cart.State) bool {
	items := s.sanitizeLocked(ctx, loaded.Items)
	merged := s.interim.mutated()
	if merged {
		items = s.mergeInterimLocked(items)
	}
	s.state.Items = items
	if loaded.Metadata != nil {
		s.state.Metadata = loaded.Metadata.Clone()
	}
	return merged
}

// sanitizeLocked drops stored items that no longer validate and re-derives ids.
func (s *Store) sanitizeLocked(ctx context.Context, items []cart.Item) []cart.Item {
	out := make([]cart.Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item.ID = cart.IdentityOf(item.ProductID, item.Variants)
		if err := s.checkItem(item); err != nil {
			s.log.Warn(s.log.WithFields(ctx, map[string]any{"item_id": item.ID, "reason": err.Error()}), "dropping invalid stored cart item")
			continue
		}
		if _, dup := seen[item.ID]; dup {
			s.log.Warn(s.log.WithField(ctx, "item_id", item.ID), "dropping duplicate stored cart item")
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

func (s *Store) mergeInterimLocked(loaded []cart.Item) []cart.Item {
	if s.interim.cleared {
		loaded = nil
	}
	out := make([]cart.Item, 0, len(loaded)+len(s.state.Items))
	placed := make(map[string]struct{})
	for _, item := range loaded {
		if alive, touched := s.interim.touched[item.ID]; touched {
			if !alive {
				continue
			}
			if idx := s.state.Find(item.ID); idx >= 0 {
				item = s.state.Items[idx]
			}
		}
		out = append(out, item)
		placed[item.ID] = struct{}{}
	}
	for _, item := range s.state.Items {
		if _, done := placed[item.ID]; done || !s.interim.touched[item.ID] {
			continue
		}
		out = append(out, item)
		placed[item.ID] = struct{}{}
	}
	return out
}

// GetItem returns a copy of the item with id.
func (s *Store) GetItem(id string) (cart.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.state.Find(id)
	if idx < 0 {
		return cart.Item{}, false
	}
	return s.state.Items[idx].Clone(), true
}

// GetItemByProduct looks an item up by product id and variant selection.
func (s *Store) GetItemByProduct(productID cart.ProductID, variants []cart.Variant) (cart.Item, bool) {
	return s.GetItem(cart.IdentityOf(productID, variants))
}

// State returns a copy of the current cart.
func (s *Store) State() cart.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Items() []cart.Item {
	return s.State().Items
}

func (s *Store) Totals() cart.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Totals
}

func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *Store) IsLoading() bool {
	return s.Phase() == PhaseLoading
}

// Err returns the error slot: the last persistence failure, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ClearError empties the error slot.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.publishLocked(nil)
	s.mu.Unlock()
	s.flush()
}

// Close waits for pending writes and stops the writer.
func (s *Store) Close() {
	if s.writer != nil {
		s.writer.close()
	}
}

func (s *Store) checkItem(item cart.Item) error {
	if !s.validateOnChange {
		return cart.CheckInvariants(item)
	}
	if err := cart.ValidateItem(item); err != nil {
		return err
	}
	if s.validateItem != nil {
		if msg := s.validateItem(item); msg != "" {
			return &cart.ValidationError{Field: "item", Value: item.ID, Message: msg}
		}
	}
	return nil
}

// commitLocked recomputes totals, clears the error slot and records the transition.
func (s *Store) commitLocked(kind TransitionKind, item *cart.Item, itemID, prevID string) {
	s.state.Totals = cart.ComputeTotals(s.state.Items, s.rates)
	s.state.UpdatedAt = s.now()
	if kind != TransitionCartLoaded && s.phase != PhaseUninitialized {
		s.err = nil
	}
	if s.interim != nil && kind != TransitionCartLoaded {
		s.interim.dirty = true
		switch kind {
		case TransitionItemAdded, TransitionItemUpdated:
			s.interim.touched[itemID] = true
			if prevID != "" {
				s.interim.touched[prevID] = false
			}
		case TransitionItemRemoved:
			s.interim.touched[itemID] = false
		}
	}
	t := &Transition{Kind: kind, ItemID: itemID, PreviousID: prevID, At: s.state.UpdatedAt}
	if item != nil {
		t.Item = cloneItem(*item)
	}
	s.publishLocked(t)
}

func (s *Store) setErrLocked(err error) {
	wasEmpty := s.err == nil
	s.err = err
	if wasEmpty {
		s.publishLocked(&Transition{Kind: TransitionError, Err: err, At: s.now()})
		return
	}
	s.publishLocked(nil)
}

// persistLocked hands the current snapshot to the adapter. Sync adapters are written
// inline, in commit order; async adapters go through the writer. Before the store is ready
// writes are held back and Initialize persists the merged result.
func (s *Store) persistLocked(op jobOp) *writeJob {
	switch s.phase {
	case PhaseUninitialized:
		if s.err == nil {
			s.setErrLocked(ErrNotInitialized)
		}
		return nil
	case PhaseLoading:
		return nil
	}
	state := s.state.Clone()
	if s.writer == nil {
		err := s.write(context.Background(), op, state)
		s.recordPersistLocked(err)
		return nil
	}
	return s.writer.enqueue(op, state)
}

func (s *Store) write(ctx context.Context, op jobOp, state cart.State) error {
	start := time.Now()
	var err error
	switch op {
	case opSave:
		err = s.adapter.Save(ctx, state)
	case opClear:
		err = s.adapter.Clear(ctx)
	default:
		err = fmt.Errorf("unknown write op %d", op)
	}
	s.metrics.ObservePersist(s.adapter.Backend(), time.Since(start))
	return err
}

func (s *Store) writeAsync(ctx context.Context, op jobOp, state cart.State) error {
	err := s.write(ctx, op, state)
	if err != nil {
		s.mu.Lock()
		s.recordPersistLocked(err)
		s.mu.Unlock()
		s.flush()
	}
	return err
}

func (s *Store) recordPersistLocked(err error) {
	if err == nil {
		return
	}
	s.metrics.IncPersistFailure(s.adapter.Backend())
	s.log.Error(s.logContext(context.Background(), opPersist), "cart persistence failed", err)
	s.setErrLocked(err)
}

// await blocks until job is done or ctx ends. The mutation stands either way.
func (s *Store) await(ctx context.Context, op string, job *writeJob) {
	if job == nil {
		return
	}
	if err := job.wait(ctx); err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		s.log.Debug(s.logContext(ctx, op), "stopped waiting for cart persistence")
	}
}

func (s *Store) logContext(ctx context.Context, op string) context.Context {
	return s.log.WithOperation(s.log.WithCartKey(ctx, s.storageKey), op)
}

func cloneItem(item cart.Item) *cart.Item {
	c := item.Clone()
	return &c
}
