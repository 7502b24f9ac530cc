package appstate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/localstore"
)

// Storage keys shared with earlier clients.
const (
	KeyUserInfo        = "userInfo"
	KeyCartItems       = "cartItems"
	KeyShippingAddress = "shippingAddress"
	KeyPaymentMethod   = "paymentMethod"
)

const persistTimeout = 5 * time.Second

// Store holds the current State and mirrors session and cart to durable storage.
type Store struct {
	storage localstore.Storage
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	persisted map[string]string

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New rehydrates a Store from storage. Unreadable or malformed entries are
// logged and treated as absent.
func New(ctx context.Context, storage localstore.Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if storage == nil {
		storage = localstore.NewMemory()
	}
	s := &Store{
		storage:   storage,
		logger:    logger,
		persisted: make(map[string]string),
		subs:      make(map[int]func(State)),
	}
	s.state = s.rehydrate(ctx)
	return s
}

func (s *Store) rehydrate(ctx context.Context) State {
	var st State

	var sess Session
	if s.load(ctx, KeyUserInfo, &sess) {
		st.Session = &sess
	}
	var items []CartLine
	if s.load(ctx, KeyCartItems, &items) && len(items) > 0 {
		st.Cart.Items = items
	}
	var addr domain.ShippingAddress
	if s.load(ctx, KeyShippingAddress, &addr) {
		st.Cart.ShippingAddress = addr
	}

	raw, ok, err := s.storage.Get(ctx, KeyPaymentMethod)
	if err != nil {
		s.logger.Warn("read stored state", "key", KeyPaymentMethod, "err", err)
	} else if ok {
		st.Cart.PaymentMethod = raw
		s.persisted[KeyPaymentMethod] = raw
	}
	return st
}

func (s *Store) load(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Warn("read stored state", "key", key, "err", err)
		return false
	}
	if !ok || raw == "" || raw == "null" {
		return false
	}
	s.persisted[key] = raw
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("discarding malformed stored state", "key", key, "err", err)
		return false
	}
	return true
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies in and returns the resulting state. It never fails;
// storage errors are logged.
func (s *Store) Dispatch(in Intent) State {
	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, in)
	s.state = next
	s.persist(next)
	out := next.Clone()
	s.mu.Unlock()

	s.notify(out)
	return out
}

// persist writes the keys whose encoded value changed since the last write.
// Callers hold s.mu.
func (s *Store) persist(st State) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	for key, val := range s.encode(st) {
		if cur, ok := s.persisted[key]; ok && cur == val {
			continue
		}
		if _, ok := s.persisted[key]; !ok && val == "" {
			continue
		}

		var err error
		if val == "" {
			err = s.storage.Remove(ctx, key)
		} else {
			err = s.storage.Set(ctx, key, val)
		}
		if err != nil {
			s.logger.Error("persist state", "key", key, "err", err)
			continue
		}
		if val == "" {
			delete(s.persisted, key)
		} else {
			s.persisted[key] = val
		}
	}
}

// encode maps each storage key to its serialized value; "" means remove.
// Values that fail to marshal are left out.
func (s *Store) encode(st State) map[string]string {
	out := make(map[string]string, 4)

	put := func(key string, v any) {
		b, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("encode state", "key", key, "err", err)
			return
		}
		out[key] = string(b)
	}

	if st.Session != nil {
		put(KeyUserInfo, st.Session)
	} else {
		out[KeyUserInfo] = ""
	}
	items := st.Cart.Items
	if items == nil {
		items = []CartLine{}
	}
	put(KeyCartItems, items)
	put(KeyShippingAddress, st.Cart.ShippingAddress)
	out[KeyPaymentMethod] = st.Cart.PaymentMethod
	return out
}

// Subscribe registers fn to run after every dispatch. The returned func
// removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st.Clone())
	}
}
