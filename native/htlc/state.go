package htlc

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"hashbridge/storage"
)

const (
	defaultPageLimit = 30
	maxPageLimit     = 100
)

// State persists orders, the resolver registry and the module config in the
// underlying key-value store. It owns the stored records exclusively; callers
// only ever see clones.
type State struct {
	db storage.Database
}

// NewState binds the escrow state to the provided storage backend.
func NewState(db storage.Database) *State {
	return &State{db: db}
}

type storedOrder struct {
	ID                 string
	Variant            uint8
	Maker              string
	Resolver           string
	Amount             *big.Int
	ResolverFee        *big.Int
	SafetyDeposit      *big.Int
	Hashlock           string
	Timelocks          string
	PreimageRevealed   bool
	Preimage           string
	Timelock           uint64
	SourceChainID      uint64
	DestinationChain   string
	DestinationToken   string
	DestinationAmount  *big.Int
	DestinationAddress string
	Status             uint8
	CreatedAt          uint64
}

func toStoredOrder(order *Order) (*storedOrder, error) {
	sanitized, err := SanitizeOrder(order)
	if err != nil {
		return nil, err
	}
	createdAt := uint64(0)
	if sanitized.CreatedAt > 0 {
		createdAt = uint64(sanitized.CreatedAt)
	}
	stored := &storedOrder{
		ID:                 sanitized.ID,
		Variant:            uint8(sanitized.Variant),
		Maker:              sanitized.Maker,
		Resolver:           sanitized.Resolver,
		Amount:             sanitized.Amount,
		ResolverFee:        sanitized.ResolverFee,
		SafetyDeposit:      sanitized.SafetyDeposit,
		Hashlock:           sanitized.Hashlock,
		Timelocks:          sanitized.Timelocks,
		Timelock:           sanitized.Timelock,
		SourceChainID:      sanitized.SourceChainID,
		DestinationChain:   sanitized.DestinationChain,
		DestinationToken:   sanitized.DestinationToken,
		DestinationAmount:  sanitized.DestinationAmount,
		DestinationAddress: sanitized.DestinationAddress,
		Status:             uint8(sanitized.Status),
		CreatedAt:          createdAt,
	}
	if secret, ok := sanitized.Preimage.Secret(); ok {
		stored.PreimageRevealed = true
		stored.Preimage = secret
	}
	return stored, nil
}

func fromStoredOrder(stored *storedOrder) (*Order, error) {
	if stored == nil {
		return nil, fmt.Errorf("htlc: nil stored order")
	}
	createdAt, err := uint64ToInt64(stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("htlc: created at overflow: %w", err)
	}
	order := &Order{
		ID:                 stored.ID,
		Variant:            Variant(stored.Variant),
		Maker:              stored.Maker,
		Resolver:           stored.Resolver,
		Amount:             cloneBigInt(stored.Amount),
		ResolverFee:        cloneBigInt(stored.ResolverFee),
		SafetyDeposit:      cloneBigInt(stored.SafetyDeposit),
		Hashlock:           stored.Hashlock,
		Timelocks:          stored.Timelocks,
		Timelock:           stored.Timelock,
		SourceChainID:      stored.SourceChainID,
		DestinationChain:   stored.DestinationChain,
		DestinationToken:   stored.DestinationToken,
		DestinationAmount:  cloneBigInt(stored.DestinationAmount),
		DestinationAddress: stored.DestinationAddress,
		Status:             OrderStatus(stored.Status),
		CreatedAt:          createdAt,
	}
	if stored.PreimageRevealed {
		order.Preimage = RevealedPreimage(stored.Preimage)
	}
	return SanitizeOrder(order)
}

// OrderCreate persists a new order, enforcing key uniqueness.
func (s *State) OrderCreate(order *Order) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	stored, err := toStoredOrder(order)
	if err != nil {
		return err
	}
	key := orderKey(stored.ID)
	exists, err := s.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return &OrderAlreadyExistsError{ID: stored.ID}
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

// OrderPut overwrites an existing order in place.
func (s *State) OrderPut(order *Order) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	stored, err := toStoredOrder(order)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(orderKey(stored.ID), encoded)
}

// OrderGet loads an order by identifier.
func (s *State) OrderGet(orderID string) (*Order, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, ErrNilState
	}
	encoded, err := s.db.Get(orderKey(orderID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedOrder
	if err := rlp.DecodeBytes(encoded, &stored); err != nil {
		return nil, false, err
	}
	order, err := fromStoredOrder(&stored)
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// OrdersList returns up to limit orders in ascending key order, optionally
// filtered by status. startAfter is an exclusive cursor; the zero limit falls
// back to the default page size and anything above the cap is clamped.
func (s *State) OrdersList(status *OrderStatus, startAfter string, limit int) ([]*Order, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilState
	}
	pageSize := clampLimit(limit)
	var start []byte
	if trimmed := strings.TrimSpace(startAfter); trimmed != "" {
		start = orderKey(trimmed)
	}
	it := s.db.NewIterator(orderPrefix, start)
	defer it.Release()

	orders := make([]*Order, 0, pageSize)
	for it.Next() {
		var stored storedOrder
		if err := rlp.DecodeBytes(it.Value(), &stored); err != nil {
			return nil, err
		}
		order, err := fromStoredOrder(&stored)
		if err != nil {
			return nil, err
		}
		if status != nil && order.Status != *status {
			continue
		}
		orders = append(orders, order)
		if len(orders) >= pageSize {
			break
		}
	}
	return orders, nil
}

// ResolverAdd authorizes a resolver. Returns true when the entry was newly
// added; re-adding an existing resolver is a no-op and does not double-count.
func (s *State) ResolverAdd(addr string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrNilState
	}
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return false, fmt.Errorf("htlc: resolver address required")
	}
	key := resolverKey(trimmed)
	exists, err := s.db.Has(key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.db.Put(key, []byte{1}); err != nil {
		return false, err
	}
	count, err := s.ResolverCount()
	if err != nil {
		return false, err
	}
	return true, s.putResolverCount(count + 1)
}

// ResolverRemove revokes a resolver. Removing an absent entry is a no-op.
func (s *State) ResolverRemove(addr string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrNilState
	}
	key := resolverKey(addr)
	exists, err := s.db.Has(key)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := s.db.Delete(key); err != nil {
		return false, err
	}
	count, err := s.ResolverCount()
	if err != nil {
		return false, err
	}
	if count > 0 {
		count--
	}
	return true, s.putResolverCount(count)
}

// ResolverAuthorized reports whether the address is in the registry.
func (s *State) ResolverAuthorized(addr string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrNilState
	}
	return s.db.Has(resolverKey(addr))
}

// ResolversList returns up to limit resolver addresses in lexicographic
// order with the same exclusive-cursor pagination as OrdersList.
func (s *State) ResolversList(startAfter string, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilState
	}
	pageSize := clampLimit(limit)
	var start []byte
	if trimmed := strings.TrimSpace(startAfter); trimmed != "" {
		start = resolverKey(trimmed)
	}
	it := s.db.NewIterator(resolverPrefix, start)
	defer it.Release()

	resolvers := make([]string, 0, pageSize)
	for it.Next() {
		resolvers = append(resolvers, string(it.Key()[len(resolverPrefix):]))
		if len(resolvers) >= pageSize {
			break
		}
	}
	return resolvers, nil
}

// ResolverCount returns the number of authorized resolvers.
func (s *State) ResolverCount() (uint64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNilState
	}
	encoded, err := s.db.Get(resolverCountKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count uint64
	if err := rlp.DecodeBytes(encoded, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *State) putResolverCount(count uint64) error {
	encoded, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	return s.db.Put(resolverCountKey, encoded)
}

type storedConfig struct {
	Admin               string
	MinSafetyDepositBps uint16
	NativeDenom         string
}

// ConfigPut persists the module configuration.
func (s *State) ConfigPut(cfg Config) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedConfig{
		Admin:               strings.TrimSpace(cfg.Admin),
		MinSafetyDepositBps: cfg.MinSafetyDepositBps,
		NativeDenom:         strings.TrimSpace(cfg.NativeDenom),
	})
	if err != nil {
		return err
	}
	return s.db.Put(configKey, encoded)
}

// ConfigGet loads the module configuration.
func (s *State) ConfigGet() (Config, bool, error) {
	if s == nil || s.db == nil {
		return Config{}, false, ErrNilState
	}
	encoded, err := s.db.Get(configKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, err
	}
	var stored storedConfig
	if err := rlp.DecodeBytes(encoded, &stored); err != nil {
		return Config{}, false, err
	}
	return Config{
		Admin:               stored.Admin,
		MinSafetyDepositBps: stored.MinSafetyDepositBps,
		NativeDenom:         stored.NativeDenom,
	}, true, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

func uint64ToInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds int64 range", value)
	}
	return int64(value), nil
}
