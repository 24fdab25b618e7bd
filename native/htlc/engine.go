package htlc

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"hashbridge/core/events"
	"hashbridge/core/types"
)

type engineState interface {
	OrderCreate(*Order) error
	OrderPut(*Order) error
	OrderGet(orderID string) (*Order, bool, error)
	OrdersList(status *OrderStatus, startAfter string, limit int) ([]*Order, error)
	ResolverAdd(addr string) (bool, error)
	ResolverRemove(addr string) (bool, error)
	ResolverAuthorized(addr string) (bool, error)
	ResolversList(startAfter string, limit int) ([]string, error)
	ResolverCount() (uint64, error)
	ConfigPut(Config) error
	ConfigGet() (Config, bool, error)
}

type htlcEvent struct {
	evt *types.Event
}

func (e htlcEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e htlcEvent) Event() *types.Event { return e.evt }

// Engine wires the escrow state machine with external state and event
// emitters. It holds no persistent state of its own: every operation is a
// transition over the order store, resolver registry and config.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	nowFn    func() int64
	heightFn func() uint64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		heightFn: func() uint64 { return 0 },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the wall-clock source used for fusion-variant
// timelocks. Primarily intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetHeightFunc overrides the block-height source used for two-step variant
// timelocks.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height == nil {
		e.heightFn = func() uint64 { return 0 }
		return
	}
	e.heightFn = height
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(htlcEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) height() uint64 {
	if e == nil || e.heightFn == nil {
		return 0
	}
	return e.heightFn()
}

// clockFor selects the timelock clock for the order's variant: wall clock for
// fusion orders, block height for two-step orders.
func (e *Engine) clockFor(order *Order) uint64 {
	if order.Variant == VariantHTLC {
		return e.height()
	}
	now := e.now()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

func (e *Engine) config() (Config, error) {
	if e == nil || e.state == nil {
		return Config{}, ErrNilState
	}
	cfg, ok, err := e.state.ConfigGet()
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, ErrNotInitialized
	}
	return cfg, nil
}

func (e *Engine) loadOrder(orderID string) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	order, ok, err := e.state.OrderGet(orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &OrderNotFoundError{ID: strings.TrimSpace(orderID)}
	}
	return order, nil
}

// Initialize seeds the module config and authorizes the instantiating caller
// as the first resolver. The admin defaults to the caller and the deposit
// ratio to DefaultMinSafetyDepositBps when unset.
func (e *Engine) Initialize(caller string, cfg Config) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if _, ok, err := e.state.ConfigGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if strings.TrimSpace(cfg.Admin) == "" {
		cfg.Admin = strings.TrimSpace(caller)
	}
	if cfg.MinSafetyDepositBps == 0 {
		cfg.MinSafetyDepositBps = DefaultMinSafetyDepositBps
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.state.ConfigPut(cfg); err != nil {
		return err
	}
	_, err := e.state.ResolverAdd(strings.TrimSpace(caller))
	return err
}

// ExecuteOrderParams carries the fusion-variant creation inputs. The caller
// attaches amount + resolver_fee + safety_deposit of the native denom and the
// order is persisted directly as matched.
type ExecuteOrderParams struct {
	OrderID        string
	Hashlock       string
	Timelocks      string
	Maker          string
	Amount         *big.Int
	ResolverFee    *big.Int
	SourceChainID  uint64
	TimeoutSeconds uint64
}

// ExecuteOrder executes a fusion order in a single call. Only authorized
// resolvers may execute; the attached funds must cover the principal, the
// resolver fee and the safety deposit derived from the current config ratio.
func (e *Engine) ExecuteOrder(caller string, funds *big.Int, p ExecuteOrderParams) (*Order, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	resolver := strings.TrimSpace(caller)
	authorized, err := e.state.ResolverAuthorized(resolver)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, ErrUnauthorizedResolver
	}
	orderID := strings.TrimSpace(p.OrderID)
	if _, ok, err := e.state.OrderGet(orderID); err != nil {
		return nil, err
	} else if ok {
		return nil, &OrderAlreadyExistsError{ID: orderID}
	}
	hashlock, err := NormalizeHashlock(p.Hashlock)
	if err != nil {
		return nil, err
	}
	if p.TimeoutSeconds == 0 {
		return nil, ErrInvalidTimelock
	}
	amount := cloneBigInt(p.Amount)
	fee := cloneBigInt(p.ResolverFee)
	deposit, err := requiredSafetyDeposit(amount, cfg.MinSafetyDepositBps)
	if err != nil {
		return nil, err
	}
	expected, err := checkedAdd(amount, fee)
	if err != nil {
		return nil, err
	}
	expected, err = checkedAdd(expected, deposit)
	if err != nil {
		return nil, err
	}
	sent := cloneBigInt(funds)
	if sent.Cmp(expected) < 0 {
		return nil, &InsufficientSafetyDepositError{Expected: expected, Actual: sent}
	}
	now := e.now()
	createdAt := uint64(0)
	if now > 0 {
		createdAt = uint64(now)
	}
	timelock := createdAt + p.TimeoutSeconds
	if timelock < createdAt {
		return nil, ErrInvalidTimelock
	}
	order := &Order{
		ID:            orderID,
		Variant:       VariantFusion,
		Maker:         strings.TrimSpace(p.Maker),
		Resolver:      resolver,
		Amount:        amount,
		ResolverFee:   fee,
		SafetyDeposit: deposit,
		Hashlock:      hashlock,
		Timelocks:     strings.TrimSpace(p.Timelocks),
		Timelock:      timelock,
		SourceChainID: p.SourceChainID,
		Status:        StatusMatched,
		CreatedAt:     now,
	}
	if err := e.state.OrderCreate(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderCreatedEvent(order))
	return order.Clone(), nil
}

// Claim completes the swap: the order's resolver reveals the preimage before
// the timelock expires and the engine returns the terminal disbursements.
func (e *Engine) Claim(caller, orderID, preimage string) (*Order, []Transfer, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, nil, err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Resolver == "" || strings.TrimSpace(caller) != order.Resolver {
		return nil, nil, ErrUnauthorized
	}
	if !canTransition(order.Status, StatusClaimed) {
		return nil, nil, &InvalidOrderStatusError{Status: order.Status}
	}
	if e.clockFor(order) >= order.Timelock {
		return nil, nil, ErrTimelockExpired
	}
	if !verifyPreimage(preimage, order.Hashlock) {
		return nil, nil, ErrInvalidPreimage
	}
	order.Preimage = RevealedPreimage(preimage)
	order.Status = StatusClaimed
	transfers, err := payouts(order, cfg.NativeDenom)
	if err != nil {
		return nil, nil, err
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, nil, err
	}
	e.emit(NewOrderClaimedEvent(order))
	return order.Clone(), transfers, nil
}

// Refund unwinds an unclaimed order at or after its timelock. Fusion orders
// may be refunded by the maker or the resolver; two-step orders only by the
// maker who locked the principal.
func (e *Engine) Refund(caller, orderID string) (*Order, []Transfer, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, nil, err
	}
	order, err := e.loadOrder(orderID)
	if err != nil {
		return nil, nil, err
	}
	if e.clockFor(order) < order.Timelock {
		return nil, nil, ErrTimelockNotExpired
	}
	switch order.Status {
	case StatusClaimed:
		return nil, nil, ErrOrderAlreadyClaimed
	case StatusRefunded:
		return nil, nil, ErrOrderAlreadyRefunded
	}
	trimmed := strings.TrimSpace(caller)
	switch order.Variant {
	case VariantFusion:
		if trimmed != order.Maker && trimmed != order.Resolver {
			return nil, nil, ErrUnauthorized
		}
	default:
		if trimmed != order.Maker {
			return nil, nil, ErrUnauthorized
		}
	}
	if !canTransition(order.Status, StatusRefunded) {
		return nil, nil, &InvalidOrderStatusError{Status: order.Status}
	}
	order.Status = StatusRefunded
	transfers, err := payouts(order, cfg.NativeDenom)
	if err != nil {
		return nil, nil, err
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, nil, err
	}
	e.emit(NewOrderRefundedEvent(order))
	return order.Clone(), transfers, nil
}

// AddResolver authorizes a resolver. Admin only; re-adding is a no-op.
func (e *Engine) AddResolver(caller, resolver string) error {
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if strings.TrimSpace(caller) != cfg.Admin {
		return ErrUnauthorized
	}
	added, err := e.state.ResolverAdd(strings.TrimSpace(resolver))
	if err != nil {
		return err
	}
	if added {
		e.emit(NewResolverAddedEvent(strings.TrimSpace(resolver)))
	}
	return nil
}

// RemoveResolver revokes a resolver. Admin only; removing an absent entry is
// a no-op.
func (e *Engine) RemoveResolver(caller, resolver string) error {
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if strings.TrimSpace(caller) != cfg.Admin {
		return ErrUnauthorized
	}
	removed, err := e.state.ResolverRemove(strings.TrimSpace(resolver))
	if err != nil {
		return err
	}
	if removed {
		e.emit(NewResolverRemovedEvent(strings.TrimSpace(resolver)))
	}
	return nil
}

// UpdateConfig rotates the admin and/or adjusts the deposit ratio. Existing
// orders keep the safety deposit computed at their creation time.
func (e *Engine) UpdateConfig(caller string, newAdmin *string, newBps *uint16) (Config, error) {
	cfg, err := e.config()
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(caller) != cfg.Admin {
		return Config{}, ErrUnauthorized
	}
	if newAdmin != nil {
		admin := strings.TrimSpace(*newAdmin)
		if admin == "" {
			return Config{}, ErrUnauthorized
		}
		cfg.Admin = admin
	}
	if newBps != nil {
		if *newBps == 0 || *newBps > bpsDenominator {
			return Config{}, ErrInvalidConfig
		}
		cfg.MinSafetyDepositBps = *newBps
	}
	if err := e.state.ConfigPut(cfg); err != nil {
		return Config{}, err
	}
	e.emit(NewConfigUpdatedEvent(cfg))
	return cfg, nil
}

// GetOrder returns the stored order by identifier.
func (e *Engine) GetOrder(orderID string) (*Order, error) {
	return e.loadOrder(orderID)
}

// ListOrders pages through stored orders in ascending key order, optionally
// filtered by status.
func (e *Engine) ListOrders(status *OrderStatus, startAfter string, limit int) ([]*Order, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.OrdersList(status, startAfter, limit)
}

// IsAuthorizedResolver reports registry membership.
func (e *Engine) IsAuthorizedResolver(addr string) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	return e.state.ResolverAuthorized(strings.TrimSpace(addr))
}

// ListResolvers pages through the registry in lexicographic order.
func (e *Engine) ListResolvers(startAfter string, limit int) ([]string, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.ResolversList(startAfter, limit)
}

// ResolverCount returns the number of authorized resolvers.
func (e *Engine) ResolverCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.ResolverCount()
}

// Config returns the current module configuration.
func (e *Engine) Config() (Config, error) {
	return e.config()
}

// verifyPreimage hashes the candidate secret with SHA-256 and compares the
// hex digest against the hashlock, case-insensitively.
func verifyPreimage(preimage, hashlock string) bool {
	digest := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(digest[:]) == strings.ToLower(hashlock)
}
