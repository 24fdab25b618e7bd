package htlc

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"hashbridge/core/events"
	"hashbridge/core/types"
	"hashbridge/storage"
)

const (
	testAdmin    = "nhb1admin"
	testResolver = "nhb1resolver"
	testMaker    = "nhb1maker"
	testDenom    = "untrn"

	testNow    = int64(1_700_000_000)
	testHeight = uint64(100)

	helloHashlock = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
)

type captureEmitter struct {
	events []*types.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	c.events = append(c.events, typed.Event())
}

func (c *captureEmitter) last() *types.Event {
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func newTestEngine(t *testing.T) (*Engine, *State, *captureEmitter) {
	t.Helper()
	state := NewState(storage.NewMemDB())
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return testNow })
	engine.SetHeightFunc(func() uint64 { return testHeight })
	require.NoError(t, engine.Initialize(testAdmin, Config{MinSafetyDepositBps: 500, NativeDenom: testDenom}))
	return engine, state, emitter
}

func executeParams() ExecuteOrderParams {
	return ExecuteOrderParams{
		OrderID:        "order-1",
		Hashlock:       helloHashlock,
		Maker:          testMaker,
		Amount:         big.NewInt(1_000_000),
		ResolverFee:    big.NewInt(50_000),
		SourceChainID:  11155111,
		TimeoutSeconds: 3600,
	}
}

func TestInitializeSeedsAdminAsResolver(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	cfg, err := engine.Config()
	require.NoError(t, err)
	require.Equal(t, testAdmin, cfg.Admin)
	require.Equal(t, uint16(500), cfg.MinSafetyDepositBps)
	require.Equal(t, testDenom, cfg.NativeDenom)

	authorized, err := engine.IsAuthorizedResolver(testAdmin)
	require.NoError(t, err)
	require.True(t, authorized)

	count, err := engine.ResolverCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestInitializeTwiceFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	err := engine.Initialize(testAdmin, Config{MinSafetyDepositBps: 500, NativeDenom: testDenom})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitializeRejectsBadBps(t *testing.T) {
	state := NewState(storage.NewMemDB())
	engine := NewEngine()
	engine.SetState(state)
	err := engine.Initialize(testAdmin, Config{MinSafetyDepositBps: 10_001, NativeDenom: testDenom})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExecuteOrderComputesSafetyDeposit(t *testing.T) {
	engine, _, emitter := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))

	order, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)
	require.Equal(t, StatusMatched, order.Status)
	require.Equal(t, big.NewInt(50_000), order.SafetyDeposit)
	require.Equal(t, testMaker, order.Maker)
	require.Equal(t, testResolver, order.Resolver)
	require.Equal(t, uint64(testNow)+3600, order.Timelock)
	require.False(t, order.Preimage.Revealed())

	evt := emitter.last()
	require.NotNil(t, evt)
	require.Equal(t, EventTypeOrderCreated, evt.Type)
	require.Equal(t, "order-1", evt.Attributes["order_id"])
	require.Equal(t, helloHashlock, evt.Attributes["hashlock"])
	require.Equal(t, "11155111", evt.Attributes["source_chain_id"])
}

func TestExecuteOrderInsufficientFunds(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))

	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_099_999), executeParams())
	require.ErrorIs(t, err, ErrInsufficientSafetyDeposit)

	var depositErr *InsufficientSafetyDepositError
	require.ErrorAs(t, err, &depositErr)
	require.Equal(t, big.NewInt(1_100_000), depositErr.Expected)
	require.Equal(t, big.NewInt(1_099_999), depositErr.Actual)

	// The failed call must leave no order behind.
	_, err = engine.GetOrder("order-1")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestExecuteOrderUnauthorizedResolver(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.ExecuteOrder("nhb1stranger", big.NewInt(1_100_000), executeParams())
	require.ErrorIs(t, err, ErrUnauthorizedResolver)

	orders, err := engine.ListOrders(nil, "", 0)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestExecuteOrderDuplicateID(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))

	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	_, err = engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.ErrorIs(t, err, ErrOrderAlreadyExists)
}

func TestExecuteOrderInvalidHashlock(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))

	p := executeParams()
	p.Hashlock = "tooshort"
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), p)
	require.ErrorIs(t, err, ErrInvalidHashlock)

	p = executeParams()
	p.Hashlock = "zz" + helloHashlock[2:]
	_, err = engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), p)
	require.ErrorIs(t, err, ErrInvalidHashlock)
}

func TestExecuteOrderZeroTimeout(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))

	p := executeParams()
	p.TimeoutSeconds = 0
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), p)
	require.ErrorIs(t, err, ErrInvalidTimelock)
}

func TestExecuteOrderTimeoutOverflow(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))

	// A timeout that wraps the expiry past the uint64 range would produce an
	// order that is already expired at creation.
	p := executeParams()
	p.TimeoutSeconds = math.MaxUint64
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), p)
	require.ErrorIs(t, err, ErrInvalidTimelock)

	_, err = engine.GetOrder("order-1")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestExecuteOrderAcceptsUppercaseHashlock(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))

	p := executeParams()
	p.Hashlock = "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"
	order, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), p)
	require.NoError(t, err)
	require.Equal(t, helloHashlock, order.Hashlock)

	_, _, err = engine.Claim(testResolver, "order-1", "hello")
	require.NoError(t, err)
}

func TestClaimHappyPath(t *testing.T) {
	engine, _, emitter := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	order, transfers, err := engine.Claim(testResolver, "order-1", "hello")
	require.NoError(t, err)
	require.Equal(t, StatusClaimed, order.Status)

	secret, revealed := order.Preimage.Secret()
	require.True(t, revealed)
	require.Equal(t, "hello", secret)

	require.Len(t, transfers, 3)
	require.Equal(t, Transfer{To: testMaker, Amount: big.NewInt(1_000_000), Denom: testDenom}, transfers[0])
	require.Equal(t, Transfer{To: testResolver, Amount: big.NewInt(50_000), Denom: testDenom}, transfers[1])
	require.Equal(t, Transfer{To: testResolver, Amount: big.NewInt(50_000), Denom: testDenom}, transfers[2])

	evt := emitter.last()
	require.Equal(t, EventTypeOrderClaimed, evt.Type)
	require.Equal(t, "hello", evt.Attributes["preimage"])

	stored, err := engine.GetOrder("order-1")
	require.NoError(t, err)
	require.Equal(t, StatusClaimed, stored.Status)
}

func TestClaimWrongPreimage(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	_, _, err = engine.Claim(testResolver, "order-1", "wrong")
	require.ErrorIs(t, err, ErrInvalidPreimage)

	stored, err := engine.GetOrder("order-1")
	require.NoError(t, err)
	require.Equal(t, StatusMatched, stored.Status)
	require.False(t, stored.Preimage.Revealed())
}

func TestClaimWrongCaller(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	_, _, err = engine.Claim(testMaker, "order-1", "hello")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClaimAfterTimeout(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	engine.SetNowFunc(func() int64 { return testNow + 3600 })
	_, _, err = engine.Claim(testResolver, "order-1", "hello")
	require.ErrorIs(t, err, ErrTimelockExpired)
}

func TestClaimMissingOrder(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, _, err := engine.Claim(testResolver, "missing", "hello")
	require.ErrorIs(t, err, ErrOrderNotFound)

	var notFound *OrderNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "missing", notFound.ID)
}

func TestRefundBeforeTimeout(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	_, _, err = engine.Refund(testResolver, "order-1")
	require.ErrorIs(t, err, ErrTimelockNotExpired)
}

func TestRefundFusionReturnsEverythingToResolver(t *testing.T) {
	engine, _, emitter := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	engine.SetNowFunc(func() int64 { return testNow + 3600 })
	order, transfers, err := engine.Refund(testResolver, "order-1")
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, order.Status)
	require.Len(t, transfers, 1)
	require.Equal(t, Transfer{To: testResolver, Amount: big.NewInt(1_100_000), Denom: testDenom}, transfers[0])
	require.Equal(t, EventTypeOrderRefunded, emitter.last().Type)
}

func TestRefundByMakerAllowedForFusion(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	engine.SetNowFunc(func() int64 { return testNow + 3600 })
	_, _, err = engine.Refund(testMaker, "order-1")
	require.NoError(t, err)
}

func TestRefundByStrangerRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	engine.SetNowFunc(func() int64 { return testNow + 3600 })
	_, _, err = engine.Refund("nhb1stranger", "order-1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestDoubleClaimAndDoubleRefund(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	_, _, err = engine.Claim(testResolver, "order-1", "hello")
	require.NoError(t, err)

	// Claiming again is an invalid status; refunding a claimed order reports
	// the claim specifically.
	_, _, err = engine.Claim(testResolver, "order-1", "hello")
	require.ErrorIs(t, err, ErrInvalidOrderStatus)

	engine.SetNowFunc(func() int64 { return testNow + 3600 })
	_, _, err = engine.Refund(testResolver, "order-1")
	require.ErrorIs(t, err, ErrOrderAlreadyClaimed)
}

func TestRefundTwiceFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	engine.SetNowFunc(func() int64 { return testNow + 3600 })
	_, _, err = engine.Refund(testResolver, "order-1")
	require.NoError(t, err)

	_, _, err = engine.Refund(testResolver, "order-1")
	require.ErrorIs(t, err, ErrOrderAlreadyRefunded)
}

func TestAddRemoveResolverAdminOnly(t *testing.T) {
	engine, _, emitter := newTestEngine(t)

	require.ErrorIs(t, engine.AddResolver(testMaker, testResolver), ErrUnauthorized)

	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	require.Equal(t, EventTypeResolverAdded, emitter.last().Type)

	// Idempotent: re-adding changes nothing and emits nothing.
	before := len(emitter.events)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	require.Len(t, emitter.events, before)

	count, err := engine.ResolverCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	require.ErrorIs(t, engine.RemoveResolver(testMaker, testResolver), ErrUnauthorized)
	require.NoError(t, engine.RemoveResolver(testAdmin, testResolver))
	require.NoError(t, engine.RemoveResolver(testAdmin, testResolver))

	count, err = engine.ResolverCount()
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	authorized, err := engine.IsAuthorizedResolver(testResolver)
	require.NoError(t, err)
	require.False(t, authorized)
}

func TestUpdateConfig(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	bps := uint16(0)
	_, err := engine.UpdateConfig(testAdmin, nil, &bps)
	require.ErrorIs(t, err, ErrInvalidConfig)

	bps = 10_001
	_, err = engine.UpdateConfig(testAdmin, nil, &bps)
	require.ErrorIs(t, err, ErrInvalidConfig)

	bps = 1000
	cfg, err := engine.UpdateConfig(testAdmin, nil, &bps)
	require.NoError(t, err)
	require.Equal(t, uint16(1000), cfg.MinSafetyDepositBps)

	_, err = engine.UpdateConfig(testMaker, nil, &bps)
	require.ErrorIs(t, err, ErrUnauthorized)

	newAdmin := testMaker
	cfg, err = engine.UpdateConfig(testAdmin, &newAdmin, nil)
	require.NoError(t, err)
	require.Equal(t, testMaker, cfg.Admin)

	// The old admin lost its privileges with the rotation.
	_, err = engine.UpdateConfig(testAdmin, nil, &bps)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateConfigOnlyAffectsNewOrders(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	require.NoError(t, engine.AddResolver(testAdmin, testResolver))
	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1_100_000), executeParams())
	require.NoError(t, err)

	bps := uint16(1000)
	_, err = engine.UpdateConfig(testAdmin, nil, &bps)
	require.NoError(t, err)

	order, err := engine.GetOrder("order-1")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50_000), order.SafetyDeposit)

	p := executeParams()
	p.OrderID = "order-2"
	order, err = engine.ExecuteOrder(testResolver, big.NewInt(1_150_000), p)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_000), order.SafetyDeposit)
}

func TestOperationsBeforeInitialize(t *testing.T) {
	engine := NewEngine()
	engine.SetState(NewState(storage.NewMemDB()))

	_, err := engine.ExecuteOrder(testResolver, big.NewInt(1), executeParams())
	require.ErrorIs(t, err, ErrNotInitialized)

	_, _, err = engine.Claim(testResolver, "order-1", "hello")
	require.ErrorIs(t, err, ErrNotInitialized)
}
