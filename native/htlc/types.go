package htlc

import (
	"fmt"
	"math/big"
	"strings"
)

// Variant selects which instantiation of the escrow state machine governs an
// order: the single-call fusion flow where the resolver locks everything up
// front, or the two-step flow where the maker locks principal first and a
// resolver matches with a safety deposit afterwards.
type Variant uint8

const (
	// VariantFusion orders are created directly in StatusMatched by an
	// authorized resolver attaching amount, fee and safety deposit.
	VariantFusion Variant = iota
	// VariantHTLC orders start in StatusPending with maker funds locked and
	// wait for a resolver to match.
	VariantHTLC
)

// Valid reports whether the variant value is within the supported range.
func (v Variant) Valid() bool {
	switch v {
	case VariantFusion, VariantHTLC:
		return true
	default:
		return false
	}
}

func (v Variant) String() string {
	switch v {
	case VariantFusion:
		return "fusion"
	case VariantHTLC:
		return "htlc"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// OrderStatus represents the lifecycle states of an escrow order.
type OrderStatus uint8

const (
	StatusPending OrderStatus = iota
	StatusMatched
	StatusClaimed
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusMatched, StatusClaimed, StatusRefunded:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusMatched:
		return "matched"
	case StatusClaimed:
		return "claimed"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusClaimed || s == StatusRefunded
}

// transitions is the explicit table of legal status moves. Anything not listed
// is rejected; terminal states have no outgoing edges.
var transitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {StatusMatched: true, StatusRefunded: true},
	StatusMatched: {StatusClaimed: true, StatusRefunded: true},
}

func canTransition(from, to OrderStatus) bool {
	return transitions[from][to]
}

// ParseStatus maps the canonical lowercase status name back to its value.
func ParseStatus(name string) (OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pending":
		return StatusPending, nil
	case "matched":
		return StatusMatched, nil
	case "claimed":
		return StatusClaimed, nil
	case "refunded":
		return StatusRefunded, nil
	default:
		return 0, fmt.Errorf("htlc: unknown order status %q", name)
	}
}

// Preimage models the optional hashlock secret. The zero value means
// unrevealed; a revealed preimage is constructed once via RevealedPreimage and
// never mutated, so "preimage set ⟺ claimed" is enforced structurally.
type Preimage struct {
	revealed bool
	secret   string
}

// RevealedPreimage wraps a secret revealed during a successful claim.
func RevealedPreimage(secret string) Preimage {
	return Preimage{revealed: true, secret: secret}
}

// Revealed reports whether the secret has been disclosed.
func (p Preimage) Revealed() bool { return p.revealed }

// Secret returns the disclosed secret, if any.
func (p Preimage) Secret() (string, bool) {
	if !p.revealed {
		return "", false
	}
	return p.secret, true
}

// Order captures a single escrow agreement between a maker and a resolver,
// keyed by an externally supplied identifier. Maker, resolver, amounts and
// hashlock are immutable once set; only status and preimage advance.
type Order struct {
	ID            string
	Variant       Variant
	Maker         string
	Resolver      string // empty until matched in the two-step variant
	Amount        *big.Int
	ResolverFee   *big.Int
	SafetyDeposit *big.Int
	Hashlock      string // 64 lowercase hex characters
	Timelocks     string // packed relay timelock stages, informational
	Preimage      Preimage
	// Timelock is the absolute expiry: unix seconds for the fusion variant,
	// block height for the two-step variant.
	Timelock      uint64
	SourceChainID uint64

	DestinationChain   string
	DestinationToken   string
	DestinationAmount  *big.Int
	DestinationAddress string

	Status    OrderStatus
	CreatedAt int64
}

// Clone returns a deep copy of the order so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Amount = cloneBigInt(o.Amount)
	clone.ResolverFee = cloneBigInt(o.ResolverFee)
	clone.SafetyDeposit = cloneBigInt(o.SafetyDeposit)
	clone.DestinationAmount = cloneBigInt(o.DestinationAmount)
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// NormalizeHashlock validates the 64-hex-character commitment and returns the
// canonical lowercase form.
func NormalizeHashlock(hashlock string) (string, error) {
	trimmed := strings.TrimSpace(hashlock)
	if len(trimmed) != 64 {
		return "", ErrInvalidHashlock
	}
	lowered := strings.ToLower(trimmed)
	for _, c := range lowered {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", ErrInvalidHashlock
		}
	}
	return lowered, nil
}

// SanitizeOrder validates and normalises the supplied order, returning a
// cloned instance with canonical hashlock casing and non-nil amount fields.
// The function does not mutate the original value.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("htlc: nil order")
	}
	clone := o.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("htlc: order id required")
	}
	if !clone.Variant.Valid() {
		return nil, fmt.Errorf("htlc: invalid order variant: %d", clone.Variant)
	}
	if !clone.Status.Valid() {
		return nil, &InvalidOrderStatusError{Status: clone.Status}
	}
	clone.Maker = strings.TrimSpace(clone.Maker)
	if clone.Maker == "" {
		return nil, fmt.Errorf("htlc: order maker required")
	}
	clone.Resolver = strings.TrimSpace(clone.Resolver)
	if clone.Resolver == "" && clone.Status != StatusPending && clone.Status != StatusRefunded {
		return nil, fmt.Errorf("htlc: order resolver required in status %s", clone.Status)
	}
	hashlock, err := NormalizeHashlock(clone.Hashlock)
	if err != nil {
		return nil, err
	}
	clone.Hashlock = hashlock
	for _, amount := range []*big.Int{clone.Amount, clone.ResolverFee, clone.SafetyDeposit, clone.DestinationAmount} {
		if amount.Sign() < 0 {
			return nil, fmt.Errorf("htlc: order amounts must be non-negative")
		}
	}
	if clone.Preimage.Revealed() != (clone.Status == StatusClaimed) {
		return nil, fmt.Errorf("htlc: preimage revelation inconsistent with status %s", clone.Status)
	}
	return clone, nil
}
