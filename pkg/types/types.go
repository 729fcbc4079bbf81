// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the bridge — the inbound Signal,
// venue call results, position and symbol metadata, and the error taxonomy.
// It has no dependencies on internal packages, so it can be imported by any
// layer.
package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order in webhook form: buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is one of the two accepted sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the closing side for s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// EntryType selects how the entry order executes.
type EntryType string

const (
	EntryMarket EntryType = "market"
	EntryLimit  EntryType = "limit"
)

// Tif is the time-in-force for resting limit orders, in the venue's wire
// spelling.
type Tif string

const (
	TifGtc Tif = "Gtc" // Good-Til-Cancelled
	TifIoc Tif = "Ioc" // Immediate-Or-Cancel
	TifAlo Tif = "Alo" // Add-Liquidity-Only (maker only)
)

// TriggerKind distinguishes the two conditional order flavours the venue
// supports. The wire values are the venue's own.
type TriggerKind string

const (
	TriggerStopLoss   TriggerKind = "sl"
	TriggerTakeProfit TriggerKind = "tp"
)

// Environment selects which venue deployment the bridge trades against.
type Environment string

const (
	EnvTestnet Environment = "testnet"
	EnvMainnet Environment = "mainnet"
)

// Valid reports whether e names a known deployment.
func (e Environment) Valid() bool {
	return e == EnvTestnet || e == EnvMainnet
}

// DefaultStrategyID is the reserved strategy that absorbs signals carrying
// no explicit strategy_id.
const DefaultStrategyID = "OTHERS"

// MaxTakeProfits is the number of take-profit levels a signal may carry.
const MaxTakeProfits = 4

// ————————————————————————————————————————————————————————————————————————
// Inbound signal
// ————————————————————————————————————————————————————————————————————————

// TakeProfit is one tp level of a signal. Price set means the level exists;
// Size is the absolute child size in base units. The webhook field is named
// tpN_perc for historical reasons but has always carried an absolute size,
// and the bridge preserves that meaning.
type TakeProfit struct {
	Price *decimal.Decimal
	Size  *decimal.Decimal
}

// Present reports whether this level should produce a trigger order.
// Either field alone is enough: a price-only level sizes from the shared
// remainder, a size-only level derives its trigger from the entry fill.
func (tp TakeProfit) Present() bool {
	return tp.Price != nil || tp.Size != nil
}

// Signal is one validated inbound webhook describing an intended trade.
type Signal struct {
	Symbol      string
	Side        Side
	Entry       EntryType
	Quantity    decimal.Decimal
	Price       *decimal.Decimal // required iff Entry == EntryLimit
	Stop        *decimal.Decimal
	TakeProfits [MaxTakeProfits]TakeProfit
	StrategyID  string // DefaultStrategyID when the payload omits it
}

// ParseSignal validates a raw webhook payload and builds a Signal.
// All failures wrap ErrInvalidSignal. Decimal fields accept both JSON
// strings and numbers because charting platforms emit either.
func ParseSignal(payload map[string]any) (*Signal, error) {
	sig := &Signal{
		Symbol:     strings.ToUpper(strings.TrimSpace(str(payload, "symbol"))),
		Side:       Side(strings.ToLower(str(payload, "side"))),
		Entry:      EntryType(strings.ToLower(str(payload, "entry"))),
		StrategyID: strings.TrimSpace(str(payload, "strategy_id")),
	}
	if sig.Symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", ErrInvalidSignal)
	}
	if !sig.Side.Valid() {
		return nil, fmt.Errorf("%w: side %q must be buy or sell", ErrInvalidSignal, str(payload, "side"))
	}
	if sig.Entry == "" {
		sig.Entry = EntryMarket
	}
	if sig.Entry != EntryMarket && sig.Entry != EntryLimit {
		return nil, fmt.Errorf("%w: entry %q must be market or limit", ErrInvalidSignal, sig.Entry)
	}
	if sig.StrategyID == "" {
		sig.StrategyID = DefaultStrategyID
	}

	qty, err := decField(payload, "quantity")
	if err != nil {
		return nil, err
	}
	if qty == nil || !qty.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrInvalidSignal)
	}
	sig.Quantity = *qty

	if sig.Price, err = decField(payload, "price"); err != nil {
		return nil, err
	}
	if sig.Entry == EntryLimit && (sig.Price == nil || !sig.Price.IsPositive()) {
		return nil, fmt.Errorf("%w: limit entry requires a positive price", ErrInvalidSignal)
	}
	if sig.Stop, err = decField(payload, "stop"); err != nil {
		return nil, err
	}
	if sig.Stop == nil {
		// Alias used by trend-style alert templates.
		if sig.Stop, err = decField(payload, "sl_price"); err != nil {
			return nil, err
		}
	}
	if sig.Stop != nil && !sig.Stop.IsPositive() {
		return nil, fmt.Errorf("%w: stop must be > 0", ErrInvalidSignal)
	}

	for i := 0; i < MaxTakeProfits; i++ {
		px, err := decField(payload, fmt.Sprintf("tp%d_price", i+1))
		if err != nil {
			return nil, err
		}
		if i == 0 && px == nil {
			// tp_price is the single-level alias for tp1_price.
			if px, err = decField(payload, "tp_price"); err != nil {
				return nil, err
			}
		}
		sz, err := decField(payload, fmt.Sprintf("tp%d_perc", i+1))
		if err != nil {
			return nil, err
		}
		if px != nil && !px.IsPositive() {
			return nil, fmt.Errorf("%w: tp%d_price must be > 0", ErrInvalidSignal, i+1)
		}
		if sz != nil && sz.IsNegative() {
			return nil, fmt.Errorf("%w: tp%d_perc must be >= 0", ErrInvalidSignal, i+1)
		}
		sig.TakeProfits[i] = TakeProfit{Price: px, Size: sz}
	}

	return sig, nil
}

func str(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// decField extracts an optional decimal field. Absent, nil, or empty-string
// values return (nil, nil); malformed values wrap ErrInvalidSignal.
func decField(payload map[string]any, key string) (*decimal.Decimal, error) {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil, nil
	}

	var d decimal.Decimal
	var err error
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidSignal, key, err)
	}
	return &d, nil
}

// ————————————————————————————————————————————————————————————————————————
// Venue vocabulary
// ————————————————————————————————————————————————————————————————————————

// SymbolMeta carries the venue-imposed quanta for one instrument.
// Sizes are quantized to SzDecimals places, prices to multiples of TickSize.
type SymbolMeta struct {
	SzDecimals int32
	TickSize   decimal.Decimal
}

// PositionSnapshot is a read-only view of the current position on a symbol.
// Size is signed: positive long, negative short.
type PositionSnapshot struct {
	Symbol  string
	Size    decimal.Decimal
	EntryPx decimal.Decimal
}

// Open reports whether the position has any exposure.
func (p PositionSnapshot) Open() bool {
	return !p.Size.IsZero()
}

// Opposes reports whether the position's direction conflicts with an order
// on the given side, i.e. whether a reversal is required before entering.
func (p PositionSnapshot) Opposes(side Side) bool {
	if p.Size.IsZero() {
		return false
	}
	if side == SideBuy {
		return p.Size.IsNegative()
	}
	return p.Size.IsPositive()
}

// VenueStatus tags the variants of a VenueResult.
type VenueStatus string

const (
	VenueFilled   VenueStatus = "filled"
	VenueResting  VenueStatus = "resting"
	VenueRejected VenueStatus = "rejected"
)

// VenueResult is the outcome of a single venue call. It is a closed sum:
// Filled, Resting, or Rejected. The fourth observable state — the venue
// answering the close path with nothing at all — is represented by a nil
// *VenueResult with a nil error, and callers branch on it explicitly.
type VenueResult struct {
	Status  VenueStatus
	OrderID int64
	AvgPx   decimal.Decimal
	Size    decimal.Decimal
	Code    string
	Message string
}

// Filled builds the immediate-execution variant.
func Filled(orderID int64, avgPx, size decimal.Decimal) *VenueResult {
	return &VenueResult{Status: VenueFilled, OrderID: orderID, AvgPx: avgPx, Size: size}
}

// Resting builds the on-book variant.
func Resting(orderID int64) *VenueResult {
	return &VenueResult{Status: VenueResting, OrderID: orderID}
}

// Rejected builds the failure variant with the venue's own code and message.
func Rejected(code, message string) *VenueResult {
	return &VenueResult{Status: VenueRejected, Code: code, Message: message}
}

// Accepted reports whether the venue took the order (filled or resting).
// A nil result is not accepted.
func (r *VenueResult) Accepted() bool {
	return r != nil && r.Status != VenueRejected
}

// Err returns the rejection as an error, or nil for accepted results.
func (r *VenueResult) Err() error {
	if r == nil || r.Status != VenueRejected {
		return nil
	}
	return &VenueRejectedError{Code: r.Code, Message: r.Message}
}

// RoleKind classifies a wallet address on the venue.
type RoleKind string

const (
	RoleMaster  RoleKind = "master"
	RoleAgent   RoleKind = "agent"
	RoleUnknown RoleKind = "unknown"
)

// Role is the venue's answer to a user-role query. Master is set only for
// agent keys and names the trading account the agent signs for.
type Role struct {
	Kind   RoleKind
	Master string
}
