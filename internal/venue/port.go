// Package venue adapts the Hyperliquid HTTP API behind the narrow port the
// execution engine consumes: account reads, symbol metadata, immediate and
// resting orders, reduce-only triggers, and the native position-close path.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"hlbridge/pkg/types"
)

// PerpState is the perp-side account snapshot.
type PerpState struct {
	AccountValue decimal.Decimal
	Withdrawable decimal.Decimal
	Positions    []types.PositionSnapshot
}

// Position returns the snapshot for symbol, zero-valued when flat.
func (s *PerpState) Position(symbol string) types.PositionSnapshot {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return types.PositionSnapshot{Symbol: symbol}
}

// SpotState is the spot-side balance snapshot.
type SpotState struct {
	Balances []SpotBalance
}

type SpotBalance struct {
	Coin  string
	Total decimal.Decimal
	Hold  decimal.Decimal
}

// USDC returns the total USDC balance, zero when absent.
func (s *SpotState) USDC() decimal.Decimal {
	for _, b := range s.Balances {
		if b.Coin == "USDC" {
			return b.Total
		}
	}
	return decimal.Zero
}

// OpenOrder is one resting order as reported by the venue.
type OpenOrder struct {
	Symbol    string          `json:"symbol"`
	OrderID   int64           `json:"order_id"`
	Side      types.Side      `json:"side"`
	Size      decimal.Decimal `json:"size"`
	LimitPx   decimal.Decimal `json:"limit_px"`
	Timestamp int64           `json:"timestamp"`
}

// HistoricalOrder is one entry of the account's order history.
type HistoricalOrder struct {
	OpenOrder
	Status string `json:"status"`
}

// Port is the surface the execution engine holds. One production
// implementation (Client) talks to Hyperliquid; tests script a fake.
//
// Every order method returns (*types.VenueResult, error): a non-nil result
// for an outcome the venue reported (filled, resting, or rejected), a non-nil
// error for transport-level failures. MarketClose alone may return (nil, nil)
// when the venue answers the close path with nothing; callers must branch on
// that null explicitly.
type Port interface {
	UserRole(ctx context.Context, addr string) (types.Role, error)
	ClearinghouseState(ctx context.Context, addr string) (*PerpState, error)
	SpotState(ctx context.Context, addr string) (*SpotState, error)
	SymbolMeta(ctx context.Context) (map[string]types.SymbolMeta, error)

	MarketOpen(ctx context.Context, symbol string, side types.Side, size decimal.Decimal, reduceOnly bool) (*types.VenueResult, error)
	MarketClose(ctx context.Context, symbol string) (*types.VenueResult, error)
	LimitOrder(ctx context.Context, symbol string, side types.Side, size, px decimal.Decimal, tif types.Tif) (*types.VenueResult, error)
	TriggerOrder(ctx context.Context, symbol string, side types.Side, size, triggerPx decimal.Decimal, kind types.TriggerKind, isMarket bool) (*types.VenueResult, error)

	OpenOrders(ctx context.Context, addr string) ([]OpenOrder, error)
	OrderHistory(ctx context.Context, addr string) ([]HistoricalOrder, error)
	CancelOrder(ctx context.Context, symbol string, oid int64) error
}
