// Package precision quantizes sizes and prices to venue precision rules.
//
// The venue rejects orders whose size or price carries excess precision,
// and rounding *up* would silently enlarge the trader's intended risk, so
// the default everywhere is truncation toward zero. Trigger prices are the
// one exception: they snap side-aware so the trigger is never looser than
// the trader asked for.
package precision

import (
	"github.com/shopspring/decimal"

	"hlbridge/pkg/types"
)

// TruncateSize rounds raw toward zero to the symbol's size precision.
// The result is always <= |raw| in magnitude; a zero result is returned
// as-is and the caller decides whether zero is actionable.
func TruncateSize(meta types.SymbolMeta, raw decimal.Decimal) decimal.Decimal {
	return raw.Truncate(meta.SzDecimals)
}

// FormatPrice snaps raw down to the nearest multiple of the symbol's tick.
// This is the default rule for entry prices; protective triggers go through
// SnapTrigger instead.
func FormatPrice(meta types.SymbolMeta, raw decimal.Decimal) decimal.Decimal {
	return floorToTick(raw, meta.TickSize)
}

// SnapTrigger snaps a trigger price to the tick grid so the trigger side is
// never looser than requested.
//
// Stop-loss triggers snap toward the worse-for-trader direction, keeping the
// protection at least as tight as asked: down for longs, up for shorts.
// Take-profit triggers snap toward the better-for-trader direction so profit
// is taken no earlier than requested: up for longs, down for shorts.
func SnapTrigger(meta types.SymbolMeta, raw decimal.Decimal, entrySide types.Side, kind types.TriggerKind) decimal.Decimal {
	long := entrySide == types.SideBuy
	snapUp := (long && kind == types.TriggerTakeProfit) || (!long && kind == types.TriggerStopLoss)
	if snapUp {
		return ceilToTick(raw, meta.TickSize)
	}
	return floorToTick(raw, meta.TickSize)
}

func floorToTick(px, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return px
	}
	return px.Div(tick).Floor().Mul(tick)
}

func ceilToTick(px, tick decimal.Decimal) decimal.Decimal {
	if tick.IsZero() {
		return px
	}
	return px.Div(tick).Ceil().Mul(tick)
}
