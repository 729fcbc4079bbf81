// Package engine turns one validated signal into a sequence of venue calls:
// flatten an opposing position, enter, attach the protective stop, attach
// the take-profit ladder. The sequence runs under the symbol's lock end to
// end, and every venue call leaves exactly one journal entry behind.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"hlbridge/internal/journal"
	"hlbridge/internal/precision"
	"hlbridge/internal/strategy"
	"hlbridge/internal/symlock"
	"hlbridge/internal/venue"
	"hlbridge/pkg/types"
)

// Terminal statuses of one execution.
const (
	DoneOK      = "DONE_OK"      // every call accepted
	DonePartial = "DONE_PARTIAL" // entry accepted, some child failed; nothing rolled back
	DoneFail    = "DONE_FAIL"    // no entry reached the venue
)

// minChildNotional is the venue's minimum order value in USD. Take-profit
// levels whose size times trigger price falls below it are skipped instead
// of being sent to a guaranteed rejection.
var minChildNotional = decimal.NewFromInt(10)

// CallReport is the outcome of a single venue call.
type CallReport struct {
	Kind   string             `json:"kind"`
	Result *types.VenueResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// ExecutionReport is the structured result of one signal, one sub-result
// per venue call in submission order.
type ExecutionReport struct {
	WebhookID  string       `json:"webhook_id"`
	StrategyID string       `json:"strategy_id"`
	Symbol     string       `json:"symbol"`
	Status     string       `json:"status"`
	Calls      []CallReport `json:"calls"`
}

// Engine drives the signal-to-orders state machine.
type Engine struct {
	port     venue.Port
	account  func() string // resolved master account, re-pointed on env switch
	locks    *symlock.Manager
	registry *strategy.Registry
	recorder *journal.Recorder
	logger   *slog.Logger

	metaMu sync.Mutex
	meta   map[string]types.SymbolMeta
}

func New(port venue.Port, account func() string, locks *symlock.Manager, registry *strategy.Registry, recorder *journal.Recorder, logger *slog.Logger) *Engine {
	return &Engine{
		port:     port,
		account:  account,
		locks:    locks,
		registry: registry,
		recorder: recorder,
		logger:   logger.With("component", "engine"),
	}
}

// InvalidateMeta drops the symbol metadata cache, e.g. after an environment
// switch.
func (e *Engine) InvalidateMeta() {
	e.metaMu.Lock()
	e.meta = nil
	e.metaMu.Unlock()
}

// metaFor returns the precision rules for symbol, fetching the universe on
// first use and refreshing it once when the symbol is unknown.
func (e *Engine) metaFor(ctx context.Context, symbol string) (types.SymbolMeta, error) {
	e.metaMu.Lock()
	cached := e.meta
	e.metaMu.Unlock()

	if cached != nil {
		if m, ok := cached[symbol]; ok {
			return m, nil
		}
	}

	metas, err := e.port.SymbolMeta(ctx)
	if err != nil {
		return types.SymbolMeta{}, err
	}
	e.metaMu.Lock()
	e.meta = metas
	e.metaMu.Unlock()

	if m, ok := metas[symbol]; ok {
		return m, nil
	}
	return types.SymbolMeta{}, fmt.Errorf("%w: unknown symbol %q", types.ErrInvalidSignal, symbol)
}

// Execute runs the state machine for one signal. The returned report is
// non-nil whenever at least the decision phase was reached; errors before
// any venue call (disabled strategy, busy symbol, invalid size) come back
// as bare errors with no report.
//
// Stats are mutated here, under the symbol lock, and nowhere else.
func (e *Engine) Execute(ctx context.Context, sig types.Signal, webhookID string) (*ExecutionReport, error) {
	strat, ok := e.registry.Get(sig.StrategyID)
	if !ok || !strat.Enabled {
		return nil, fmt.Errorf("%w: %s", types.ErrStrategyDisabled, sig.StrategyID)
	}

	release, err := e.locks.Acquire(ctx, sig.Symbol)
	if err != nil {
		return nil, err
	}
	defer release()

	meta, err := e.metaFor(ctx, sig.Symbol)
	if err != nil {
		return nil, err
	}

	size := precision.TruncateSize(meta, e.registry.Clamp(sig.StrategyID, sig.Quantity))
	if size.IsZero() {
		return nil, fmt.Errorf("%w: quantity %s truncates to zero at %d size decimals",
			types.ErrInvalidSignal, sig.Quantity, meta.SzDecimals)
	}

	report := &ExecutionReport{
		WebhookID:  webhookID,
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
	}

	// Writes past this point must not be cancelled mid-flight; an order of
	// unknown fate is worse than waiting out the timeout.
	wctx := context.WithoutCancel(ctx)

	report.Status = e.run(wctx, sig, meta, size, report)

	outcome := strategy.OutcomeSuccess
	if report.Status != DoneOK {
		outcome = strategy.OutcomeFailure
	}
	e.registry.Increment(wctx, sig.StrategyID, outcome)

	e.logger.Info("signal executed",
		"symbol", sig.Symbol,
		"side", sig.Side,
		"strategy", sig.StrategyID,
		"status", report.Status,
		"calls", len(report.Calls),
	)
	return report, nil
}

// run walks the states and returns the terminal status.
func (e *Engine) run(ctx context.Context, sig types.Signal, meta types.SymbolMeta, size decimal.Decimal, report *ExecutionReport) string {
	// INSPECT_POSITION
	state, err := e.port.ClearinghouseState(ctx, e.account())
	if err != nil {
		e.recorder.Log(ctx, "ERROR", "position inspection failed", map[string]any{
			"symbol": sig.Symbol, "error": err.Error(),
		})
		return DoneFail
	}
	pos := state.Position(sig.Symbol)

	// DECIDE → FLATTEN
	if pos.Opposes(sig.Side) {
		if !e.flatten(ctx, sig, pos, report) {
			// The account may still hold the opposing position; entering
			// now could double exposure, so stop here.
			return DoneFail
		}
		e.cleanupOrphans(ctx, sig.Symbol)
	}

	// ENTER
	entry := e.enter(ctx, sig, meta, size, report)
	if entry == nil || !entry.Accepted() {
		return DoneFail
	}

	// ATTACH_STOP, ATTACH_TP1..TP4
	partial := false
	if sig.Stop != nil {
		px := precision.SnapTrigger(meta, *sig.Stop, sig.Side, types.TriggerStopLoss)
		res := e.call(ctx, report, "stop_loss", sig, func() (*types.VenueResult, error) {
			return e.port.TriggerOrder(ctx, sig.Symbol, sig.Side.Opposite(), size, px, types.TriggerStopLoss, true)
		})
		if !res.Accepted() {
			partial = true
		}
	}

	for i, tpSize := range takeProfitSizes(meta, size, sig.TakeProfits) {
		if tpSize.IsZero() {
			continue
		}
		kind := fmt.Sprintf("take_profit_%d", i+1)
		px, ok := e.triggerPrice(ctx, sig, meta, entry, sig.TakeProfits[i], kind)
		if !ok {
			continue
		}
		if tpSize.Mul(px).LessThan(minChildNotional) {
			e.recorder.Log(ctx, "INFO", "take-profit below minimum notional, skipped", map[string]any{
				"symbol": sig.Symbol, "order_kind": kind,
				"size": tpSize.String(), "trigger_px": px.String(),
			})
			continue
		}
		res := e.call(ctx, report, kind, sig, func() (*types.VenueResult, error) {
			return e.port.TriggerOrder(ctx, sig.Symbol, sig.Side.Opposite(), tpSize, px, types.TriggerTakeProfit, true)
		})
		if !res.Accepted() {
			partial = true
		}
	}

	if partial {
		return DonePartial
	}
	return DoneOK
}

// flatten closes the opposing position, preferring the venue's native close
// and falling back to an explicit reduce-only market order when the close
// path answers with null or a rejection. Reports whether the account is
// safe to enter.
func (e *Engine) flatten(ctx context.Context, sig types.Signal, pos types.PositionSnapshot, report *ExecutionReport) bool {
	res := e.call(ctx, report, "market_close", sig, func() (*types.VenueResult, error) {
		return e.port.MarketClose(ctx, sig.Symbol)
	})
	if res.Accepted() {
		return true
	}

	// FLATTEN_FALLBACK: null and rejected land here alike.
	fallback := e.call(ctx, report, "flatten_fallback", sig, func() (*types.VenueResult, error) {
		return e.port.MarketOpen(ctx, sig.Symbol, sig.Side, pos.Size.Abs(), true)
	})
	return fallback.Accepted()
}

// cleanupOrphans cancels resting orders left on the symbol by the closed
// position; their triggers reference exposure that no longer exists.
// Best-effort: failures are logged and the entry proceeds.
func (e *Engine) cleanupOrphans(ctx context.Context, symbol string) {
	orders, err := e.port.OpenOrders(ctx, e.account())
	if err != nil {
		e.recorder.Log(ctx, "WARNING", "orphan order listing failed", map[string]any{
			"symbol": symbol, "error": err.Error(),
		})
		return
	}
	for _, o := range orders {
		if o.Symbol != symbol {
			continue
		}
		if err := e.port.CancelOrder(ctx, symbol, o.OrderID); err != nil {
			e.recorder.Log(ctx, "WARNING", "orphan order cancel failed", map[string]any{
				"symbol": symbol, "order_id": o.OrderID, "error": err.Error(),
			})
			continue
		}
		e.recorder.Log(ctx, "INFO", "orphan order cancelled", map[string]any{
			"symbol": symbol, "order_id": o.OrderID,
		})
	}
}

// triggerPrice resolves the trigger for one take-profit level. An explicit
// price snaps to the tick grid; a size-only level derives its trigger from
// the entry fill, reading the size field as a percentage offset from the
// fill price (the legacy double duty of the tpN_perc field). A resting entry
// has no fill price to derive from, so size-only levels are skipped.
func (e *Engine) triggerPrice(ctx context.Context, sig types.Signal, meta types.SymbolMeta, entry *types.VenueResult, level types.TakeProfit, kind string) (decimal.Decimal, bool) {
	if level.Price != nil {
		return precision.SnapTrigger(meta, *level.Price, sig.Side, types.TriggerTakeProfit), true
	}

	if entry.Status != types.VenueFilled || !entry.AvgPx.IsPositive() {
		e.recorder.Log(ctx, "WARNING", "take-profit has no price and entry has no fill price, skipped", map[string]any{
			"symbol": sig.Symbol, "order_kind": kind,
		})
		return decimal.Decimal{}, false
	}

	offset := level.Size.Div(decimal.NewFromInt(100))
	factor := decimal.NewFromInt(1).Add(offset)
	if sig.Side == types.SideSell {
		factor = decimal.NewFromInt(1).Sub(offset)
	}
	raw := entry.AvgPx.Mul(factor)
	return precision.SnapTrigger(meta, raw, sig.Side, types.TriggerTakeProfit), true
}

// enter submits the entry order.
func (e *Engine) enter(ctx context.Context, sig types.Signal, meta types.SymbolMeta, size decimal.Decimal, report *ExecutionReport) *types.VenueResult {
	if sig.Entry == types.EntryLimit {
		px := precision.FormatPrice(meta, *sig.Price)
		return e.call(ctx, report, "entry", sig, func() (*types.VenueResult, error) {
			return e.port.LimitOrder(ctx, sig.Symbol, sig.Side, size, px, types.TifGtc)
		})
	}
	return e.call(ctx, report, "entry", sig, func() (*types.VenueResult, error) {
		return e.port.MarketOpen(ctx, sig.Symbol, sig.Side, size, false)
	})
}

// call issues one venue call and journals exactly one VenueResponse for it,
// whatever the outcome. Transport errors are folded into a rejected result
// so the state machine branches on a single shape.
func (e *Engine) call(ctx context.Context, report *ExecutionReport, kind string, sig types.Signal, fn func() (*types.VenueResult, error)) *types.VenueResult {
	res, err := fn()

	cr := CallReport{Kind: kind, Result: res}
	payload := map[string]any{"order_kind": kind, "symbol": sig.Symbol}
	status := "success"

	switch {
	case err != nil:
		cr.Error = err.Error()
		// Timeouts and transport failures are treated as rejections; no
		// implicit retry, the order's fate is reported as failed.
		cr.Result = types.Rejected("transport_error", err.Error())
		status = "error"
		payload["error"] = err.Error()
	case res == nil:
		status = "null"
	case res.Status == types.VenueRejected:
		status = "rejected"
		payload["code"] = res.Code
		payload["message"] = res.Message
	default:
		payload["status"] = string(res.Status)
		payload["order_id"] = res.OrderID
		if res.Status == types.VenueFilled {
			payload["avg_px"] = res.AvgPx.String()
			payload["size"] = res.Size.String()
		}
	}

	report.Calls = append(report.Calls, cr)
	e.recorder.VenueResponse(ctx, payload, status, sig.StrategyID, kind, report.WebhookID)
	return cr.Result
}

// takeProfitSizes distributes the entry size across the take-profit ladder.
// A level participates when it carries a price or a size; either field alone
// is enough to produce a trigger.
//
// Explicit sizes are honored in level order when they fit the remaining
// unassigned size; levels without a usable size split the remainder
// equally. The ladder never exceeds the entry size: any excess is trimmed
// off the highest level first.
func takeProfitSizes(meta types.SymbolMeta, entrySize decimal.Decimal, levels [types.MaxTakeProfits]types.TakeProfit) [types.MaxTakeProfits]decimal.Decimal {
	var sizes [types.MaxTakeProfits]decimal.Decimal
	remaining := entrySize

	// Pass 1: explicit sizes that fit, in level order.
	needShare := make([]int, 0, types.MaxTakeProfits)
	for i, lv := range levels {
		if lv.Price == nil && lv.Size == nil {
			continue
		}
		if lv.Size != nil {
			sz := precision.TruncateSize(meta, *lv.Size)
			if sz.IsPositive() && sz.LessThanOrEqual(remaining) {
				sizes[i] = sz
				remaining = remaining.Sub(sz)
				continue
			}
		}
		needShare = append(needShare, i)
	}

	// Pass 2: equal share of the remainder for everyone else.
	if n := len(needShare); n > 0 && remaining.IsPositive() {
		share := precision.TruncateSize(meta, remaining.Div(decimal.NewFromInt(int64(n))))
		for _, i := range needShare {
			sizes[i] = share
		}
	}

	// Pass 3: cap at the entry size, trimming the highest level first.
	total := decimal.Zero
	for _, sz := range sizes {
		total = total.Add(sz)
	}
	for i := types.MaxTakeProfits - 1; i >= 0 && total.GreaterThan(entrySize); i-- {
		excess := total.Sub(entrySize)
		cut := decimal.Min(sizes[i], excess)
		sizes[i] = sizes[i].Sub(cut)
		total = total.Sub(cut)
	}
	return sizes
}
