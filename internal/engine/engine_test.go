package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hlbridge/internal/journal"
	"hlbridge/internal/strategy"
	"hlbridge/internal/symlock"
	"hlbridge/internal/venue"
	"hlbridge/pkg/types"
)

const testAccount = "0x1111111111111111111111111111111111111111"

type placedOrder struct {
	kind       string // market, limit, trigger
	symbol     string
	side       types.Side
	size       decimal.Decimal
	px         decimal.Decimal
	reduceOnly bool
	trigger    types.TriggerKind
	isMarket   bool
}

// fakePort scripts venue behavior per call kind and records every order in
// submission order.
type fakePort struct {
	mu sync.Mutex

	position    types.PositionSnapshot
	closeResult *types.VenueResult
	closeErr    error
	closeNull   bool
	openOrders  []venue.OpenOrder

	// reject maps an order kind (market, limit, trigger) to a scripted
	// rejection; reduce-only markets use "market_reduce".
	reject map[string]*types.VenueResult

	stateErr error

	placed    []placedOrder
	closes    int
	cancelled []int64
	metaCalls int
}

func (f *fakePort) UserRole(ctx context.Context, addr string) (types.Role, error) {
	return types.Role{Kind: types.RoleMaster}, nil
}

func (f *fakePort) ClearinghouseState(ctx context.Context, addr string) (*venue.PerpState, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	st := &venue.PerpState{AccountValue: decimal.NewFromInt(1000)}
	if f.position.Open() {
		st.Positions = []types.PositionSnapshot{f.position}
	}
	return st, nil
}

func (f *fakePort) SpotState(ctx context.Context, addr string) (*venue.SpotState, error) {
	return &venue.SpotState{}, nil
}

func (f *fakePort) SymbolMeta(ctx context.Context) (map[string]types.SymbolMeta, error) {
	f.mu.Lock()
	f.metaCalls++
	f.mu.Unlock()
	return map[string]types.SymbolMeta{
		"SOL": {SzDecimals: 2, TickSize: decimal.New(1, -4)},
		"BTC": {SzDecimals: 5, TickSize: decimal.New(1, -1)},
	}, nil
}

func (f *fakePort) MarketOpen(ctx context.Context, symbol string, side types.Side, size decimal.Decimal, reduceOnly bool) (*types.VenueResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, placedOrder{
		kind: "market", symbol: symbol, side: side, size: size, reduceOnly: reduceOnly,
	})
	key := "market"
	if reduceOnly {
		key = "market_reduce"
	}
	if r := f.reject[key]; r != nil {
		return r, nil
	}
	return types.Filled(1000+int64(len(f.placed)), decimal.NewFromInt(150), size), nil
}

func (f *fakePort) MarketClose(ctx context.Context, symbol string) (*types.VenueResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	if f.closeNull {
		return nil, nil
	}
	if f.closeResult != nil {
		return f.closeResult, nil
	}
	return types.Filled(2000, decimal.NewFromInt(150), f.position.Size.Abs()), nil
}

func (f *fakePort) LimitOrder(ctx context.Context, symbol string, side types.Side, size, px decimal.Decimal, tif types.Tif) (*types.VenueResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, placedOrder{
		kind: "limit", symbol: symbol, side: side, size: size, px: px,
	})
	if r := f.reject["limit"]; r != nil {
		return r, nil
	}
	return types.Resting(3000 + int64(len(f.placed))), nil
}

func (f *fakePort) TriggerOrder(ctx context.Context, symbol string, side types.Side, size, triggerPx decimal.Decimal, kind types.TriggerKind, isMarket bool) (*types.VenueResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, placedOrder{
		kind: "trigger", symbol: symbol, side: side, size: size, px: triggerPx,
		reduceOnly: true, trigger: kind, isMarket: isMarket,
	})
	if r := f.reject["trigger"]; r != nil {
		return r, nil
	}
	return types.Resting(4000 + int64(len(f.placed))), nil
}

func (f *fakePort) OpenOrders(ctx context.Context, addr string) ([]venue.OpenOrder, error) {
	return f.openOrders, nil
}

func (f *fakePort) OrderHistory(ctx context.Context, addr string) ([]venue.HistoricalOrder, error) {
	return nil, nil
}

func (f *fakePort) CancelOrder(ctx context.Context, symbol string, oid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, oid)
	return nil
}

type harness struct {
	engine   *Engine
	port     *fakePort
	registry *strategy.Registry
	store    *journal.Memory
}

func newHarness(t *testing.T, port *fakePort) *harness {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	reg, err := strategy.NewRegistry(t.Context(), nil, logger)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	store := journal.NewMemory()
	rec := journal.NewRecorder(store, logger, nil)
	eng := New(port, func() string { return testAccount }, symlock.New(time.Second), reg, rec, logger)
	return &harness{engine: eng, port: port, registry: reg, store: store}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestExecuteMarketEntryFlat(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("0.2"), StrategyID: "IMBA_HYPER",
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s", report.Status, DoneOK)
	}
	if h.port.closes != 0 {
		t.Fatalf("flat position should not be closed, got %d closes", h.port.closes)
	}
	if len(h.port.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(h.port.placed))
	}
	o := h.port.placed[0]
	if o.kind != "market" || o.side != types.SideBuy || !o.size.Equal(dec("0.2")) || o.reduceOnly {
		t.Fatalf("unexpected entry order: %+v", o)
	}

	s, _ := h.registry.Get("IMBA_HYPER")
	if s.Stats.SuccessfulForwards != 1 || s.Stats.FailedForwards != 0 {
		t.Fatalf("stats = %+v, want one success", s.Stats)
	}
}

func TestExecuteReversalUsesNativeClose(t *testing.T) {
	t.Parallel()
	port := &fakePort{
		position: types.PositionSnapshot{Symbol: "SOL", Size: dec("-10.73")},
	}
	h := newHarness(t, port)

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("5"), StrategyID: "IMBA_HYPER",
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-2")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s", report.Status, DoneOK)
	}
	if port.closes != 1 {
		t.Fatalf("closes = %d, want 1", port.closes)
	}
	// Native close accepted: no reduce-only fallback, a single entry order.
	if len(port.placed) != 1 || port.placed[0].reduceOnly {
		t.Fatalf("placed = %+v, want one non-reduce entry", port.placed)
	}
	if len(report.Calls) != 2 || report.Calls[0].Kind != "market_close" || report.Calls[1].Kind != "entry" {
		t.Fatalf("call order = %+v", report.Calls)
	}
}

func TestExecuteNullCloseFallsBack(t *testing.T) {
	t.Parallel()
	port := &fakePort{
		position:  types.PositionSnapshot{Symbol: "SOL", Size: dec("-10.73")},
		closeNull: true,
	}
	h := newHarness(t, port)

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("5"), StrategyID: "IMBA_HYPER",
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-3")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s", report.Status, DoneOK)
	}

	if len(port.placed) != 2 {
		t.Fatalf("placed %d orders, want fallback + entry", len(port.placed))
	}
	fb := port.placed[0]
	if !fb.reduceOnly || fb.side != types.SideBuy || !fb.size.Equal(dec("10.73")) {
		t.Fatalf("fallback order = %+v, want reduce-only buy 10.73", fb)
	}
	entry := port.placed[1]
	if entry.reduceOnly || !entry.size.Equal(dec("5")) {
		t.Fatalf("entry order = %+v", entry)
	}

	// One journal entry per venue call: close, fallback, entry.
	responses, err := h.store.RecentResponses(t.Context(), 10, nil)
	if err != nil {
		t.Fatalf("RecentResponses: %v", err)
	}
	if len(responses) != 3 {
		t.Fatalf("journal has %d venue responses, want 3", len(responses))
	}
	if responses[2].Status != "null" || responses[2].OrderKind != "market_close" {
		t.Fatalf("oldest response = %+v, want null market_close", responses[2])
	}
	for _, r := range responses {
		if r.WebhookID != "wh-3" {
			t.Fatalf("response not linked to webhook: %+v", r)
		}
	}
}

func TestExecuteRejectedCloseFallsBack(t *testing.T) {
	t.Parallel()
	port := &fakePort{
		position:    types.PositionSnapshot{Symbol: "SOL", Size: dec("3")},
		closeResult: types.Rejected("order_error", "could not close"),
	}
	h := newHarness(t, port)

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideSell, Entry: types.EntryMarket,
		Quantity: dec("1"), StrategyID: "IMBA_HYPER",
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s", report.Status, DoneOK)
	}
	fb := port.placed[0]
	if !fb.reduceOnly || fb.side != types.SideSell || !fb.size.Equal(dec("3")) {
		t.Fatalf("fallback order = %+v, want reduce-only sell 3", fb)
	}
}

func TestExecuteFallbackFailureStopsBeforeEntry(t *testing.T) {
	t.Parallel()
	port := &fakePort{
		position:  types.PositionSnapshot{Symbol: "SOL", Size: dec("-2")},
		closeNull: true,
		reject: map[string]*types.VenueResult{
			"market_reduce": types.Rejected("order_error", "insufficient margin"),
		},
	}
	h := newHarness(t, port)

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("1"), StrategyID: "IMBA_HYPER",
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-5")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneFail {
		t.Fatalf("status = %s, want %s", report.Status, DoneFail)
	}
	// Only the failed fallback reached the book; the entry never did.
	if len(port.placed) != 1 || !port.placed[0].reduceOnly {
		t.Fatalf("placed = %+v, want only the fallback attempt", port.placed)
	}

	s, _ := h.registry.Get("IMBA_HYPER")
	if s.Stats.FailedForwards != 1 {
		t.Fatalf("stats = %+v, want one failure", s.Stats)
	}
}

func TestExecuteFullStack(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	// tp1 has no explicit size; tp2 asks for more than the entry holds.
	// Both split the remainder equally.
	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity:   dec("0.2"),
		Stop:       decPtr("140.00005"),
		StrategyID: "IMBA_HYPER",
		TakeProfits: [types.MaxTakeProfits]types.TakeProfit{
			{Price: decPtr("160")},
			{Price: decPtr("170"), Size: decPtr("10")},
		},
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-6")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s", report.Status, DoneOK)
	}

	if len(h.port.placed) != 4 {
		t.Fatalf("placed %d orders, want entry + stop + 2 tps", len(h.port.placed))
	}
	stop := h.port.placed[1]
	if stop.trigger != types.TriggerStopLoss || !stop.isMarket || stop.side != types.SideSell {
		t.Fatalf("stop order = %+v", stop)
	}
	// Stops snap away from the trader: long stop floors to the tick.
	if !stop.px.Equal(dec("140")) {
		t.Fatalf("stop px = %s, want 140", stop.px)
	}
	if !stop.size.Equal(dec("0.2")) {
		t.Fatalf("stop size = %s, want full entry size", stop.size)
	}

	tp1, tp2 := h.port.placed[2], h.port.placed[3]
	if tp1.trigger != types.TriggerTakeProfit || tp2.trigger != types.TriggerTakeProfit {
		t.Fatalf("tp kinds = %+v %+v", tp1, tp2)
	}
	if !tp1.size.Equal(dec("0.1")) || !tp2.size.Equal(dec("0.1")) {
		t.Fatalf("tp sizes = %s %s, want 0.1 each", tp1.size, tp2.size)
	}
	if !tp1.px.Equal(dec("160")) || !tp2.px.Equal(dec("170")) {
		t.Fatalf("tp prices = %s %s", tp1.px, tp2.px)
	}
}

func TestExecuteSizeOnlyTakeProfitDerivesPrice(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	// tp2 carries only a size. It reads as a percentage offset from the
	// entry fill (150 * 1.10 = 165) and, being larger than the remainder,
	// splits the size equally with tp1.
	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity:   dec("0.2"),
		Stop:       decPtr("170.0"),
		StrategyID: "IMBA_HYPER",
		TakeProfits: [types.MaxTakeProfits]types.TakeProfit{
			{Price: decPtr("180.0")},
			{Size: decPtr("10")},
		},
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-14")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s", report.Status, DoneOK)
	}
	if len(h.port.placed) != 4 {
		t.Fatalf("placed %d orders, want entry + stop + 2 tps", len(h.port.placed))
	}

	tp1, tp2 := h.port.placed[2], h.port.placed[3]
	if tp1.trigger != types.TriggerTakeProfit || tp2.trigger != types.TriggerTakeProfit {
		t.Fatalf("tp kinds = %+v %+v", tp1, tp2)
	}
	if !tp1.px.Equal(dec("180")) || !tp1.size.Equal(dec("0.1")) {
		t.Fatalf("tp1 = %s @ %s, want 0.1 @ 180", tp1.size, tp1.px)
	}
	if !tp2.px.Equal(dec("165")) || !tp2.size.Equal(dec("0.1")) {
		t.Fatalf("tp2 = %s @ %s, want 0.1 @ 165", tp2.size, tp2.px)
	}
	if len(report.Calls) != 4 || report.Calls[3].Kind != "take_profit_2" {
		t.Fatalf("call order = %+v", report.Calls)
	}
}

func TestExecuteSkipsTakeProfitBelowMinNotional(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	// 0.2 * 30 = $6 of notional, under the venue minimum. The level is
	// dropped instead of being sent to a guaranteed rejection.
	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("0.2"), StrategyID: "IMBA_HYPER",
		TakeProfits: [types.MaxTakeProfits]types.TakeProfit{
			{Price: decPtr("30")},
		},
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-15")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s (a skip is not a failure)", report.Status, DoneOK)
	}
	if len(h.port.placed) != 1 || h.port.placed[0].kind != "market" {
		t.Fatalf("placed = %+v, want only the entry", h.port.placed)
	}
}

func TestExecuteSizeOnlyTakeProfitNeedsEntryFill(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	// A resting limit entry has no fill price, so a size-only level has
	// nothing to derive its trigger from and is skipped.
	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryLimit,
		Quantity: dec("1"), Price: decPtr("150"), StrategyID: "IMBA_HYPER",
		TakeProfits: [types.MaxTakeProfits]types.TakeProfit{
			{Size: decPtr("5")},
		},
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-16")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s, want %s", report.Status, DoneOK)
	}
	if len(h.port.placed) != 1 || h.port.placed[0].kind != "limit" {
		t.Fatalf("placed = %+v, want only the resting entry", h.port.placed)
	}
}

func TestExecuteChildRejectionIsPartial(t *testing.T) {
	t.Parallel()
	port := &fakePort{
		reject: map[string]*types.VenueResult{
			"trigger": types.Rejected("order_error", "invalid trigger price"),
		},
	}
	h := newHarness(t, port)

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("1"), Stop: decPtr("140"), StrategyID: "IMBA_HYPER",
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-7")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DonePartial {
		t.Fatalf("status = %s, want %s", report.Status, DonePartial)
	}
	// The entry is never rolled back.
	if len(port.placed) != 2 || port.placed[0].kind != "market" {
		t.Fatalf("placed = %+v", port.placed)
	}
}

func TestExecuteDisabledStrategyTouchesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})
	if _, err := h.registry.Toggle(t.Context(), "IMBA_HYPER"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("1"), StrategyID: "IMBA_HYPER",
	}
	_, err := h.engine.Execute(t.Context(), sig, "wh-8")
	if !errors.Is(err, types.ErrStrategyDisabled) {
		t.Fatalf("err = %v, want ErrStrategyDisabled", err)
	}
	if h.port.metaCalls != 0 || len(h.port.placed) != 0 || h.port.closes != 0 {
		t.Fatal("disabled strategy must not reach the venue")
	}
}

func TestExecuteLimitEntrySnapsPrice(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryLimit,
		Quantity: dec("1"), Price: decPtr("150.00007"), StrategyID: "IMBA_HYPER",
	}
	report, err := h.engine.Execute(t.Context(), sig, "wh-9")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if report.Status != DoneOK {
		t.Fatalf("status = %s", report.Status)
	}
	o := h.port.placed[0]
	if o.kind != "limit" || !o.px.Equal(dec("150")) {
		t.Fatalf("limit order = %+v, want px floored to 150", o)
	}
	if report.Calls[0].Result.Status != types.VenueResting {
		t.Fatalf("entry result = %+v, want resting", report.Calls[0].Result)
	}
}

func TestExecuteZeroSizeRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("0.001"), StrategyID: "IMBA_HYPER", // below 2 size decimals
	}
	_, err := h.engine.Execute(t.Context(), sig, "wh-10")
	if !errors.Is(err, types.ErrInvalidSignal) {
		t.Fatalf("err = %v, want ErrInvalidSignal", err)
	}
	if len(h.port.placed) != 0 {
		t.Fatal("zero-size signal must not place orders")
	}
}

func TestExecuteUnknownSymbol(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	sig := types.Signal{
		Symbol: "DOGE", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("1"), StrategyID: "IMBA_HYPER",
	}
	_, err := h.engine.Execute(t.Context(), sig, "wh-11")
	if !errors.Is(err, types.ErrInvalidSignal) {
		t.Fatalf("err = %v, want ErrInvalidSignal", err)
	}
}

func TestExecuteCleansOrphanOrdersAfterFlatten(t *testing.T) {
	t.Parallel()
	port := &fakePort{
		position: types.PositionSnapshot{Symbol: "SOL", Size: dec("-1")},
		openOrders: []venue.OpenOrder{
			{Symbol: "SOL", OrderID: 77},
			{Symbol: "BTC", OrderID: 88},
		},
	}
	h := newHarness(t, port)

	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("1"), StrategyID: "IMBA_HYPER",
	}
	if _, err := h.engine.Execute(t.Context(), sig, "wh-12"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(port.cancelled) != 1 || port.cancelled[0] != 77 {
		t.Fatalf("cancelled = %v, want only the SOL order", port.cancelled)
	}
}

func TestExecuteClampsToStrategyLimit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakePort{})

	// IMBA_HYPER caps position size at 100.
	sig := types.Signal{
		Symbol: "SOL", Side: types.SideBuy, Entry: types.EntryMarket,
		Quantity: dec("250"), StrategyID: "IMBA_HYPER",
	}
	if _, err := h.engine.Execute(t.Context(), sig, "wh-13"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !h.port.placed[0].size.Equal(dec("100")) {
		t.Fatalf("entry size = %s, want clamped 100", h.port.placed[0].size)
	}
}

func TestTakeProfitSizing(t *testing.T) {
	t.Parallel()
	meta := types.SymbolMeta{SzDecimals: 2, TickSize: decimal.New(1, -4)}

	tests := []struct {
		name   string
		entry  string
		levels [types.MaxTakeProfits]types.TakeProfit
		want   []string
	}{
		{
			name:  "explicit sizes that fit",
			entry: "10",
			levels: [types.MaxTakeProfits]types.TakeProfit{
				{Price: decPtr("1"), Size: decPtr("4")},
				{Price: decPtr("2"), Size: decPtr("6")},
			},
			want: []string{"4", "6", "0", "0"},
		},
		{
			name:  "oversized level splits the remainder",
			entry: "0.2",
			levels: [types.MaxTakeProfits]types.TakeProfit{
				{Price: decPtr("1")},
				{Price: decPtr("2"), Size: decPtr("10")},
			},
			want: []string{"0.1", "0.1", "0", "0"},
		},
		{
			name:  "unsized levels share equally",
			entry: "0.3",
			levels: [types.MaxTakeProfits]types.TakeProfit{
				{Price: decPtr("1")},
				{Price: decPtr("2")},
				{Price: decPtr("3")},
			},
			want: []string{"0.1", "0.1", "0.1", "0"},
		},
		{
			name:  "mixed explicit and unsized",
			entry: "1",
			levels: [types.MaxTakeProfits]types.TakeProfit{
				{Price: decPtr("1"), Size: decPtr("0.5")},
				{Price: decPtr("2")},
				{Price: decPtr("3")},
			},
			want: []string{"0.5", "0.25", "0.25", "0"},
		},
		{
			name:  "size-only level keeps its size",
			entry: "1",
			levels: [types.MaxTakeProfits]types.TakeProfit{
				{Size: decPtr("0.5")},
				{Price: decPtr("2")},
			},
			want: []string{"0.5", "0.5", "0", "0"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := takeProfitSizes(meta, dec(tc.entry), tc.levels)
			for i, want := range tc.want {
				if !got[i].Equal(dec(want)) {
					t.Fatalf("level %d size = %s, want %s", i+1, got[i], want)
				}
			}
		})
	}
}
