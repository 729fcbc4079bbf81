package venue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"hlbridge/pkg/types"
)

const (
	mainnetURL = "https://api.hyperliquid.xyz"
	testnetURL = "https://api.hyperliquid-testnet.xyz"

	// Perp prices carry at most 6 - szDecimals decimal places.
	maxPriceDecimals = 6
	// And at most 5 significant digits.
	maxSigFigs = 5
)

// defaultSlippage bounds how far past mid a synthetic market order may cross.
var defaultSlippage = decimal.NewFromFloat(0.05)

// Client is the production Port implementation over the Hyperliquid HTTP API.
//
// Reads go through a retrying 10 s client; writes go through a 20 s client
// with no retries, keeping order submission at-most-once. Symbol metadata
// and asset indices are cached on first use and refreshed lazily when an
// unknown symbol shows up.
type Client struct {
	mu      sync.RWMutex
	env     types.Environment
	signer  *Signer
	account string // resolved trading account, defaults to the signer address
	info    *resty.Client
	exch    *resty.Client
	assets  map[string]assetMeta

	rl     *RateLimiter
	logger *slog.Logger

	nonceMu sync.Mutex
	nonce   int64
}

type assetMeta struct {
	index int
	meta  types.SymbolMeta
}

// NewClient builds a client for the given environment signing with keyHex.
func NewClient(env types.Environment, keyHex string, logger *slog.Logger) (*Client, error) {
	signer, err := NewSigner(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}

	c := &Client{
		env:     env,
		signer:  signer,
		account: signer.Address().Hex(),
		rl:      NewRateLimiter(),
		logger:  logger,
	}
	c.info, c.exch = newHTTPClients(baseURL(env))
	return c, nil
}

func baseURL(env types.Environment) string {
	if env == types.EnvMainnet {
		return mainnetURL
	}
	return testnetURL
}

func newHTTPClients(base string) (info, exch *resty.Client) {
	info = resty.New().
		SetBaseURL(base).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	// Writes are never retried: a duplicated order is worse than a
	// reported failure.
	exch = resty.New().
		SetBaseURL(base).
		SetTimeout(20 * time.Second).
		SetHeader("Content-Type", "application/json")
	return info, exch
}

// Environment returns the environment the client currently targets.
func (c *Client) Environment() types.Environment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.env
}

// Address returns the signing key's address.
func (c *Client) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signer.Address().Hex()
}

// Account returns the resolved trading account address.
func (c *Client) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// SetAccount points reads and closes at the resolved master account. Called
// by the account resolver when the signing key turns out to be an agent.
func (c *Client) SetAccount(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = addr
}

// SwitchEnvironment rebuilds the client against the other environment's API
// with the key configured for it. The symbol cache is dropped; asset indices
// differ between testnet and mainnet.
func (c *Client) SwitchEnvironment(env types.Environment, keyHex string) error {
	signer, err := NewSigner(keyHex)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.env = env
	c.signer = signer
	c.account = signer.Address().Hex()
	c.assets = nil
	c.info, c.exch = newHTTPClients(baseURL(env))
	c.logger.Info("venue environment switched", "environment", env, "address", c.account)
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Info queries
// ————————————————————————————————————————————————————————————————————————

func (c *Client) postInfo(ctx context.Context, req infoRequest, out any) error {
	if err := c.rl.Info.Wait(ctx); err != nil {
		return err
	}
	c.mu.RLock()
	httpc := c.info
	c.mu.RUnlock()

	resp, err := httpc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(out).
		Post("/info")
	if err != nil {
		return fmt.Errorf("%w: info %s: %v", types.ErrConnectivity, req.Type, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: info %s: status %d: %s", types.ErrConnectivity, req.Type, resp.StatusCode(), resp.String())
	}
	return nil
}

// UserRole resolves how the venue classifies addr.
func (c *Client) UserRole(ctx context.Context, addr string) (types.Role, error) {
	var out userRoleResponse
	if err := c.postInfo(ctx, infoRequest{Type: "userRole", User: addr}, &out); err != nil {
		return types.Role{}, err
	}
	switch out.Role {
	case "agent":
		return types.Role{Kind: types.RoleAgent, Master: out.Data.User}, nil
	case "user", "vault", "subAccount":
		return types.Role{Kind: types.RoleMaster}, nil
	default:
		return types.Role{Kind: types.RoleUnknown}, nil
	}
}

// ClearinghouseState fetches the perp account snapshot for addr.
func (c *Client) ClearinghouseState(ctx context.Context, addr string) (*PerpState, error) {
	var out clearinghouseResponse
	if err := c.postInfo(ctx, infoRequest{Type: "clearinghouseState", User: addr}, &out); err != nil {
		return nil, err
	}

	state := &PerpState{
		AccountValue: parseDecimal(out.MarginSummary.AccountValue),
		Withdrawable: parseDecimal(out.Withdrawable),
	}
	for _, ap := range out.AssetPositions {
		szi := parseDecimal(ap.Position.Szi)
		if szi.IsZero() {
			continue
		}
		pos := types.PositionSnapshot{Symbol: ap.Position.Coin, Size: szi}
		if ap.Position.EntryPx != nil {
			pos.EntryPx = parseDecimal(*ap.Position.EntryPx)
		}
		state.Positions = append(state.Positions, pos)
	}
	return state, nil
}

// SpotState fetches the spot balances for addr.
func (c *Client) SpotState(ctx context.Context, addr string) (*SpotState, error) {
	var out spotStateResponse
	if err := c.postInfo(ctx, infoRequest{Type: "spotClearinghouseState", User: addr}, &out); err != nil {
		return nil, err
	}

	state := &SpotState{}
	for _, b := range out.Balances {
		state.Balances = append(state.Balances, SpotBalance{
			Coin:  b.Coin,
			Total: parseDecimal(b.Total),
			Hold:  parseDecimal(b.Hold),
		})
	}
	return state, nil
}

// SymbolMeta returns the precision rules for every listed perp symbol.
func (c *Client) SymbolMeta(ctx context.Context) (map[string]types.SymbolMeta, error) {
	assets, err := c.loadAssets(ctx)
	if err != nil {
		return nil, err
	}
	metas := make(map[string]types.SymbolMeta, len(assets))
	for sym, a := range assets {
		metas[sym] = a.meta
	}
	return metas, nil
}

// loadAssets returns the cached universe, fetching it on first use.
func (c *Client) loadAssets(ctx context.Context) (map[string]assetMeta, error) {
	c.mu.RLock()
	cached := c.assets
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return c.refreshAssets(ctx)
}

func (c *Client) refreshAssets(ctx context.Context) (map[string]assetMeta, error) {
	var out metaResponse
	if err := c.postInfo(ctx, infoRequest{Type: "meta"}, &out); err != nil {
		return nil, err
	}

	assets := make(map[string]assetMeta, len(out.Universe))
	for i, a := range out.Universe {
		if a.IsDelisted {
			continue
		}
		priceDecimals := maxPriceDecimals - a.SzDecimals
		assets[a.Name] = assetMeta{
			index: i,
			meta: types.SymbolMeta{
				SzDecimals: a.SzDecimals,
				TickSize:   decimal.New(1, -priceDecimals),
			},
		}
	}

	c.mu.Lock()
	c.assets = assets
	c.mu.Unlock()
	return assets, nil
}

// asset resolves the wire index and precision for symbol, refreshing the
// universe once when the symbol is unknown.
func (c *Client) asset(ctx context.Context, symbol string) (assetMeta, error) {
	assets, err := c.loadAssets(ctx)
	if err != nil {
		return assetMeta{}, err
	}
	if a, ok := assets[symbol]; ok {
		return a, nil
	}
	if assets, err = c.refreshAssets(ctx); err != nil {
		return assetMeta{}, err
	}
	if a, ok := assets[symbol]; ok {
		return a, nil
	}
	return assetMeta{}, fmt.Errorf("%w: unknown symbol %q", types.ErrInvalidSignal, symbol)
}

// mid returns the current mid price for symbol.
func (c *Client) mid(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var mids map[string]string
	if err := c.postInfo(ctx, infoRequest{Type: "allMids"}, &mids); err != nil {
		return decimal.Zero, err
	}
	raw, ok := mids[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no mid price for %q", types.ErrConnectivity, symbol)
	}
	return parseDecimal(raw), nil
}

// OpenOrders lists resting orders for addr.
func (c *Client) OpenOrders(ctx context.Context, addr string) ([]OpenOrder, error) {
	var out []openOrderWire
	if err := c.postInfo(ctx, infoRequest{Type: "openOrders", User: addr}, &out); err != nil {
		return nil, err
	}
	orders := make([]OpenOrder, 0, len(out))
	for _, o := range out {
		orders = append(orders, decodeOpenOrder(o))
	}
	return orders, nil
}

// OrderHistory lists past orders for addr, newest first as the venue returns
// them.
func (c *Client) OrderHistory(ctx context.Context, addr string) ([]HistoricalOrder, error) {
	var out []historicalOrderWire
	if err := c.postInfo(ctx, infoRequest{Type: "historicalOrders", User: addr}, &out); err != nil {
		return nil, err
	}
	orders := make([]HistoricalOrder, 0, len(out))
	for _, o := range out {
		orders = append(orders, HistoricalOrder{OpenOrder: decodeOpenOrder(o.Order), Status: o.Status})
	}
	return orders, nil
}

func decodeOpenOrder(o openOrderWire) OpenOrder {
	side := types.SideSell
	if o.Side == "B" {
		side = types.SideBuy
	}
	return OpenOrder{
		Symbol:    o.Coin,
		OrderID:   o.Oid,
		Side:      side,
		Size:      parseDecimal(o.Sz),
		LimitPx:   parseDecimal(o.LimitPx),
		Timestamp: o.Timestamp,
	}
}

// ————————————————————————————————————————————————————————————————————————
// Exchange actions
// ————————————————————————————————————————————————————————————————————————

// MarketOpen submits an immediate-execution order: an IOC limit crossed past
// mid by the slippage bound, which is how the venue expresses market orders.
func (c *Client) MarketOpen(ctx context.Context, symbol string, side types.Side, size decimal.Decimal, reduceOnly bool) (*types.VenueResult, error) {
	a, err := c.asset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	mid, err := c.mid(ctx, symbol)
	if err != nil {
		return nil, err
	}
	px := aggressivePrice(a.meta, mid, side)

	wire := orderWire{
		Asset:      a.index,
		IsBuy:      side == types.SideBuy,
		LimitPx:    px.String(),
		Sz:         size.String(),
		ReduceOnly: reduceOnly,
		OrderType:  orderTypeWire{Limit: &limitOrderType{Tif: string(types.TifIoc)}},
	}
	return c.placeOrder(ctx, wire)
}

// MarketClose flattens the current position on symbol using the venue's own
// sizing: the position is read back and closed with an opposite reduce-only
// market order. A flat symbol yields (nil, nil), the null outcome callers
// must distinguish from rejection.
func (c *Client) MarketClose(ctx context.Context, symbol string) (*types.VenueResult, error) {
	state, err := c.ClearinghouseState(ctx, c.Account())
	if err != nil {
		return nil, err
	}
	pos := state.Position(symbol)
	if !pos.Open() {
		return nil, nil
	}

	side := types.SideSell
	if pos.Size.IsNegative() {
		side = types.SideBuy
	}
	return c.MarketOpen(ctx, symbol, side, pos.Size.Abs(), true)
}

// LimitOrder places a resting order at px with the given time-in-force.
func (c *Client) LimitOrder(ctx context.Context, symbol string, side types.Side, size, px decimal.Decimal, tif types.Tif) (*types.VenueResult, error) {
	a, err := c.asset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	wire := orderWire{
		Asset:     a.index,
		IsBuy:     side == types.SideBuy,
		LimitPx:   px.String(),
		Sz:        size.String(),
		OrderType: orderTypeWire{Limit: &limitOrderType{Tif: string(tif)}},
	}
	return c.placeOrder(ctx, wire)
}

// TriggerOrder places a conditional order at triggerPx. Reduce-only is
// enforced here unconditionally: triggers exist to shrink positions, never
// to grow them.
func (c *Client) TriggerOrder(ctx context.Context, symbol string, side types.Side, size, triggerPx decimal.Decimal, kind types.TriggerKind, isMarket bool) (*types.VenueResult, error) {
	a, err := c.asset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	wire := orderWire{
		Asset:      a.index,
		IsBuy:      side == types.SideBuy,
		LimitPx:    triggerPx.String(),
		Sz:         size.String(),
		ReduceOnly: true,
		OrderType: orderTypeWire{Trigger: &triggerOrderType{
			TriggerPx: triggerPx.String(),
			IsMarket:  isMarket,
			Tpsl:      string(kind),
		}},
	}
	return c.placeOrder(ctx, wire)
}

// CancelOrder cancels a resting order by id.
func (c *Client) CancelOrder(ctx context.Context, symbol string, oid int64) error {
	a, err := c.asset(ctx, symbol)
	if err != nil {
		return err
	}

	action := cancelAction{Type: "cancel", Cancels: []cancelWire{{Asset: a.index, Oid: oid}}}
	var out cancelResponse
	if err := c.postExchange(ctx, action, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("%w: cancel %d on %s: %s", types.ErrConnectivity, oid, symbol, out.Status)
	}
	for _, st := range out.Response.Data.Statuses {
		if st != "success" {
			return &types.VenueRejectedError{Code: "cancel_error", Message: st}
		}
	}
	return nil
}

// placeOrder signs and submits one order, decoding the venue's per-order
// status into the result sum. The envelope reports "ok" even when the order
// itself failed; the real outcome lives in the statuses array.
func (c *Client) placeOrder(ctx context.Context, wire orderWire) (*types.VenueResult, error) {
	action := orderAction{Type: "order", Orders: []orderWire{wire}, Grouping: "na"}
	var out exchangeResponse
	if err := c.postExchange(ctx, action, &out); err != nil {
		return nil, err
	}

	if out.Status != "ok" {
		return types.Rejected("api_error", out.Status), nil
	}
	statuses := out.Response.Data.Statuses
	if len(statuses) == 0 {
		return types.Rejected("api_error", "empty status list"), nil
	}

	st := statuses[0]
	switch {
	case st.Error != "":
		return types.Rejected("order_error", st.Error), nil
	case st.Filled != nil:
		return types.Filled(st.Filled.Oid, parseDecimal(st.Filled.AvgPx), parseDecimal(st.Filled.TotalSz)), nil
	case st.Resting != nil:
		return types.Resting(st.Resting.Oid), nil
	default:
		return types.Rejected("api_error", "status carries no outcome"), nil
	}
}

func (c *Client) postExchange(ctx context.Context, action any, out any) error {
	if err := c.rl.Exchange.Wait(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	signer := c.signer
	httpc := c.exch
	c.mu.RUnlock()

	nonce := c.nextNonce()
	sig, err := signer.SignAction(action, nonce)
	if err != nil {
		return err
	}

	resp, err := httpc.R().
		SetContext(ctx).
		SetBody(exchangeRequest{Action: action, Nonce: nonce, Signature: sig}).
		SetResult(out).
		Post("/exchange")
	if err != nil {
		return fmt.Errorf("%w: exchange: %v", types.ErrConnectivity, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: exchange: status %d: %s", types.ErrConnectivity, resp.StatusCode(), resp.String())
	}
	return nil
}

// nextNonce returns a strictly increasing millisecond nonce.
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	now := time.Now().UnixMilli()
	if now <= c.nonce {
		now = c.nonce + 1
	}
	c.nonce = now
	return now
}

// aggressivePrice crosses mid by the slippage bound and quantizes the result
// to the venue's price rules: tick-aligned and at most five significant
// digits.
func aggressivePrice(meta types.SymbolMeta, mid decimal.Decimal, side types.Side) decimal.Decimal {
	var px decimal.Decimal
	if side == types.SideBuy {
		px = mid.Mul(decimal.NewFromInt(1).Add(defaultSlippage))
	} else {
		px = mid.Mul(decimal.NewFromInt(1).Sub(defaultSlippage))
	}

	decimals := -meta.TickSize.Exponent()
	intDigits := int32(len(px.Abs().Truncate(0).String()))
	if px.Abs().LessThan(decimal.NewFromInt(1)) {
		intDigits = 0
	}
	if allowed := maxSigFigs - intDigits; allowed < decimals {
		decimals = allowed
	}
	if decimals < 0 {
		decimals = 0
	}
	return px.Truncate(decimals)
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
