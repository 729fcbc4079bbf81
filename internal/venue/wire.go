// wire.go defines the JSON shapes exchanged with the Hyperliquid HTTP API.
//
// Info queries are POSTed to /info with a "type" discriminator; trading
// actions are POSTed to /exchange as {action, nonce, signature}. Order
// payloads use the compact single-letter wire form {a,b,p,s,r,t}.
package venue

// infoRequest is the body of every /info query.
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// metaResponse is the perp universe returned by {"type":"meta"}.
type metaResponse struct {
	Universe []assetInfo `json:"universe"`
}

type assetInfo struct {
	Name       string `json:"name"`
	SzDecimals int32  `json:"szDecimals"`
	IsDelisted bool   `json:"isDelisted,omitempty"`
}

// userRoleResponse answers {"type":"userRole"}. For agent keys Data.User
// names the master account the agent signs for.
type userRoleResponse struct {
	Role string `json:"role"`
	Data struct {
		User string `json:"user"`
	} `json:"data"`
}

// clearinghouseResponse is the perp account state.
type clearinghouseResponse struct {
	MarginSummary struct {
		AccountValue string `json:"accountValue"`
	} `json:"marginSummary"`
	Withdrawable   string          `json:"withdrawable"`
	AssetPositions []assetPosition `json:"assetPositions"`
}

type assetPosition struct {
	Position struct {
		Coin    string  `json:"coin"`
		Szi     string  `json:"szi"`
		EntryPx *string `json:"entryPx"`
	} `json:"position"`
}

// spotStateResponse is the spot account state.
type spotStateResponse struct {
	Balances []spotBalanceWire `json:"balances"`
}

type spotBalanceWire struct {
	Coin  string `json:"coin"`
	Total string `json:"total"`
	Hold  string `json:"hold"`
}

// openOrderWire is one entry of the {"type":"openOrders"} response.
type openOrderWire struct {
	Coin      string `json:"coin"`
	Oid       int64  `json:"oid"`
	Side      string `json:"side"` // "B" or "A"
	Sz        string `json:"sz"`
	LimitPx   string `json:"limitPx"`
	Timestamp int64  `json:"timestamp"`
}

// historicalOrderWire is one entry of {"type":"historicalOrders"}.
type historicalOrderWire struct {
	Order  openOrderWire `json:"order"`
	Status string        `json:"status"`
}

// limitOrderType selects time-in-force for limit orders.
type limitOrderType struct {
	Tif string `json:"tif"`
}

// triggerOrderType describes a conditional order. TriggerPx is a decimal
// string; Tpsl is "sl" or "tp".
type triggerOrderType struct {
	TriggerPx string `json:"triggerPx"`
	IsMarket  bool   `json:"isMarket"`
	Tpsl      string `json:"tpsl"`
}

type orderTypeWire struct {
	Limit   *limitOrderType   `json:"limit,omitempty"`
	Trigger *triggerOrderType `json:"trigger,omitempty"`
}

// orderWire is the compact order form the exchange endpoint expects:
// a=asset index, b=is buy, p=limit price, s=size, r=reduce only, t=type.
type orderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	LimitPx    string        `json:"p"`
	Sz         string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	OrderType  orderTypeWire `json:"t"`
}

// orderAction is the /exchange action placing one or more orders.
type orderAction struct {
	Type     string      `json:"type"` // "order"
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"` // "na"
}

// cancelAction cancels orders by asset index and oid.
type cancelAction struct {
	Type    string       `json:"type"` // "cancel"
	Cancels []cancelWire `json:"cancels"`
}

type cancelWire struct {
	Asset int   `json:"a"`
	Oid   int64 `json:"o"`
}

// exchangeRequest is the signed envelope for /exchange.
type exchangeRequest struct {
	Action       any     `json:"action"`
	Nonce        int64   `json:"nonce"`
	Signature    rsv     `json:"signature"`
	VaultAddress *string `json:"vaultAddress"`
}

// exchangeResponse is the envelope of every /exchange reply. Status is "ok"
// even when individual orders fail; the per-order outcome lives in
// Response.Data.Statuses.
type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// orderStatusWire is the per-order outcome: exactly one of Resting, Filled,
// or Error is populated.
type orderStatusWire struct {
	Resting *restingWire `json:"resting,omitempty"`
	Filled  *filledWire  `json:"filled,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type restingWire struct {
	Oid int64 `json:"oid"`
}

type filledWire struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     int64  `json:"oid"`
}

// cancelResponse is the envelope of a cancel action reply.
type cancelResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []string `json:"statuses"` // "success" per cancel
		} `json:"data"`
	} `json:"response"`
}
