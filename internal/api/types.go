package api

import (
	"hlbridge/internal/engine"
	"hlbridge/internal/strategy"
	"hlbridge/internal/venue"
)

// errorResponse is the 4xx/5xx body shape.
type errorResponse struct {
	Detail string `json:"detail"`
}

// webhookAck answers webhook ingestion. Execution is present when the
// signal reached the engine, whatever terminal it hit.
type webhookAck struct {
	Status    string                  `json:"status"`
	WebhookID string                  `json:"webhook_id,omitempty"`
	Message   string                  `json:"message"`
	Execution *engine.ExecutionReport `json:"execution,omitempty"`
}

// statusResponse is the /status panel payload.
type statusResponse struct {
	Status           string           `json:"status"`
	Environment      string           `json:"environment"`
	Uptime           string           `json:"uptime"`
	Balance          float64          `json:"balance"`
	BalanceStale     bool             `json:"balance_stale,omitempty"`
	WalletAddress    string           `json:"wallet_address"`
	Connected        bool             `json:"hyperliquid_connected"`
	Statistics       statisticsBody   `json:"statistics"`
	UptimeMonitoring uptimeMonitoring `json:"uptime_monitoring"`
}

type statisticsBody struct {
	TotalWebhooks      int64  `json:"total_webhooks"`
	SuccessfulForwards int64  `json:"successful_forwards"`
	FailedForwards     int64  `json:"failed_forwards"`
	SuccessRate        string `json:"success_rate"`
}

type uptimeMonitoring struct {
	Percentage      string `json:"percentage"`
	TotalPings      int64  `json:"total_pings"`
	SuccessfulPings int64  `json:"successful_pings"`
	FailedPings     int64  `json:"failed_pings"`
	MonitoringSince string `json:"monitoring_since"`
}

// strategyBody is one registry entry as the dashboard sees it.
type strategyBody struct {
	ID      string         `json:"id"`
	Enabled bool           `json:"enabled"`
	Rules   strategy.Rules `json:"rules"`
	Stats   strategy.Stats `json:"stats"`
}

func strategyToBody(s strategy.Strategy) strategyBody {
	return strategyBody{ID: s.ID, Enabled: s.Enabled, Rules: s.Rules, Stats: s.Stats}
}

// ordersResponse wraps the venue pass-through reads.
type ordersResponse struct {
	Status        string `json:"status"`
	WalletAddress string `json:"wallet_address"`
	TotalOrders   int    `json:"total_orders"`
	Orders        any    `json:"orders"`
}

func openOrdersBody(orders []venue.OpenOrder) []venue.OpenOrder {
	if orders == nil {
		return []venue.OpenOrder{}
	}
	return orders
}

func historyBody(orders []venue.HistoricalOrder) []venue.HistoricalOrder {
	if orders == nil {
		return []venue.HistoricalOrder{}
	}
	return orders
}
