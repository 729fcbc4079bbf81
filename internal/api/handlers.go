package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"hlbridge/internal/account"
	"hlbridge/internal/balance"
	"hlbridge/internal/config"
	"hlbridge/internal/engine"
	"hlbridge/internal/journal"
	"hlbridge/internal/strategy"
	"hlbridge/internal/uptime"
	"hlbridge/internal/venue"
	"hlbridge/pkg/brtime"
	"hlbridge/pkg/types"
)

const (
	maxLogLimit         = 1000
	defaultLogLimit     = 100
	defaultJournalLimit = 50
	defaultOrderLimit   = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handlers holds every dependency the HTTP surface touches.
type Handlers struct {
	cfg      *config.Config
	engine   *engine.Engine
	venue    *venue.Client
	resolver *account.Resolver
	balance  *balance.Cache
	registry *strategy.Registry
	recorder *journal.Recorder
	prober   *uptime.Prober
	hub      *Hub
	restart  chan<- struct{}
	started  time.Time
	logger   *slog.Logger
}

func NewHandlers(
	cfg *config.Config,
	eng *engine.Engine,
	client *venue.Client,
	resolver *account.Resolver,
	bal *balance.Cache,
	registry *strategy.Registry,
	recorder *journal.Recorder,
	prober *uptime.Prober,
	hub *Hub,
	restart chan<- struct{},
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		engine:   eng,
		venue:    client,
		resolver: resolver,
		balance:  bal,
		registry: registry,
		recorder: recorder,
		prober:   prober,
		hub:      hub,
		restart:  restart,
		started:  time.Now(),
		logger:   logger.With("component", "api-handlers"),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, errorResponse{Detail: fmt.Sprintf(format, args...)})
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// strategyFilter parses the strategy_ids CSV parameter. An absent parameter
// means unfiltered (nil); a present-but-empty one is a deliberate empty
// selection and yields the empty set.
func strategyFilter(r *http.Request) []string {
	if !r.URL.Query().Has("strategy_ids") {
		return nil
	}
	ids := make([]string, 0)
	for _, raw := range strings.Split(r.URL.Query().Get("strategy_ids"), ",") {
		if id := strings.TrimSpace(raw); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// HandleWebhook ingests a TradingView signal and runs it to a terminal
// state before answering.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, "tradingview", nil)
}

// HandleReExecute re-runs a previously journaled payload as if it just
// arrived. The original journal entry is never touched; a fresh one is
// written.
func (h *Handlers) HandleReExecute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Payload map[string]any `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: %v", err)
		return
	}
	if len(body.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "no payload found in webhook data")
		return
	}
	h.ingest(w, r, "re-execution", body.Payload)
}

// ingest is the shared webhook pipeline: decode, auto-register the
// strategy, journal, parse, execute, answer.
func (h *Handlers) ingest(w http.ResponseWriter, r *http.Request, source string, payload map[string]any) {
	ctx := r.Context()

	if payload == nil {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.recorder.Log(ctx, "ERROR", "webhook JSON parsing failed", map[string]any{
				"source": source, "error": err.Error(),
			})
			writeError(w, http.StatusBadRequest, "invalid JSON format: %v", err)
			return
		}
	}

	strategyID := types.DefaultStrategyID
	if raw, ok := payload["strategy_id"].(string); ok && strings.TrimSpace(raw) != "" {
		strategyID = strings.TrimSpace(raw)
	}
	h.registry.Ensure(ctx, strategyID)
	h.registry.Increment(ctx, strategyID, strategy.OutcomeReceived)

	sig, parseErr := types.ParseSignal(payload)
	if parseErr != nil {
		webhookID := h.recorder.Webhook(ctx, payload, "failed", strategyID, source)
		h.recorder.Log(ctx, "ERROR", "webhook validation failed", map[string]any{
			"webhook_id": webhookID, "strategy_id": strategyID, "error": parseErr.Error(),
		})
		h.registry.Increment(ctx, strategyID, strategy.OutcomeFailure)
		writeError(w, http.StatusBadRequest, "%v", parseErr)
		return
	}

	webhookID := h.recorder.Webhook(ctx, payload, "received", sig.StrategyID, source)
	h.recorder.Log(ctx, "INFO", "webhook received", map[string]any{
		"webhook_id": webhookID, "strategy_id": sig.StrategyID,
		"symbol": sig.Symbol, "side": sig.Side, "source": source,
	})

	report, err := h.engine.Execute(ctx, *sig, webhookID)
	switch {
	case errors.Is(err, types.ErrStrategyDisabled):
		h.recorder.Log(ctx, "INFO", "strategy disabled, signal skipped", map[string]any{
			"webhook_id": webhookID, "strategy_id": sig.StrategyID,
		})
		writeJSON(w, http.StatusOK, webhookAck{
			Status:    "skipped",
			WebhookID: webhookID,
			Message:   fmt.Sprintf("strategy %s is disabled", sig.StrategyID),
		})
	case errors.Is(err, types.ErrSymbolBusy):
		h.recorder.Log(ctx, "ERROR", "symbol lock acquisition timed out", map[string]any{
			"webhook_id": webhookID, "symbol": sig.Symbol,
		})
		h.registry.Increment(ctx, sig.StrategyID, strategy.OutcomeFailure)
		writeError(w, http.StatusServiceUnavailable, "symbol %s is busy with another signal", sig.Symbol)
	case errors.Is(err, types.ErrInvalidSignal):
		h.registry.Increment(ctx, sig.StrategyID, strategy.OutcomeFailure)
		writeError(w, http.StatusBadRequest, "%v", err)
	case err != nil:
		h.registry.Increment(ctx, sig.StrategyID, strategy.OutcomeFailure)
		writeError(w, http.StatusInternalServerError, "%v", err)
	default:
		writeJSON(w, http.StatusOK, webhookAck{
			Status:    "success",
			WebhookID: webhookID,
			Message:   "Webhook processed and forwarded to Hyperliquid",
			Execution: report,
		})
	}
}

// HandleStatus builds the dashboard status panel.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:      "running",
		Environment: string(h.venue.Environment()),
		Uptime:      formatUptime(time.Since(h.started)),
		Connected:   true,
	}

	snap, err := h.balance.Get(r.Context())
	if err != nil {
		resp.WalletAddress = h.venue.Account()
		resp.Connected = false
	} else {
		resp.Balance = snap.Total.InexactFloat64()
		resp.BalanceStale = snap.Stale
		resp.WalletAddress = h.venue.Account()
	}

	totals := h.registry.Totals()
	resp.Statistics = statisticsBody{
		TotalWebhooks:      totals.TotalWebhooks,
		SuccessfulForwards: totals.SuccessfulForwards,
		FailedForwards:     totals.FailedForwards,
		SuccessRate:        successRate(totals),
	}

	up := h.prober.Snapshot()
	resp.UptimeMonitoring = uptimeMonitoring{
		Percentage:      fmt.Sprintf("%.1f%%", up.Percentage),
		TotalPings:      up.TotalPings,
		SuccessfulPings: up.SuccessfulPings,
		FailedPings:     up.FailedPings,
		MonitoringSince: up.MonitoringSince,
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", defaultLogLimit)
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	logs, err := h.recorder.Store().RecentLogs(r.Context(), limit, r.URL.Query().Get("level"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get logs: %v", err)
		return
	}
	if logs == nil {
		logs = []journal.Log{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handlers) HandleClearLogs(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.recorder.Store().ClearLogs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear logs: %v", err)
		return
	}
	h.recorder.Log(r.Context(), "INFO", "logs cleared via API", map[string]any{
		"deleted_count": deleted,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       fmt.Sprintf("Successfully cleared %d logs", deleted),
		"deleted_count": deleted,
	})
}

func (h *Handlers) HandleWebhooks(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", defaultJournalLimit)
	webhooks, err := h.recorder.Store().RecentWebhooks(r.Context(), limit, strategyFilter(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get webhooks: %v", err)
		return
	}
	if webhooks == nil {
		webhooks = []journal.WebhookReceived{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": webhooks})
}

func (h *Handlers) HandleResponses(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", defaultJournalLimit)
	responses, err := h.recorder.Store().RecentResponses(r.Context(), limit, strategyFilter(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get responses: %v", err)
		return
	}
	if responses == nil {
		responses = []journal.VenueResponse{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

func (h *Handlers) HandleStrategies(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]strategyBody)
	for _, s := range h.registry.List() {
		out[s.ID] = strategyToBody(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": out})
}

func (h *Handlers) HandleStrategyIDs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strategy_ids": h.registry.ListIDs()})
}

func (h *Handlers) HandleStrategy(w http.ResponseWriter, r *http.Request) {
	// Mirrors auto-discovery at ingestion: asking for an unknown strategy
	// registers it with the defaults.
	s := h.registry.Ensure(r.Context(), r.PathValue("id"))
	writeJSON(w, http.StatusOK, strategyToBody(s))
}

func (h *Handlers) HandleToggleStrategy(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.registry.Toggle(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "strategy %s not found", id)
		return
	}
	verb := "disabled"
	if s.Enabled {
		verb = "enabled"
	}
	h.recorder.Log(r.Context(), "INFO", "strategy toggled", map[string]any{
		"strategy_id": id, "enabled": s.Enabled,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"strategy_id": id,
		"enabled":     s.Enabled,
		"message":     fmt.Sprintf("Strategy %s %s", id, verb),
	})
}

func (h *Handlers) HandleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"environment": h.venue.Environment()})
}

// HandleSwitchEnvironment flips testnet and mainnet: new signer, fresh
// metadata, re-resolved trading account, invalidated balance.
func (h *Handlers) HandleSwitchEnvironment(w http.ResponseWriter, r *http.Request) {
	env := types.Environment(strings.ToLower(r.URL.Query().Get("environment")))
	if !env.Valid() {
		writeError(w, http.StatusBadRequest, "Environment must be 'testnet' or 'mainnet'")
		return
	}

	key := h.cfg.Key(env)
	if key == "" {
		writeError(w, http.StatusBadRequest, "no wallet key configured for %s", env)
		return
	}

	if err := h.venue.SwitchEnvironment(env, key); err != nil {
		writeError(w, http.StatusBadRequest, "failed to switch environment: %v", err)
		return
	}

	master, err := h.resolver.Resolve(r.Context(), h.venue.Address())
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to resolve trading account on %s: %v", env, err)
		return
	}
	h.venue.SetAccount(master)
	h.balance.Invalidate()
	h.engine.InvalidateMeta()

	h.recorder.Log(r.Context(), "INFO", "environment switched", map[string]any{
		"environment": env, "wallet_address": master,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "environment": env})
}

// HandleRestart requests a graceful self-restart; the main loop owns the
// actual shutdown.
func (h *Handlers) HandleRestart(w http.ResponseWriter, r *http.Request) {
	h.recorder.Log(r.Context(), "INFO", "server restart requested via API", nil)
	select {
	case h.restart <- struct{}{}:
	default:
		// A restart is already pending.
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Server restart initiated",
	})
}

func (h *Handlers) HandleResetUptimeStats(w http.ResponseWriter, r *http.Request) {
	h.prober.Reset()
	h.recorder.Log(r.Context(), "INFO", "uptime statistics reset", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   "Uptime statistics reset successfully",
		"timestamp": brtime.Format(brtime.Now()),
	})
}

func (h *Handlers) HandleRefreshBalance(w http.ResponseWriter, r *http.Request) {
	h.balance.Invalidate()
	snap, err := h.balance.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to refresh balance: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet_address": h.venue.Account(),
		"balance":        snap.Total.InexactFloat64(),
		"timestamp":      brtime.Format(brtime.Now()),
		"message":        "Balance refreshed successfully",
	})
}

func (h *Handlers) HandleOrderHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", defaultOrderLimit)
	orders, err := h.venue.OrderHistory(r.Context(), h.venue.Account())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get order history: %v", err)
		return
	}
	if len(orders) > limit {
		orders = orders[len(orders)-limit:]
	}
	writeJSON(w, http.StatusOK, ordersResponse{
		Status:        "success",
		WalletAddress: h.venue.Account(),
		TotalOrders:   len(orders),
		Orders:        historyBody(orders),
	})
}

func (h *Handlers) HandleOpenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.venue.OpenOrders(r.Context(), h.venue.Account())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get open orders: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, ordersResponse{
		Status:        "success",
		WalletAddress: h.venue.Account(),
		TotalOrders:   len(orders),
		Orders:        openOrdersBody(orders),
	})
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn)

	hello := StreamEvent{
		Type:      "connected",
		Timestamp: brtime.Format(brtime.Now()),
	}
	if data, err := json.Marshal(hello); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}

func successRate(s strategy.Stats) string {
	total := s.TotalWebhooks
	if total < 1 {
		total = 1
	}
	return fmt.Sprintf("%.1f%%", float64(s.SuccessfulForwards)/float64(total)*100)
}

func formatUptime(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%02dh %02dm %02ds", secs/3600, (secs%3600)/60, secs%60)
}
