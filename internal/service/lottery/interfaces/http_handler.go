package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"lucky/internal/service/lottery/application"
	"lucky/internal/service/lottery/domain"
)

// LotteryHandler 封装了 lottery 服务的 HTTP 处理器
type LotteryHandler struct {
	service *application.LotteryService
}

// NewLotteryHandler 创建一个新的 HTTP 处理器实例
func NewLotteryHandler(service *application.LotteryService) *LotteryHandler {
	return &LotteryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *LotteryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/lottery/draw", h.handleDraw)
	mux.HandleFunc("/lottery/draw_batch", h.handleDrawBatch)
	mux.HandleFunc("/lottery/debts/clear", h.handleClearDebt)
	mux.HandleFunc("/lottery/debts/summary", h.handleDebtSummary)
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
}

func (h *LotteryHandler) handleDraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.DrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result, err := h.service.Draw(ctx, &req)
	drawDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		drawFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		http.Error(w, err.Error(), statusCodeFor(err))
		return
	}

	observeResult(result)
	writeJSON(w, result)
}

func (h *LotteryHandler) handleDrawBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.DrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	batch, err := h.service.DrawBatch(ctx, &req)
	if err != nil {
		drawFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		http.Error(w, err.Error(), statusCodeFor(err))
		return
	}

	for _, result := range batch.Results {
		observeResult(result)
	}
	writeJSON(w, batch)
}

func (h *LotteryHandler) handleClearDebt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.ClearDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.ClearDebt(ctx, &req)
	if err != nil {
		http.Error(w, err.Error(), statusCodeFor(err))
		return
	}
	debtsClearedTotal.WithLabelValues(req.Kind).Inc()
	writeJSON(w, resp)
}

// handleDebtSummary 按 group 参数选择聚合维度: campaign(默认) | prize | creator
func (h *LotteryHandler) handleDebtSummary(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	campaignID, err := strconv.ParseInt(r.URL.Query().Get("campaign_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid campaign_id", http.StatusBadRequest)
		return
	}

	switch r.URL.Query().Get("group") {
	case "", "campaign":
		summary, err := h.service.DebtSummaryByCampaign(ctx, campaignID)
		if err != nil {
			http.Error(w, err.Error(), statusCodeFor(err))
			return
		}
		writeJSON(w, summary)
	case "prize":
		summaries, err := h.service.DebtSummaryByPrize(ctx, campaignID)
		if err != nil {
			http.Error(w, err.Error(), statusCodeFor(err))
			return
		}
		writeJSON(w, summaries)
	case "creator":
		summaries, err := h.service.DebtSummaryByCreator(ctx, campaignID)
		if err != nil {
			http.Error(w, err.Error(), statusCodeFor(err))
			return
		}
		writeJSON(w, summaries)
	default:
		http.Error(w, "invalid group, expect campaign|prize|creator", http.StatusBadRequest)
	}
}

func (h *LotteryHandler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusCodeFor 把领域错误映射到 HTTP 状态码
func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound),
		errors.Is(err, domain.ErrDebtNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCampaignNotActive),
		errors.Is(err, domain.ErrDrawLimitExceeded),
		errors.Is(err, domain.ErrDebtCeilingExceeded),
		errors.Is(err, domain.ErrInsufficientResource),
		errors.Is(err, domain.ErrDebtAlreadyWrittenOff),
		errors.Is(err, domain.ErrInvalidClearAmount):
		return http.StatusForbidden // 请求有效，但业务规则拒绝执行
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound):
		return "campaign_not_found"
	case errors.Is(err, domain.ErrCampaignNotActive):
		return "campaign_not_active"
	case errors.Is(err, domain.ErrDrawLimitExceeded):
		return "draw_limit"
	case errors.Is(err, domain.ErrDebtCeilingExceeded):
		return "debt_ceiling"
	case errors.Is(err, domain.ErrInsufficientResource):
		return "insufficient_resource"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return "invalid_configuration"
	default:
		return "internal"
	}
}

func observeResult(result *application.DrawResult) {
	drawsTotal.WithLabelValues(result.SelectedTier, result.DecisionSource).Inc()
	if len(result.DowngradePath) > 1 {
		downgradesTotal.Inc()
	}
	for _, debt := range result.DebtCreated {
		debtsCreatedTotal.WithLabelValues(debt.Kind).Inc()
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
