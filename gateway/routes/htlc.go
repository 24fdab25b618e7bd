package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hashbridge/native/htlc"
)

type htlcRoutes struct {
	engine *htlc.Engine
	logger *slog.Logger
}

func (h *htlcRoutes) mount(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Post("/orders/execute", h.executeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/match", h.matchOrder)
	r.Post("/orders/{id}/claim", h.claimOrder)
	r.Post("/orders/{id}/refund", h.refundOrder)
	r.Get("/resolvers", h.listResolvers)
	r.Post("/resolvers", h.addResolver)
	r.Get("/resolvers/{addr}", h.getResolver)
	r.Delete("/resolvers/{addr}", h.removeResolver)
	r.Get("/config", h.getConfig)
	r.Post("/config", h.updateConfig)
}

type orderResponse struct {
	ID                 string `json:"id"`
	Variant            string `json:"variant"`
	Maker              string `json:"maker"`
	Resolver           string `json:"resolver,omitempty"`
	Amount             string `json:"amount"`
	ResolverFee        string `json:"resolver_fee"`
	SafetyDeposit      string `json:"safety_deposit"`
	Hashlock           string `json:"hashlock"`
	Timelocks          string `json:"timelocks,omitempty"`
	Preimage           string `json:"preimage,omitempty"`
	Timelock           uint64 `json:"timelock"`
	SourceChainID      uint64 `json:"source_chain_id,omitempty"`
	DestinationChain   string `json:"destination_chain,omitempty"`
	DestinationToken   string `json:"destination_token,omitempty"`
	DestinationAmount  string `json:"destination_amount,omitempty"`
	DestinationAddress string `json:"destination_address,omitempty"`
	Status             string `json:"status"`
	CreatedAt          int64  `json:"created_at"`
}

type transferResponse struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

func encodeOrder(order *htlc.Order) orderResponse {
	resp := orderResponse{
		ID:                 order.ID,
		Variant:            order.Variant.String(),
		Maker:              order.Maker,
		Resolver:           order.Resolver,
		Amount:             order.Amount.String(),
		ResolverFee:        order.ResolverFee.String(),
		SafetyDeposit:      order.SafetyDeposit.String(),
		Hashlock:           order.Hashlock,
		Timelocks:          order.Timelocks,
		Timelock:           order.Timelock,
		SourceChainID:      order.SourceChainID,
		DestinationChain:   order.DestinationChain,
		DestinationToken:   order.DestinationToken,
		DestinationAddress: order.DestinationAddress,
		Status:             order.Status.String(),
		CreatedAt:          order.CreatedAt,
	}
	if order.DestinationAmount != nil && order.DestinationAmount.Sign() > 0 {
		resp.DestinationAmount = order.DestinationAmount.String()
	}
	if secret, ok := order.Preimage.Secret(); ok {
		resp.Preimage = secret
	}
	return resp
}

func encodeTransfers(transfers []htlc.Transfer) []transferResponse {
	out := make([]transferResponse, 0, len(transfers))
	for _, transfer := range transfers {
		out = append(out, transferResponse{
			To:     transfer.To,
			Amount: transfer.Amount.String(),
			Denom:  transfer.Denom,
		})
	}
	return out
}

func (h *htlcRoutes) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *htlcRoutes) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, errStatus(err), map[string]string{"error": err.Error()})
}

// errStatus maps engine errors onto HTTP status codes. Unrecognized errors
// surface as 500.
func errStatus(err error) int {
	switch {
	case errors.Is(err, htlc.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, htlc.ErrOrderAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, htlc.ErrOrderAlreadyClaimed),
		errors.Is(err, htlc.ErrOrderAlreadyRefunded),
		errors.Is(err, htlc.ErrInvalidOrderStatus),
		errors.Is(err, htlc.ErrTimelockNotExpired),
		errors.Is(err, htlc.ErrTimelockExpired):
		return http.StatusConflict
	case errors.Is(err, htlc.ErrUnauthorized), errors.Is(err, htlc.ErrUnauthorizedResolver):
		return http.StatusForbidden
	case errors.Is(err, htlc.ErrInvalidHashlock),
		errors.Is(err, htlc.ErrInvalidPreimage),
		errors.Is(err, htlc.ErrInvalidTimelock),
		errors.Is(err, htlc.ErrInvalidConfig),
		errors.Is(err, htlc.ErrInsufficientSafetyDeposit),
		errors.Is(err, htlc.ErrInsufficientDeposit),
		errors.Is(err, htlc.ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, htlc.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, errors.New("invalid amount: " + raw)
	}
	return amount, nil
}

func (h *htlcRoutes) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (h *htlcRoutes) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.GetOrder(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encodeOrder(order))
}

func (h *htlcRoutes) listOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var status *htlc.OrderStatus
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		parsed, err := htlc.ParseStatus(raw)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		status = &parsed
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	orders, err := h.engine.ListOrders(status, query.Get("start_after"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, encodeOrder(order))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

type executeOrderRequest struct {
	Caller         string `json:"caller"`
	Funds          string `json:"funds"`
	OrderID        string `json:"order_id"`
	Hashlock       string `json:"hashlock"`
	Timelocks      string `json:"timelocks"`
	Maker          string `json:"maker"`
	Amount         string `json:"amount"`
	ResolverFee    string `json:"resolver_fee"`
	SourceChainID  uint64 `json:"source_chain_id"`
	TimeoutSeconds uint64 `json:"timeout_seconds"`
}

func (h *htlcRoutes) executeOrder(w http.ResponseWriter, r *http.Request) {
	var req executeOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	funds, err := parseAmount(req.Funds)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	fee, err := parseAmount(req.ResolverFee)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	order, err := h.engine.ExecuteOrder(req.Caller, funds, htlc.ExecuteOrderParams{
		OrderID:        req.OrderID,
		Hashlock:       req.Hashlock,
		Timelocks:      req.Timelocks,
		Maker:          req.Maker,
		Amount:         amount,
		ResolverFee:    fee,
		SourceChainID:  req.SourceChainID,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, encodeOrder(order))
}

type createOrderRequest struct {
	Caller             string `json:"caller"`
	Funds              string `json:"funds"`
	OrderID            string `json:"order_id"`
	Hashlock           string `json:"hashlock"`
	Timelock           uint64 `json:"timelock"`
	DestinationChain   string `json:"destination_chain"`
	DestinationToken   string `json:"destination_token"`
	DestinationAmount  string `json:"destination_amount"`
	DestinationAddress string `json:"destination_address"`
	ResolverFee        string `json:"resolver_fee"`
}

func (h *htlcRoutes) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	funds, err := parseAmount(req.Funds)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	fee, err := parseAmount(req.ResolverFee)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	destAmount, err := parseAmount(req.DestinationAmount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	order, err := h.engine.CreateOrder(req.Caller, funds, htlc.CreateOrderParams{
		OrderID:            req.OrderID,
		Hashlock:           req.Hashlock,
		Timelock:           req.Timelock,
		DestinationChain:   req.DestinationChain,
		DestinationToken:   req.DestinationToken,
		DestinationAmount:  destAmount,
		DestinationAddress: req.DestinationAddress,
		ResolverFee:        fee,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, encodeOrder(order))
}

type matchOrderRequest struct {
	Caller string `json:"caller"`
	Funds  string `json:"funds"`
}

func (h *htlcRoutes) matchOrder(w http.ResponseWriter, r *http.Request) {
	var req matchOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	funds, err := parseAmount(req.Funds)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	order, err := h.engine.MatchOrder(req.Caller, funds, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encodeOrder(order))
}

type claimOrderRequest struct {
	Caller   string `json:"caller"`
	Preimage string `json:"preimage"`
}

func (h *htlcRoutes) claimOrder(w http.ResponseWriter, r *http.Request) {
	var req claimOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, transfers, err := h.engine.Claim(req.Caller, chi.URLParam(r, "id"), req.Preimage)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"order":     encodeOrder(order),
		"transfers": encodeTransfers(transfers),
	})
}

type refundOrderRequest struct {
	Caller string `json:"caller"`
}

func (h *htlcRoutes) refundOrder(w http.ResponseWriter, r *http.Request) {
	var req refundOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, transfers, err := h.engine.Refund(req.Caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"order":     encodeOrder(order),
		"transfers": encodeTransfers(transfers),
	})
}

func (h *htlcRoutes) listResolvers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	resolvers, err := h.engine.ListResolvers(query.Get("start_after"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	count, err := h.engine.ResolverCount()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"resolvers": resolvers, "count": count})
}

func (h *htlcRoutes) getResolver(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "addr")
	authorized, err := h.engine.IsAuthorizedResolver(addr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"address": addr, "authorized": authorized})
}

type resolverRequest struct {
	Caller   string `json:"caller"`
	Resolver string `json:"resolver"`
}

func (h *htlcRoutes) addResolver(w http.ResponseWriter, r *http.Request) {
	var req resolverRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.AddResolver(req.Caller, req.Resolver); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"resolver": strings.TrimSpace(req.Resolver)})
}

func (h *htlcRoutes) removeResolver(w http.ResponseWriter, r *http.Request) {
	var req resolverRequest
	if !h.decode(w, r, &req) {
		return
	}
	addr := chi.URLParam(r, "addr")
	if err := h.engine.RemoveResolver(req.Caller, addr); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"resolver": addr})
}

func (h *htlcRoutes) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.engine.Config()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encodeConfig(cfg))
}

type updateConfigRequest struct {
	Caller              string  `json:"caller"`
	Admin               *string `json:"admin"`
	MinSafetyDepositBps *uint16 `json:"min_safety_deposit_bps"`
}

func (h *htlcRoutes) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !h.decode(w, r, &req) {
		return
	}
	cfg, err := h.engine.UpdateConfig(req.Caller, req.Admin, req.MinSafetyDepositBps)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, encodeConfig(cfg))
}

func encodeConfig(cfg htlc.Config) map[string]any {
	return map[string]any{
		"admin":                  cfg.Admin,
		"min_safety_deposit_bps": cfg.MinSafetyDepositBps,
		"native_denom":           cfg.NativeDenom,
	}
}
