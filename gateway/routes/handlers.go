package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"backchain/chain"
	"backchain/views"
)

type handlers struct {
	views   Views
	logger  *slog.Logger
	timeout time.Duration
}

func (h *handlers) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	view, err := h.views.Dashboard(ctx)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(view))
}

func (h *handlers) validators(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()
	list, err := h.views.Validators(ctx)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	views.SortByPStake(list)
	writeJSON(w, http.StatusOK, map[string]any{"validators": newValidatorResponses(list)})
}

func (h *handlers) store(w http.ResponseWriter, r *http.Request) {
	var user common.Address
	if raw := r.URL.Query().Get("account"); raw != "" {
		parsed, err := parseAddress(raw)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		user = parsed
	}
	h.serveStore(w, r, user)
}

func (h *handlers) accountStore(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	h.serveStore(w, r, user)
}

func (h *handlers) serveStore(w http.ResponseWriter, r *http.Request, user common.Address) {
	ctx, cancel := h.context(r)
	defer cancel()
	tiers, err := h.views.Store(ctx, user)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	out := make([]storeTierResponse, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, newStoreTierResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": out})
}

func (h *handlers) actions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter, err := views.ParseActionFilter(strings.ToLower(query.Get("filter")))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	page := 1
	if raw := query.Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			writeBadRequest(w, fmt.Errorf("invalid page %q", raw))
			return
		}
	}
	ctx, cancel := h.context(r)
	defer cancel()
	list, err := h.views.Actions(ctx, filter)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	paged := views.Paginate(list, page, views.ActionsPerPage)
	items := make([]actionResponse, 0, len(paged.Items))
	for _, a := range paged.Items {
		items = append(items, newActionResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actions":    items,
		"page":       paged.Page,
		"totalPages": paged.TotalPages,
		"total":      paged.Total,
	})
}

func (h *handlers) account(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	view, err := h.views.UserView(ctx, user)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(view))
}

func (h *handlers) rewards(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	view, err := h.views.Rewards(ctx, user)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRewardsResponse(view))
}

func (h *handlers) certificates(w http.ResponseWriter, r *http.Request) {
	user, ok := addressParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	certs, err := h.views.Certificates(ctx, user)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	out := make([]certificateResponse, 0, len(certs))
	for _, c := range certs {
		detail, err := h.views.CertificateDetail(ctx, c.TokenID)
		if err != nil {
			h.writeViewError(w, r, err)
			return
		}
		out = append(out, newCertificateResponse(detail))
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": out})
}

func (h *handlers) certificate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "tokenID")
	tokenID, ok := new(big.Int).SetString(raw, 10)
	if !ok || tokenID.Sign() < 0 {
		writeBadRequest(w, fmt.Errorf("invalid token id %q", raw))
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()
	detail, err := h.views.CertificateDetail(ctx, tokenID)
	if err != nil {
		h.writeViewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCertificateResponse(detail))
}

func addressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return common.Address{}, false
	}
	return addr, true
}

func parseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

// writeViewError maps read failures onto HTTP statuses. Only transport
// failures reach here; recoverable reads already fell back.
func (h *handlers) writeViewError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, views.ErrStoreUnavailable), errors.Is(err, chain.ErrNoHandle):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away.
		return
	}
	h.logger.Warn("view failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()))
	writeJSONError(w, status, errors.New(chain.Reason(err)))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := ""
	if err != nil {
		message = strings.TrimSpace(err.Error())
	}
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// amount renders base units as a decimal string so clients keep full
// precision.
func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
