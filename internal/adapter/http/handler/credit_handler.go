package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openbill/arledger/internal/adapter/http/dto"
	"github.com/openbill/arledger/internal/domain"
)

// CreditService defines the behavior needed by CreditHandler.
type CreditService interface {
	Lookup(ctx context.Context, customerID string, at *time.Time) (decimal.Decimal, error)
}

// CreditHistoryReader lists a customer's credit balance history.
type CreditHistoryReader interface {
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.CreditBalanceEntry, error)
}

// CreditHandler handles credit balance HTTP requests.
type CreditHandler struct {
	creditUC CreditService
	history  CreditHistoryReader
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(creditUC CreditService, history CreditHistoryReader) *CreditHandler {
	return &CreditHandler{creditUC: creditUC, history: history}
}

// GetBalance returns a customer's standing credit balance. An `as_of`
// query parameter switches to a point-in-time lookup, bypassing the cache.
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "missing customer ID", "")
		return
	}

	asOf, err := parseTimeQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of timestamp", err.Error())
		return
	}

	balance, err := h.creditUC.Lookup(r.Context(), customerID, asOf)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to look up credit balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.CreditBalanceResponse{
		CustomerID: customerID,
		Balance:    balance,
		AsOf:       asOf,
	})
}

// GetHistory returns the customer's full credit balance history in chain
// order.
func (h *CreditHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "missing customer ID", "")
		return
	}

	entries, err := h.history.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list credit history", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.CreditHistoryFromDomain(entries))
}
