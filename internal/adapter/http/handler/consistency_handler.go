package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openbill/arledger/internal/adapter/http/dto"
	"github.com/openbill/arledger/internal/usecase"
)

// ConsistencyService defines the behavior needed by ConsistencyHandler.
type ConsistencyService interface {
	CheckPayment(ctx context.Context, paymentID string) (*usecase.PaymentCheckResult, error)
	GenerateReport(ctx context.Context) (*usecase.ConsistencyReport, error)
}

// ConsistencyHandler exposes the consistency checker over HTTP.
type ConsistencyHandler struct {
	consistencyUC ConsistencyService
}

// NewConsistencyHandler creates a new ConsistencyHandler.
func NewConsistencyHandler(consistencyUC ConsistencyService) *ConsistencyHandler {
	return &ConsistencyHandler{consistencyUC: consistencyUC}
}

// CheckPayment re-derives one payment's balance and verifies its entry
// tree.
func (h *ConsistencyHandler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing payment ID", "")
		return
	}

	result, err := h.consistencyUC.CheckPayment(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to check payment", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.PaymentCheckFromUseCase(result))
}

// Report sweeps every payment and customer credit ledger.
func (h *ConsistencyHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.consistencyUC.GenerateReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate report", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyReportFromUseCase(report))
}
