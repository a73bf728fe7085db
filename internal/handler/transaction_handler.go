package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"payments-engine/internal/domain"
	"payments-engine/internal/errors"
	"payments-engine/internal/ingest"
	"payments-engine/internal/service"
)

type TransactionHandler struct {
	transactionService *service.TransactionService
	logger             *slog.Logger
}

func NewTransactionHandler(transactionService *service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

type EntryResponse struct {
	Type   domain.EntryType `json:"type"`
	Client uint16           `json:"client"`
	Tx     uint32           `json:"tx"`
	Status string           `json:"status"`
}

type BatchResponse struct {
	service.RunStats
	Skipped int `json:"skipped"`
}

// ProcessEntry applies one JSON entry: {"type":"deposit","client":1,"tx":1,"amount":"1.5"}.
func (h *TransactionHandler) ProcessEntry(w http.ResponseWriter, r *http.Request) {
	var entry domain.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, errors.ErrInvalidInput.WithDetails(err.Error()))
		return
	}

	if err := h.transactionService.Process(entry); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, EntryResponse{
		Type:   entry.Type,
		Client: entry.ClientID,
		Tx:     entry.TxID,
		Status: "applied",
	})
}

// ProcessBatch applies a CSV body in order. Rejected entries are counted, not fatal.
func (h *TransactionHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	reader := ingest.NewReader(r.Body, h.logger)

	stats, err := h.transactionService.ProcessStream(r.Context(), reader)
	if err != nil {
		writeError(w, errors.ErrInvalidInput.Wrap(err))
		return
	}

	writeJSON(w, http.StatusOK, BatchResponse{RunStats: stats, Skipped: reader.Skipped()})
}
