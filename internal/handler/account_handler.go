package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"payments-engine/internal/errors"
	"payments-engine/internal/report"
	"payments-engine/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

type SnapshotResponse struct {
	RunID     string       `json:"run_id"`
	CreatedAt string       `json:"created_at"`
	Accounts  []report.Row `json:"accounts"`
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, report.Rows(h.accountService.ListAccounts()))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseUint(mux.Vars(r)["client_id"], 10, 16)
	if err != nil {
		writeError(w, errors.ErrInvalidInput.WithDetails("client_id must be an integer between 0 and 65535"))
		return
	}

	account, err := h.accountService.GetAccount(uint16(clientID))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report.NewRow(account))
}

func (h *AccountHandler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.accountService.ExportSnapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SnapshotResponse{
		RunID:     snapshot.RunID.String(),
		CreatedAt: snapshot.CreatedAt.Format(time.RFC3339Nano),
		Accounts:  report.Rows(snapshot.Accounts),
	})
}

func (h *AccountHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(mux.Vars(r)["run_id"])
	if err != nil {
		writeError(w, errors.ErrInvalidInput.WithDetails("invalid run_id format"))
		return
	}

	snapshot, err := h.accountService.GetSnapshot(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SnapshotResponse{
		RunID:     snapshot.RunID.String(),
		CreatedAt: snapshot.CreatedAt.Format(time.RFC3339Nano),
		Accounts:  report.Rows(snapshot.Accounts),
	})
}
