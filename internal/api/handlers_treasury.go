package api

import (
	"encoding/json"
	"net/http"

	"github.com/treasury-tracker/internal/service"
	"github.com/treasury-tracker/internal/types"
)

// oldTreasuryDataRequest is the body of the combined balances route.
// Network is left untyped so non-string values can be rejected.
type oldTreasuryDataRequest struct {
	Network interface{} `json:"network"`
}

// handleGetTreasuryHistory returns the persisted daily treasury history of the header network
func (s *Server) handleGetTreasuryHistory(w http.ResponseWriter, r *http.Request) {
	network := r.Header.Get(NetworkHeader)
	if network == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Missing network in request headers", nil)
		return
	}

	history, err := s.treasuryService.GetTreasuryHistory(r.Context(), network)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// handleGetArchivedBalances returns raw archived balance points for one chain of the header network
func (s *Server) handleGetArchivedBalances(w http.ResponseWriter, r *http.Request) {
	network := r.Header.Get(NetworkHeader)
	if network == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Missing network in request headers", nil)
		return
	}

	q := r.URL.Query()
	chain := q.Get("chain")
	if chain == "" {
		chain = string(types.ChainNative)
	}

	rows, err := s.treasuryService.GetArchivedBalances(r.Context(), network, chain, q.Get("from"), q.Get("to"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// handleOldTreasuryData fetches, aggregates and persists the combined treasury balance
func (s *Server) handleOldTreasuryData(w http.ResponseWriter, r *http.Request) {
	invalid := func() {
		msg := "Invalid network"
		respondJSON(w, http.StatusBadRequest, service.CombinedBalances{Error: &msg})
	}

	var req oldTreasuryDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalid()
		return
	}
	network, ok := req.Network.(string)
	if !ok {
		invalid()
		return
	}

	result := s.treasuryService.GetCombinedBalances(r.Context(), network)
	if result.Error != nil {
		respondJSON(w, http.StatusInternalServerError, result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
