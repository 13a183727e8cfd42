package api

import (
	"net/http"
	"strconv"

	apperrors "github.com/treasury-tracker/internal/errors"
	"github.com/treasury-tracker/internal/service"
)

// handleListBounties serves one page of the bounty dashboard for the header network
func (s *Server) handleListBounties(w http.ResponseWriter, r *http.Request) {
	network := r.Header.Get(NetworkHeader)
	if network == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Missing network in request headers", nil)
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondServiceError(w, apperrors.NewInvalidParameterError("page", "must be a positive integer"))
			return
		}
		page = n
	}

	listing, err := s.bountyService.ListBounties(r.Context(), network, page)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !listing.Found {
		respondJSON(w, http.StatusOK, map[string]string{"message": service.MsgNoBounties})
		return
	}

	respondJSON(w, http.StatusOK, listing)
}
