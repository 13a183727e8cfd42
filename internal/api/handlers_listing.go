package api

import (
	"net/http"
)

// handleLatestActivity serves the cached or freshly fetched latest activity listing verbatim
func (s *Server) handleLatestActivity(w http.ResponseWriter, r *http.Request) {
	network := r.Header.Get(NetworkHeader)
	if network == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Missing network in request headers", nil)
		return
	}

	listing, err := s.listingService.Load(r.Context(), network)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if listing.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	status := http.StatusOK
	if listing.Error != "" {
		status = http.StatusInternalServerError
	}
	respondRaw(w, status, listing.Payload)
}

// handleInvalidateLatestActivity drops the cached listing of the header network
func (s *Server) handleInvalidateLatestActivity(w http.ResponseWriter, r *http.Request) {
	network := r.Header.Get(NetworkHeader)
	if network == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Missing network in request headers", nil)
		return
	}

	if err := s.listingService.Invalidate(r.Context(), network); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
