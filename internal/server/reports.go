package server

import "net/http"

func (s *Service) handleListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.engine.ListForRole(r.Context(), s.actor(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, listing)
}

func (s *Service) handleImpactSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.SummarizeImpact(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Service) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.engine.Overview(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, overview)
}
