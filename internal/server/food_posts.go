package server

import (
	"net/http"

	"feedchain/pkg/types"
)

func (s *Service) handleCreateFoodPost(w http.ResponseWriter, r *http.Request) {
	var in types.NewFoodPost
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	post, err := s.engine.CreatePost(r.Context(), s.actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Service) handleMyFoodPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.engine.DonorPosts(r.Context(), s.actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Service) handleNearbyFoodPosts(w http.ResponseWriter, r *http.Request) {
	var q types.NearbyQuery
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		s.writeError(w, r, types.Validationf("lat and lng must be numbers"))
		return
	}

	posts, err := s.engine.AvailablePosts(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Service) handleGetFoodPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.engine.Post(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, post)
}

func (s *Service) handleFoodPostEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.engine.Events(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleClaimFoodPost(w http.ResponseWriter, r *http.Request) {
	claim, err := s.engine.ClaimPost(r.Context(), s.actor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, claim)
}
