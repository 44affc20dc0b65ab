package server

import (
	"errors"
	"net/http"
	"strings"

	"feedchain/internal/storage"
	"feedchain/pkg/types"

	"github.com/sirupsen/logrus"
)

const proofFormField = "image"

type verifyRequest struct {
	OTP string `json:"otp"`
}

type proofRequest struct {
	ProofImage string `json:"proof_image"`
}

type proofResponse struct {
	ClaimID    string `json:"claim_id"`
	ProofImage string `json:"proof_image"`
}

// ownClaim loads the claim named in the path and checks it belongs to the
// caller. It writes the error response itself and reports false on failure.
func (s *Service) ownClaim(w http.ResponseWriter, r *http.Request) (*types.Claim, bool) {
	claim, err := s.engine.Claim(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}

	if claim.NGOID != s.actor(r).UserID {
		s.writeError(w, r, types.Forbiddenf("not your claim"))
		return nil, false
	}

	return claim, true
}

func (s *Service) handleMyClaims(w http.ResponseWriter, r *http.Request) {
	claims, err := s.engine.NGOClaims(r.Context(), s.actor(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, claims)
}

func (s *Service) handleCancelClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := s.ownClaim(w, r)
	if !ok {
		return
	}

	cancelled, err := s.engine.CancelClaim(r.Context(), s.actor(r), claim.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, cancelled)
}

func (s *Service) handleStartPickup(w http.ResponseWriter, r *http.Request) {
	claim, ok := s.ownClaim(w, r)
	if !ok {
		return
	}

	code, err := s.engine.StartPickup(r.Context(), s.actor(r), claim.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, code)
}

func (s *Service) handleVerifyPickup(w http.ResponseWriter, r *http.Request) {
	claim, ok := s.ownClaim(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	picked, err := s.engine.VerifyPickup(r.Context(), s.actor(r), claim.ID, req.OTP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, picked)
}

// handleUploadProof stores a proof image for a picked claim. The returned key
// goes into the proof_image field of the distribution form.
func (s *Service) handleUploadProof(w http.ResponseWriter, r *http.Request) {
	if s.proofs == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Detail: "proof uploads are not configured"})
		return
	}

	claim, ok := s.ownClaim(w, r)
	if !ok {
		return
	}

	if claim.Status != types.ClaimStatusPicked {
		s.writeError(w, r, types.Conflictf("claim not in picked state"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.ProofMaxBytes+(64<<10))
	if err := r.ParseMultipartForm(s.config.ProofMaxBytes); err != nil {
		s.writeError(w, r, types.Validationf("proof image must be a multipart upload of at most %d bytes", s.config.ProofMaxBytes))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(proofFormField)
	if err != nil {
		s.writeError(w, r, types.Validationf("missing %q file field", proofFormField))
		return
	}
	defer file.Close()

	if header.Size > s.config.ProofMaxBytes {
		s.writeError(w, r, types.Validationf("proof image must be at most %d bytes", s.config.ProofMaxBytes))
		return
	}

	key, err := s.proofs.UploadProof(r.Context(), claim.ID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			s.writeError(w, r, types.Validationf("%s", err))
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"claim_id":    claim.ID,
		"proof_image": key,
	}).Info("proof image uploaded")

	s.writeJSON(w, http.StatusCreated, proofResponse{ClaimID: claim.ID, ProofImage: key})
}

// handleDeleteProof discards an uploaded proof image of a picked claim, for
// when the wrong picture went up.
func (s *Service) handleDeleteProof(w http.ResponseWriter, r *http.Request) {
	if s.proofs == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Detail: "proof uploads are not configured"})
		return
	}

	claim, ok := s.ownClaim(w, r)
	if !ok {
		return
	}

	if claim.Status != types.ClaimStatusPicked {
		s.writeError(w, r, types.Conflictf("claim not in picked state"))
		return
	}

	var req proofRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if !storage.IsProofOf(claim.ID, req.ProofImage) {
		s.writeError(w, r, types.Validationf("proof_image must be an image uploaded for this claim"))
		return
	}

	if err := s.proofs.DeleteProof(r.Context(), req.ProofImage); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"claim_id":    claim.ID,
		"proof_image": req.ProofImage,
	}).Info("proof image deleted")

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDistribute(w http.ResponseWriter, r *http.Request) {
	claim, ok := s.ownClaim(w, r)
	if !ok {
		return
	}

	var form types.DistributionForm
	if err := decodeJSON(w, r, &form); err != nil {
		s.writeError(w, r, err)
		return
	}

	// With proof storage in place only this claim's own uploads can be attached.
	if s.proofs != nil && form.ProofImage != nil && strings.TrimSpace(*form.ProofImage) != "" &&
		!storage.IsProofOf(claim.ID, *form.ProofImage) {
		s.writeError(w, r, types.Validationf("proof_image must be an image uploaded for this claim"))
		return
	}

	distributed, err := s.engine.Distribute(r.Context(), s.actor(r), claim.ID, form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, distributed)
}
