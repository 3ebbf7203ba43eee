package httpapi

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/matching"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type importRequest struct {
	Records []rawRecordDTO `json:"records"`
}

type rawRecordDTO struct {
	ExternalID   string  `json:"externalId"`
	BusinessName string  `json:"businessName"`
	Address      string  `json:"address"`
	Phone        string  `json:"phone"`
	Website      string  `json:"website"`
	City         string  `json:"city"`
	Country      string  `json:"country"`
	CountryCode  string  `json:"countryCode"`
	Rating       float64 `json:"rating"`
	ReviewCount  int     `json:"reviewCount"`
}

type importResponse struct {
	Created int              `json:"created"`
	Merged  int              `json:"merged"`
	Errors  []importErrorDTO `json:"errors,omitempty"`
}

type importErrorDTO struct {
	ExternalID string `json:"externalId"`
	Error      string `json:"error"`
}

type registerProfileRequest struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Address     string `json:"address"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
}

type locationDTO struct {
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode,omitempty"`
	Address     string `json:"address,omitempty"`
}

type contactDTO struct {
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Website       string `json:"website,omitempty"`
	ContactPerson string `json:"contactPerson,omitempty"`
}

type profileResponse struct {
	ID               string        `json:"id"`
	DisplayName      string        `json:"displayName"`
	Description      string        `json:"description,omitempty"`
	Headquarters     locationDTO   `json:"headquarters"`
	ServiceLocations []locationDTO `json:"serviceLocations"`
	Contact          *contactDTO   `json:"contact,omitempty"`
	ClaimStatus      string        `json:"claimStatus"`
	Premium          bool          `json:"premium"`
	Rating           float64       `json:"rating"`
	ReviewCount      int           `json:"reviewCount"`
}

type startClaimRequest struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

type startClaimResponse struct {
	ChallengeID      string `json:"challengeId"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

type verifyClaimRequest struct {
	Code string `json:"code"`
}

type verifyClaimResponse struct {
	ProfileID       string `json:"profileId"`
	ClaimStatus     string `json:"claimStatus"`
	LocationsLinked int    `json:"locationsLinked"`
}

type submitLeadRequest struct {
	CompanyName  string `json:"companyName"`
	ContactEmail string `json:"contactEmail"`
	City         string `json:"city"`
	Country      string `json:"country"`
	StandSize    string `json:"standSize"`
	Budget       int    `json:"budget"`
}

type routeResponse struct {
	LeadID   string `json:"leadId"`
	Matched  int    `json:"matched"`
	Notified int    `json:"notified"`
}

type leadResponse struct {
	ID           string `json:"id"`
	CompanyName  string `json:"companyName"`
	ContactEmail string `json:"contactEmail,omitempty"`
	City         string `json:"city"`
	Country      string `json:"country"`
	StandSize    string `json:"standSize"`
	Budget       int    `json:"budget"`
	Status       string `json:"status"`
	Matched      int    `json:"matched"`
}

type leadActionRequest struct {
	ProfileID string `json:"profileId"`
	Action    string `json:"action"`
}

type leadActionResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImportBatch(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}
	if len(req.Records) == 0 {
		s.writeError(w, r, badRequest("records must not be empty"))
		return
	}

	recs := make([]matching.RawRecord, 0, len(req.Records))
	for _, d := range req.Records {
		recs = append(recs, matching.RawRecord{
			ExternalID:   d.ExternalID,
			BusinessName: d.BusinessName,
			Address:      d.Address,
			Phone:        d.Phone,
			Website:      d.Website,
			City:         d.City,
			Country:      d.Country,
			CountryCode:  d.CountryCode,
			Rating:       d.Rating,
			ReviewCount:  d.ReviewCount,
		})
	}

	report := s.resolver.ResolveBatch(r.Context(), recs)
	resp := importResponse{Created: report.Created, Merged: report.Merged}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, importErrorDTO{ExternalID: e.ExternalID, Error: e.Err.Error()})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterProfile(w http.ResponseWriter, r *http.Request) {
	var req registerProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}

	p := &domain.Profile{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Headquarters: domain.Location{
			City:        req.City,
			Country:     req.Country,
			CountryCode: req.CountryCode,
			Address:     req.Address,
		},
		Contact: domain.Contact{
			Email:   req.Email,
			Phone:   req.Phone,
			Website: req.Website,
		},
	}
	if err := s.resolver.Register(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.profileToResponse(p))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, badRequest("invalid profile id"))
		return
	}
	p, err := s.profiles.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p == nil {
		s.writeError(w, r, notFound("profile not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.profileToResponse(p))
}

func (s *Server) handleStartClaim(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, badRequest("invalid profile id"))
		return
	}
	var req startClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}

	challenge, err := s.claims.StartClaim(r.Context(), id, domain.ClaimChannel(req.Channel), req.Destination)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, startClaimResponse{
		ChallengeID:      challenge.ID.String(),
		ExpiresInSeconds: int(challenge.ExpiresAt.Sub(challenge.CreatedAt).Seconds()),
	})
}

func (s *Server) handleVerifyClaim(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, badRequest("invalid challenge id"))
		return
	}
	var req verifyClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}

	result, err := s.claims.VerifyClaim(r.Context(), id, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verifyClaimResponse{
		ProfileID:       result.ProfileID.String(),
		ClaimStatus:     string(result.ClaimStatus),
		LocationsLinked: result.LocationsLinked,
	})
}

func (s *Server) handleSubmitLead(w http.ResponseWriter, r *http.Request) {
	var req submitLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}

	lead := &domain.Lead{
		CompanyName:  req.CompanyName,
		ContactEmail: req.ContactEmail,
		City:         req.City,
		Country:      req.Country,
		StandSize:    req.StandSize,
		Budget:       req.Budget,
	}
	result, err := s.router.SubmitLead(r.Context(), lead)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, routeResponse{
		LeadID:   result.LeadID,
		Matched:  len(result.Matched),
		Notified: len(result.Notified),
	})
}

// handleGetLead returns the lead. The requester's contact email stays
// hidden unless the asking profile has unlocked the lead.
func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := s.leadStore.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if lead == nil {
		s.writeError(w, r, notFound("lead not found"))
		return
	}

	resp := leadResponse{
		ID:          lead.ID,
		CompanyName: lead.CompanyName,
		City:        lead.City,
		Country:     lead.Country,
		StandSize:   lead.StandSize,
		Budget:      lead.Budget,
		Status:      string(lead.Status),
		Matched:     len(lead.MatchedProfileIDs),
	}
	if pid := r.URL.Query().Get("profileId"); pid != "" {
		if profileID, err := uuid.Parse(pid); err == nil && lead.Unlocked(profileID) {
			resp.ContactEmail = lead.ContactEmail
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeadAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req leadActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}
	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		s.writeError(w, r, badRequest("invalid profile id"))
		return
	}

	status, err := s.router.ProfileAction(r.Context(), id, profileID, domain.LeadAction(req.Action))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, leadActionResponse{Status: string(status)})
}

// profileToResponse redacts contact details and street addresses on
// unclaimed profiles. City and country stay public; they drive matching.
func (s *Server) profileToResponse(p *domain.Profile) profileResponse {
	visible := p.ContactVisible()
	resp := profileResponse{
		ID:           p.ID.String(),
		DisplayName:  p.DisplayName,
		Description:  p.Description,
		Headquarters: locationToDTO(p.Headquarters, visible),
		ClaimStatus:  string(p.ClaimStatus),
		Premium:      p.Premium,
		Rating:       p.Rating,
		ReviewCount:  p.ReviewCount,
	}
	for _, loc := range p.ServiceLocations {
		resp.ServiceLocations = append(resp.ServiceLocations, locationToDTO(loc, visible))
	}
	if visible {
		resp.Contact = &contactDTO{
			Email:         p.Contact.Email,
			Phone:         p.Contact.Phone,
			Website:       p.Contact.Website,
			ContactPerson: p.Contact.ContactPerson,
		}
	}
	return resp
}

func locationToDTO(loc domain.Location, withAddress bool) locationDTO {
	dto := locationDTO{
		City:        loc.City,
		Country:     loc.Country,
		CountryCode: loc.CountryCode,
	}
	if withAddress {
		dto.Address = loc.Address
	}
	return dto
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain sentinels onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		status = ae.status
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrChallengeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrClaimChannelMismatch),
		errors.Is(err, domain.ErrChallengeExpired),
		errors.Is(err, domain.ErrChallengeCodeMismatch):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		s.writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, msg: msg}
}

func notFound(msg string) error {
	return &apiError{status: http.StatusNotFound, msg: msg}
}
