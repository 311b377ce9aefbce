package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/auth"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"go.uber.org/zap"
)

// ProfileLookup loads employee profiles
type ProfileLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	ListActive(ctx context.Context) ([]domain.Profile, error)
}

type AuthHandler struct {
	profiles ProfileLookup
	logger   *zap.Logger
}

func NewAuthHandler(profiles ProfileLookup, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{profiles: profiles, logger: logger}
}

// Me godoc
// @Summary Get current actor
// @Description Returns the actor resolved from the API key or bearer token, with the stored profile when one exists
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.AuthActorDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	dto := domain.AuthActorDTO{
		ProfileID: actor.ProfileID,
		Name:      actor.DisplayName,
		Email:     actor.Email,
		Roles:     actor.RolesAsStrings(),
		Source:    actor.Source,
	}
	profile, err := h.profiles.GetByID(r.Context(), actor.ProfileID)
	if err != nil {
		h.logger.Debug("no stored profile for actor", zap.String("profileID", actor.ProfileID.String()), zap.Error(err))
	} else {
		p := mapper.ToProfileDTO(profile)
		dto.Profile = &p
		if dto.Name == "" {
			dto.Name = profile.FullName
		}
	}

	respondJSON(w, http.StatusOK, dto)
}

// ListProfiles godoc
// @Summary List team members
// @Description Active employee profiles, used to pick task assignees and object participants
// @Tags Auth
// @Produce json
// @Success 200 {array} domain.ProfileDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /profiles [get]
func (h *AuthHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	profiles, err := h.profiles.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list profiles", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}
	dtos := make([]domain.ProfileDTO, 0, len(profiles))
	for i := range profiles {
		dtos = append(dtos, mapper.ToProfileDTO(&profiles[i]))
	}
	respondJSON(w, http.StatusOK, dtos)
}
