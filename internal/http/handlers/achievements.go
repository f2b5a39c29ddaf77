package handlers

import (
	"net/http"

	"github.com/creatorhub/sessiond/internal/achievement"
	"github.com/creatorhub/sessiond/internal/middleware"
	"github.com/creatorhub/sessiond/internal/model"
)

// AchievementHandler serves badge evaluation
type AchievementHandler struct{}

func NewAchievementHandler() *AchievementHandler {
	return &AchievementHandler{}
}

// HandleCurrent handles GET /achievements for the logged-in user
func (h *AchievementHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	respondJSON(w, http.StatusOK, achievement.EvaluateReport(user))
}

// HandleEvaluate handles POST /achievements/evaluate for a posted user snapshot
func (h *AchievementHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var user model.User
	if err := decodeJSON(r, &user); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user snapshot")
		return
	}
	respondJSON(w, http.StatusOK, achievement.EvaluateReport(&user))
}

// HandleCatalog handles GET /achievements/catalog
func (h *AchievementHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, achievement.Catalog())
}
