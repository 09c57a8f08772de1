package user

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler serves the caller's account and the talent directory. Accounts
// are provisioned by the identity service; this API only reads and edits
// them.
type Handler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me", h.GetMe).Methods("GET")
	router.HandleFunc("/users/me", h.UpdateMe).Methods("PUT")
	router.HandleFunc("/talents", h.GetTalents).Methods("GET")
	router.HandleFunc("/talents/me/profile", h.UpdateTalentProfile).Methods("PUT")
	router.HandleFunc("/talents/{talentId:[0-9]+}", h.GetTalent).Methods("GET")
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.loadUser(r, userID)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateUserRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			utils.RespondWithAppError(w, h.logger, apperr.Invalid("full_name", "must not be empty"))
			return
		}
		updates["full_name"] = name
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			utils.RespondWithAppError(w, h.logger, err)
			return
		}
	}

	user, err := h.loadUser(r, userID)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

// GetTalents lists talents by rating. q matches the stage name or full
// name; min_rating filters on the aggregate.
func (h *Handler) GetTalents(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.TalentProfile{}).
		Joins("JOIN users ON users.id = talent_profiles.user_id AND users.deleted_at IS NULL").
		Where("users.role = ?", models.RoleTalent)

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(talent_profiles.stage_name) LIKE ? OR LOWER(users.full_name) LIKE ?", like, like)
	}
	if raw := r.URL.Query().Get("min_rating"); raw != "" {
		minRating, err := strconv.ParseFloat(raw, 64)
		if err != nil || minRating < 0 || minRating > 5 {
			utils.RespondWithAppError(w, h.logger, apperr.Invalid("min_rating", "must be a number between 0 and 5"))
			return
		}
		query = query.Where("talent_profiles.average_rating >= ?", minRating)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var profiles []models.TalentProfile
	err = query.Order("talent_profiles.average_rating desc, talent_profiles.total_reviews desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&profiles).Error
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       profiles,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

type talentView struct {
	ID       uint                  `json:"id"`
	FullName string                `json:"full_name"`
	Profile  *models.TalentProfile `json:"profile"`
}

func (h *Handler) GetTalent(w http.ResponseWriter, r *http.Request) {
	talentID, err := strconv.ParseUint(mux.Vars(r)["talentId"], 10, 64)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("talentId", "must be a positive integer"))
		return
	}

	user, err := h.loadUser(r, uint(talentID))
	if err == nil && user.Role != models.RoleTalent {
		err = apperr.ErrNotFound
	}
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, talentView{ID: user.ID, FullName: user.FullName, Profile: user.TalentProfile})
}

type profileRequest struct {
	StageName string `json:"stage_name"`
	Bio       string `json:"bio"`
}

// UpdateTalentProfile creates or edits the caller's profile. The rating
// columns are owned by review aggregation and never written here.
func (h *Handler) UpdateTalentProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.loadUser(r, userID)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if user.Role != models.RoleTalent {
		utils.RespondWithAppError(w, h.logger, apperr.ErrForbidden)
		return
	}

	var req profileRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.StageName) == "" {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("stage_name", "is required"))
		return
	}

	profile := models.TalentProfile{UserID: userID, StageName: strings.TrimSpace(req.StageName), Bio: req.Bio}
	err = h.db.WithContext(r.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stage_name", "bio", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var saved models.TalentProfile
	if err := h.db.WithContext(r.Context()).Where("user_id = ?", userID).First(&saved).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, saved)
}

func (h *Handler) loadUser(r *http.Request, id uint) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(r.Context()).Preload("TalentProfile").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
