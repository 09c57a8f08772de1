package review

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReviewHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewReviewHandler(service *Service, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{service: service, logger: logger}
}

func (h *ReviewHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bookings/{id:[0-9]+}/reviews", h.GetBookingReviews).Methods("GET")
	router.HandleFunc("/talents/{talentId:[0-9]+}/reviews", h.GetTalentReviews).Methods("GET")
	router.HandleFunc("/internal/bookings/{id:[0-9]+}/reviews/reevaluate", h.Reevaluate).Methods("POST")
}

func (h *ReviewHandler) GetBookingReviews(w http.ResponseWriter, r *http.Request) {
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	bookingID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("id", "must be a positive integer"))
		return
	}

	reviews, err := h.service.ListForBooking(r.Context(), actorID, uint(bookingID))
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

func (h *ReviewHandler) GetTalentReviews(w http.ResponseWriter, r *http.Request) {
	talentID, err := strconv.ParseUint(mux.Vars(r)["talentId"], 10, 64)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("talentId", "must be a positive integer"))
		return
	}
	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	reviews, total, err := h.service.ListForTalent(r.Context(), uint(talentID), page, perPage)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       reviews,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

// Reevaluate lets an external scheduler fire a booking's visibility timer.
// Admin only.
func (h *ReviewHandler) Reevaluate(w http.ResponseWriter, r *http.Request) {
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var actor models.User
	err = h.service.db.WithContext(r.Context()).First(&actor, actorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && actor.Role != models.RoleAdmin) {
		utils.RespondWithAppError(w, h.logger, apperr.ErrForbidden)
		return
	}
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	bookingID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("id", "must be a positive integer"))
		return
	}
	v, err := h.service.Reevaluate(r.Context(), uint(bookingID))
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if v.Visible {
		if err := h.service.timer.Complete(r.Context(), v.BookingID, h.service.now()); err != nil {
			h.logger.Warn("complete visibility job", zap.Uint("booking_id", v.BookingID), zap.Error(err))
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, v)
}
