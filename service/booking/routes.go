package booking

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewBookingHandler(service *Service, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{service: service, logger: logger}
}

func (h *BookingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bookings", h.CreateBooking).Methods("POST")
	router.HandleFunc("/bookings", h.GetBookings).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}", h.GetBooking).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}/history", h.GetBookingHistory).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}/actions/{action}", h.PerformAction).Methods("POST")
	router.HandleFunc("/bookings/{id:[0-9]+}/reviews", h.SubmitReview).Methods("POST")
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in CreateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	b, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) GetBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	filter := ListFilter{
		Role:    Role(strings.ToLower(r.URL.Query().Get("role"))),
		Status:  models.BookingStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		Page:    page,
		PerPage: perPage,
	}
	bookings, total, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       bookings,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

// bookingView adds the actions the caller may take next.
type bookingView struct {
	*models.Booking
	AllowedActions []Action `json:"allowed_actions"`
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, bookingID, ok := h.actorAndBooking(w, r)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), userID, bookingID)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	role, _ := roleOf(b, userID)
	utils.RespondWithJSON(w, http.StatusOK, bookingView{Booking: b, AllowedActions: AllowedActions(b.Status, role)})
}

func (h *BookingHandler) GetBookingHistory(w http.ResponseWriter, r *http.Request) {
	userID, bookingID, ok := h.actorAndBooking(w, r)
	if !ok {
		return
	}

	events, err := h.service.History(r.Context(), userID, bookingID)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"history": events})
}

func (h *BookingHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	userID, bookingID, ok := h.actorAndBooking(w, r)
	if !ok {
		return
	}
	action, err := ParseAction(mux.Vars(r)["action"])
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var in ActionInput
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &in); err != nil {
			utils.RespondWithAppError(w, h.logger, err)
			return
		}
	}

	res, err := h.service.Dispatch(r.Context(), userID, bookingID, action, in)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *BookingHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	userID, bookingID, ok := h.actorAndBooking(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	res, err := h.service.SubmitReview(r.Context(), userID, bookingID, req.Rating, req.Comment)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, res)
}

func (h *BookingHandler) actorAndBooking(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, 0, false
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("id", "must be a positive integer"))
		return 0, 0, false
	}
	return userID, uint(id), true
}
