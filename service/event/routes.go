// Package event lets organizers manage the events they book talent for.
package event

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EventHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewEventHandler(db *gorm.DB, logger *zap.Logger) *EventHandler {
	return &EventHandler{db: db, logger: logger}
}

func (h *EventHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/events", h.CreateEvent).Methods("POST")
	router.HandleFunc("/events", h.GetEvents).Methods("GET")
	router.HandleFunc("/events/{id:[0-9]+}", h.GetEvent).Methods("GET")
	router.HandleFunc("/events/{id:[0-9]+}", h.UpdateEvent).Methods("PUT")
}

type eventRequest struct {
	Title           string    `json:"title"`
	Venue           string    `json:"venue"`
	EventDate       time.Time `json:"event_date"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (req eventRequest) validate() error {
	v := &apperr.ValidationError{}
	if strings.TrimSpace(req.Title) == "" {
		v.Add("title", "is required")
	}
	if req.EventDate.IsZero() {
		v.Add("event_date", "is required")
	}
	if req.DurationMinutes < 0 {
		v.Add("duration_minutes", "must not be negative")
	}
	return v.Err()
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var organizer models.User
	if err := h.db.WithContext(r.Context()).First(&organizer, userID).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, notFound(err))
		return
	}
	if organizer.Role != models.RoleOrganizer {
		utils.RespondWithAppError(w, h.logger, apperr.ErrForbidden)
		return
	}

	var req eventRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	event := models.Event{
		OrganizerID:     userID,
		Title:           strings.TrimSpace(req.Title),
		Venue:           req.Venue,
		EventDate:       req.EventDate,
		DurationMinutes: req.DurationMinutes,
	}
	if err := h.db.WithContext(r.Context()).Create(&event).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, event)
}

// GetEvents lists the caller's events, soonest first. upcoming=true hides
// events that have already started.
func (h *EventHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
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

	query := h.db.WithContext(r.Context()).Model(&models.Event{}).Where("organizer_id = ?", userID)
	if upcoming, _ := strconv.ParseBool(r.URL.Query().Get("upcoming")); upcoming {
		query = query.Where("event_date >= ?", time.Now())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var events []models.Event
	if err := query.Order("event_date").Offset((page - 1) * perPage).Limit(perPage).Find(&events).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       events,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

// GetEvent is visible to the organizer and to any talent booked for it.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	if event.OrganizerID != userID {
		var booked int64
		err := h.db.WithContext(r.Context()).Model(&models.Booking{}).
			Where("event_id = ? AND talent_id = ?", event.ID, userID).
			Count(&booked).Error
		if err != nil {
			utils.RespondWithAppError(w, h.logger, err)
			return
		}
		if booked == 0 {
			utils.RespondWithAppError(w, h.logger, apperr.ErrNotFound)
			return
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, event)
}

// UpdateEvent edits an event while none of its bookings has completed.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	if event.OrganizerID != userID {
		utils.RespondWithAppError(w, h.logger, apperr.ErrNotFound)
		return
	}

	var req eventRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var completed int64
	err := h.db.WithContext(r.Context()).Model(&models.Booking{}).
		Where("event_id = ? AND status = ?", event.ID, models.BookingCompleted).
		Count(&completed).Error
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if completed > 0 {
		utils.RespondWithAppError(w, h.logger, apperr.Precondition("event_settled", "events with completed bookings cannot be changed"))
		return
	}

	event.Title = strings.TrimSpace(req.Title)
	event.Venue = req.Venue
	event.EventDate = req.EventDate
	event.DurationMinutes = req.DurationMinutes
	if err := h.db.WithContext(r.Context()).Save(event).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, event)
}

func (h *EventHandler) loadEvent(w http.ResponseWriter, r *http.Request) (uint, *models.Event, bool) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, nil, false
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("id", "must be a positive integer"))
		return 0, nil, false
	}

	var event models.Event
	if err := h.db.WithContext(r.Context()).First(&event, id).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, notFound(err))
		return 0, nil, false
	}
	return userID, &event, true
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return err
}
