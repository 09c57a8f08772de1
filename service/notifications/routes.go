package notifications

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationHandler serves device registration, notification history
// and the live websocket feed.
type NotificationHandler struct {
	db     *gorm.DB
	hub    *Hub
	logger *zap.Logger
}

func NewNotificationHandler(db *gorm.DB, hub *Hub, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{db: db, hub: hub, logger: logger}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", h.RegisterDevice).Methods("POST")
	router.HandleFunc("/devices", h.GetDevices).Methods("GET")
	router.HandleFunc("/devices/{id:[0-9]+}", h.DeleteDevice).Methods("DELETE")
	router.HandleFunc("/notifications", h.GetNotificationHistory).Methods("GET")
	router.HandleFunc("/ws", h.HandleWebSocket)
}

type deviceRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
	DeviceName string `json:"device_name"`
}

// RegisterDevice stores a push token for the caller. Registering the same
// token again refreshes its metadata.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req deviceRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if req.Token == "" {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("token", "is required"))
		return
	}
	if _, err := expo.NewExponentPushToken(req.Token); err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("token", "invalid Expo push token format"))
		return
	}

	var device models.Device
	err = h.db.WithContext(r.Context()).Where("token = ? AND user_id = ?", req.Token, userID).First(&device).Error
	switch {
	case err == nil:
		device.DeviceType = req.DeviceType
		device.DeviceName = req.DeviceName
		device.UpdatedAt = time.Now()
		if err := h.db.WithContext(r.Context()).Save(&device).Error; err != nil {
			utils.RespondWithAppError(w, h.logger, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, device)
	case errors.Is(err, gorm.ErrRecordNotFound):
		device = models.Device{
			Token:      req.Token,
			UserID:     userID,
			DeviceType: req.DeviceType,
			DeviceName: req.DeviceName,
		}
		if err := h.db.WithContext(r.Context()).Create(&device).Error; err != nil {
			utils.RespondWithAppError(w, h.logger, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusCreated, device)
	default:
		utils.RespondWithAppError(w, h.logger, err)
	}
}

func (h *NotificationHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var devices []models.Device
	if err := h.db.WithContext(r.Context()).Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"devices": devices})
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("id", "must be a positive integer"))
		return
	}

	result := h.db.WithContext(r.Context()).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Device{})
	if result.Error != nil {
		utils.RespondWithAppError(w, h.logger, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithAppError(w, h.logger, apperr.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) GetNotificationHistory(w http.ResponseWriter, r *http.Request) {
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

	query := h.db.WithContext(r.Context()).Model(&models.NotificationHistory{}).Where("user_id = ?", userID)
	if bookingID := r.URL.Query().Get("booking_id"); bookingID != "" {
		query = query.Where("booking_id = ?", bookingID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var history []models.NotificationHistory
	if err := query.Order("sent_at desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&history).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       history,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

func (h *NotificationHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := h.hub.Serve(w, r, userID); err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	h.logger.Debug("websocket connected", zap.Uint("user_id", userID))
}
