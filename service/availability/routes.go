package availability

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	storage "github.com/KAsare1/Gigstage-server/db"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultGenerationWindow applies when a recurring entry arrives without
// generate_until.
const defaultGenerationWindow = 90 * 24 * time.Hour

type AvailabilityHandler struct {
	db     *gorm.DB
	engine *Engine
	logger *zap.Logger
}

func NewAvailabilityHandler(db *gorm.DB, engine *Engine, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{db: db, engine: engine, logger: logger}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/talents/{talentId:[0-9]+}/availability/check", h.CheckAvailability).Methods("GET")
	router.HandleFunc("/talents/{talentId:[0-9]+}/availability", h.CreateAvailability).Methods("POST")
	router.HandleFunc("/talents/{talentId:[0-9]+}/availability", h.GetAvailabilities).Methods("GET")
	router.HandleFunc("/talents/{talentId:[0-9]+}/availability/{id:[0-9]+}", h.GetAvailability).Methods("GET")
	router.HandleFunc("/talents/{talentId:[0-9]+}/availability/{id:[0-9]+}", h.UpdateAvailability).Methods("PUT")
	router.HandleFunc("/talents/{talentId:[0-9]+}/availability/{id:[0-9]+}", h.DeleteAvailability).Methods("DELETE")
	router.HandleFunc("/talents/{talentId:[0-9]+}/availability/{id:[0-9]+}/generate", h.GenerateRecurring).Methods("POST")
}

type entryRequest struct {
	StartDate        time.Time                 `json:"start_date"`
	EndDate          time.Time                 `json:"end_date"`
	Status           models.AvailabilityStatus `json:"status"`
	IsRecurring      bool                      `json:"is_recurring"`
	RecurringPattern string                    `json:"recurring_pattern"`
	RecurringDays    []int                     `json:"recurring_days"`
	Notes            string                    `json:"notes"`
	GenerateUntil    *time.Time                `json:"generate_until"`
}

func (req entryRequest) validate() error {
	v := &apperr.ValidationError{}
	if req.StartDate.IsZero() {
		v.Add("start_date", "is required")
	}
	if req.EndDate.IsZero() {
		v.Add("end_date", "is required")
	}
	if !req.IsRecurring && !req.StartDate.IsZero() && req.EndDate.Before(req.StartDate) {
		v.Add("end_date", "must not be before start_date")
	}
	if !req.Status.Valid() {
		v.Add("status", "must be AVAILABLE, UNAVAILABLE or BUSY")
	}
	if req.IsRecurring && len(req.RecurringDays) == 0 {
		v.Add("recurring_days", "required for recurring entries")
	}
	return v.Err()
}

func (h *AvailabilityHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	talentID, err := pathID(r, "talentId")
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("start", "must be an RFC3339 timestamp"))
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("end", "must be an RFC3339 timestamp"))
		return
	}

	result, err := h.engine.CheckAvailability(r.Context(), talentID, start, end)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *AvailabilityHandler) CreateAvailability(w http.ResponseWriter, r *http.Request) {
	talentID, err := h.ownTalentID(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var req entryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	entry := models.AvailabilityEntry{
		TalentID:         talentID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Status:           req.Status,
		IsRecurring:      req.IsRecurring,
		RecurringPattern: req.RecurringPattern,
		RecurringDays:    datatypes.JSONSlice[int](req.RecurringDays),
		Notes:            req.Notes,
	}
	if !entry.EndDate.After(entry.StartDate) && entry.IsRecurring {
		entry.EndDate = entry.EndDate.AddDate(0, 0, 1)
	}
	if err := h.db.WithContext(r.Context()).Create(&entry).Error; err != nil {
		if storage.IsDuplicateKey(err) {
			err = fmt.Errorf("%w: an identical availability entry already exists", apperr.ErrConflict)
		}
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	response := map[string]interface{}{"availability": entry}
	if entry.IsRecurring {
		until := entry.StartDate.Add(defaultGenerationWindow)
		if req.GenerateUntil != nil {
			until = *req.GenerateUntil
		}
		gen, err := h.engine.GenerateRecurringAvailability(r.Context(), talentID, entry, until)
		if err != nil {
			utils.RespondWithAppError(w, h.logger, err)
			return
		}
		response["generation"] = gen
	}

	utils.RespondWithJSON(w, http.StatusCreated, response)
}

func (h *AvailabilityHandler) GetAvailabilities(w http.ResponseWriter, r *http.Request) {
	talentID, err := pathID(r, "talentId")
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.AvailabilityEntry{}).Where("talent_id = ?", talentID)

	if from := r.URL.Query().Get("start_date"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			utils.RespondWithAppError(w, h.logger, apperr.Invalid("start_date", "use YYYY-MM-DD"))
			return
		}
		query = query.Where("end_date >= ?", t)
	}
	if to := r.URL.Query().Get("end_date"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			utils.RespondWithAppError(w, h.logger, apperr.Invalid("end_date", "use YYYY-MM-DD"))
			return
		}
		query = query.Where("start_date < ?", t.AddDate(0, 0, 1))
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var entries []models.AvailabilityEntry
	if err := query.Order("start_date").Offset((page - 1) * perPage).Limit(perPage).Find(&entries).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       entries,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	entry, err := h.findEntry(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *AvailabilityHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ownTalentID(r); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	entry, err := h.findEntry(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var req entryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	entry.StartDate = req.StartDate
	entry.EndDate = req.EndDate
	entry.Status = req.Status
	entry.IsRecurring = req.IsRecurring
	entry.RecurringPattern = req.RecurringPattern
	entry.RecurringDays = datatypes.JSONSlice[int](req.RecurringDays)
	entry.Notes = req.Notes

	if err := h.db.WithContext(r.Context()).Save(entry).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entry)
}

// DeleteAvailability removes the row outright so the slot can be
// generated again later.
func (h *AvailabilityHandler) DeleteAvailability(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ownTalentID(r); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	entry, err := h.findEntry(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Unscoped().Delete(entry).Error; err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) GenerateRecurring(w http.ResponseWriter, r *http.Request) {
	talentID, err := h.ownTalentID(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	entry, err := h.findEntry(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	var req struct {
		GenerateUntil time.Time `json:"generate_until"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if req.GenerateUntil.IsZero() {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("generate_until", "is required"))
		return
	}

	gen, err := h.engine.GenerateRecurringAvailability(r.Context(), talentID, *entry, req.GenerateUntil)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, gen)
}

func (h *AvailabilityHandler) findEntry(r *http.Request) (*models.AvailabilityEntry, error) {
	talentID, err := pathID(r, "talentId")
	if err != nil {
		return nil, err
	}
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var entry models.AvailabilityEntry
	err = h.db.WithContext(r.Context()).Where("id = ? AND talent_id = ?", id, talentID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ownTalentID returns the talent in the path when it is the caller.
func (h *AvailabilityHandler) ownTalentID(r *http.Request) (uint, error) {
	talentID, err := pathID(r, "talentId")
	if err != nil {
		return 0, err
	}
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		return 0, apperr.ErrForbidden
	}
	if actorID != talentID {
		return 0, apperr.ErrForbidden
	}
	return talentID, nil
}

func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(name, "must be a positive integer")
	}
	return uint(id), nil
}
