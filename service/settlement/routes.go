package settlement

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionFilter represents all possible filters for transactions
type TransactionFilter struct {
	UserID    uint
	BookingID uint
	Type      string
	Status    string
	MinAmount float64
	MaxAmount float64
	StartDate time.Time
	EndDate   time.Time
}

type TransactionHandler struct {
	db      *gorm.DB
	service *Service
	logger  *zap.Logger
}

func NewTransactionHandler(db *gorm.DB, service *Service, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{db: db, service: service, logger: logger}
}

func (h *TransactionHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/transactions", h.GetTransactions).Methods("GET")
	router.HandleFunc("/talents/{talentId:[0-9]+}/payouts", h.GetPayouts).Methods("GET")
	router.HandleFunc("/bookings/{id:[0-9]+}/payout", h.RetryPayout).Methods("POST")
}

func parseFilter(r *http.Request) (TransactionFilter, error) {
	var filter TransactionFilter
	q := r.URL.Query()
	v := &apperr.ValidationError{}

	if s := q.Get("user_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			v.Add("user_id", "must be a positive integer")
		}
		filter.UserID = uint(id)
	}
	if s := q.Get("booking_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			v.Add("booking_id", "must be a positive integer")
		}
		filter.BookingID = uint(id)
	}
	filter.Type = q.Get("type")
	filter.Status = q.Get("status")

	var err error
	if s := q.Get("min_amount"); s != "" {
		if filter.MinAmount, err = strconv.ParseFloat(s, 64); err != nil {
			v.Add("min_amount", "must be a number")
		}
	}
	if s := q.Get("max_amount"); s != "" {
		if filter.MaxAmount, err = strconv.ParseFloat(s, 64); err != nil {
			v.Add("max_amount", "must be a number")
		}
	}

	layout := "2006-01-02"
	if s := q.Get("start_date"); s != "" {
		if filter.StartDate, err = time.Parse(layout, s); err != nil {
			v.Add("start_date", "use YYYY-MM-DD")
		}
	}
	if s := q.Get("end_date"); s != "" {
		if filter.EndDate, err = time.Parse(layout, s); err != nil {
			v.Add("end_date", "use YYYY-MM-DD")
		}
	}
	return filter, v.Err()
}

// ListTransactions returns one page of ledger entries matching filter.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter, page, perPage int) ([]models.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{})

	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.BookingID != 0 {
		query = query.Where("booking_id = ?", filter.BookingID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.MinAmount != 0 {
		query = query.Where("amount >= ?", filter.MinAmount)
	}
	if filter.MaxAmount != 0 {
		query = query.Where("amount <= ?", filter.MaxAmount)
	}
	if !filter.StartDate.IsZero() {
		query = query.Where("created_at >= ?", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		// include the whole end day
		query = query.Where("created_at < ?", filter.EndDate.Add(24*time.Hour))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var transactions []models.Transaction
	err := query.Order("created_at DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&transactions).Error
	return transactions, total, err
}

func (s *Service) ListPayouts(ctx context.Context, talentID uint, page, perPage int) ([]models.Payout, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Payout{}).Where("talent_id = ?", talentID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payouts []models.Payout
	err := query.Preload("Transaction").Order("created_at DESC").Limit(perPage).Offset((page - 1) * perPage).Find(&payouts).Error
	return payouts, total, err
}

// GetTransactions lists ledger entries. Admins may filter by any user;
// everyone else only sees their own entries.
func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	if actor.Role != models.RoleAdmin {
		filter.UserID = actor.ID
	}
	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	transactions, total, err := h.service.ListTransactions(r.Context(), filter, page, perPage)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       transactions,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

func (h *TransactionHandler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	talentID, err := strconv.ParseUint(mux.Vars(r)["talentId"], 10, 64)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, apperr.Invalid("talentId", "must be a positive integer"))
		return
	}
	if actor.Role != models.RoleAdmin && actor.ID != uint(talentID) {
		utils.RespondWithAppError(w, h.logger, apperr.ErrForbidden)
		return
	}
	page, perPage, err := utils.ParsePaginationParams(r)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}

	payouts, total, err := h.service.ListPayouts(r.Context(), uint(talentID), page, perPage)
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.PaginatedResponse{
		Data:       payouts,
		Pagination: utils.NewPaginationMeta(page, perPage, total),
	})
}

func (h *TransactionHandler) RetryPayout(w http.ResponseWriter, r *http.Request) {
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

	txn, err := h.service.RetryPayout(r.Context(), actorID, uint(bookingID))
	if err != nil {
		utils.RespondWithAppError(w, h.logger, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"transaction": txn})
}

func (h *TransactionHandler) actor(r *http.Request) (*models.User, error) {
	actorID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		return nil, apperr.ErrForbidden
	}
	var user models.User
	err = h.db.WithContext(r.Context()).First(&user, actorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
