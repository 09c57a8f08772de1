package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/KAsare1/Gigstage-server/service/interval"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxRecurringDays bounds a single recurring generation run.
const MaxRecurringDays = 1000

var blockingStatuses = []models.AvailabilityStatus{models.AvailabilityUnavailable, models.AvailabilityBusy}

// Result describes whether a talent is free for a window and, if not, why.
type Result struct {
	IsAvailable           bool                       `json:"is_available"`
	ConflictingEntries    []models.AvailabilityEntry `json:"conflicting_entries"`
	HasBookingConflict    bool                       `json:"has_booking_conflict"`
	ConflictingBookingIDs []uint                     `json:"conflicting_booking_ids,omitempty"`
	Message               string                     `json:"message"`
}

// Generation reports how many concrete entries a recurring run produced.
type Generation struct {
	Considered int `json:"considered"`
	Created    int `json:"created"`
}

type Engine struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewEngine(db *gorm.DB, logger *zap.Logger) *Engine {
	return &Engine{db: db, logger: logger}
}

// WithDB returns a copy of the engine bound to tx, so checks can run
// inside a caller's transaction.
func (e *Engine) WithDB(tx *gorm.DB) *Engine {
	c := *e
	c.db = tx
	return &c
}

// OccupiedWindow is the calendar span a booking blocks: from the accepted
// date (or the proposed date) to the event end, open-ended when unknown.
func OccupiedWindow(b models.Booking) interval.Range {
	r := interval.Range{Start: b.ProposedDate}
	if b.AcceptedDate != nil {
		r.Start = *b.AcceptedDate
	}
	if b.EventEndDateTime != nil {
		r.End = *b.EventEndDateTime
	}
	return r
}

// CheckAvailability lists every blocking entry and active booking of the
// talent that overlaps [start, end]. It does not stop at the first hit.
// Recurring templates are skipped; only their generated rows count.
func (e *Engine) CheckAvailability(ctx context.Context, talentID uint, start, end time.Time) (*Result, error) {
	v := &apperr.ValidationError{}
	if talentID == 0 {
		v.Add("talent_id", "is required")
	}
	if start.IsZero() {
		v.Add("start", "is required")
	}
	if end.IsZero() {
		v.Add("end", "is required")
	} else if end.Before(start) {
		v.Add("end", "must not be before start")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	window := interval.Range{Start: start, End: end}

	var candidates []models.AvailabilityEntry
	err := e.db.WithContext(ctx).
		Where("talent_id = ? AND is_recurring = ? AND status IN ? AND start_date <= ? AND end_date >= ?", talentID, false, blockingStatuses, end, start).
		Order("start_date").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("query availability entries: %w", err)
	}

	result := &Result{ConflictingEntries: []models.AvailabilityEntry{}}
	for _, entry := range candidates {
		if interval.Overlaps(interval.Range{Start: entry.StartDate, End: entry.EndDate}, window) {
			result.ConflictingEntries = append(result.ConflictingEntries, entry)
		}
	}

	var bookings []models.Booking
	err = e.db.WithContext(ctx).
		Where("talent_id = ? AND status IN ? AND COALESCE(accepted_date, proposed_date) <= ?", talentID, models.ActiveBookingStatuses, end).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("query active bookings: %w", err)
	}
	for _, b := range bookings {
		if interval.Overlaps(OccupiedWindow(b), window) {
			result.ConflictingBookingIDs = append(result.ConflictingBookingIDs, b.ID)
		}
	}
	result.HasBookingConflict = len(result.ConflictingBookingIDs) > 0

	result.IsAvailable = len(result.ConflictingEntries) == 0 && !result.HasBookingConflict
	result.Message = describe(result)
	return result, nil
}

func describe(r *Result) string {
	if r.IsAvailable {
		return "Talent is available for the requested period"
	}
	var parts []string
	if n := len(r.ConflictingEntries); n > 0 {
		parts = append(parts, fmt.Sprintf("talent is unavailable during %d period(s) in the requested window", n))
	}
	if r.HasBookingConflict {
		parts = append(parts, "talent already has a booking in the requested window")
	}
	msg := strings.Join(parts, "; ")
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// GenerateRecurringAvailability materialises base on every listed weekday
// from base.StartDate through until, at most MaxRecurringDays days. No
// occurrence starts after until. Each
// occurrence keeps base's times of day; an end at or before the start
// rolls to the next day. Slots that already exist are skipped, so runs
// can be repeated.
func (e *Engine) GenerateRecurringAvailability(ctx context.Context, talentID uint, base models.AvailabilityEntry, until time.Time) (*Generation, error) {
	gen := &Generation{}
	if len(base.RecurringDays) == 0 {
		return gen, nil
	}

	v := &apperr.ValidationError{}
	if talentID == 0 {
		v.Add("talent_id", "is required")
	}
	if base.StartDate.IsZero() || base.EndDate.IsZero() {
		v.Add("start_date", "base entry needs start and end dates")
	}
	if !base.Status.Valid() {
		v.Add("status", "must be AVAILABLE, UNAVAILABLE or BUSY")
	}
	weekdays := make(map[time.Weekday]bool, len(base.RecurringDays))
	for _, d := range base.RecurringDays {
		if d < 0 || d > 6 {
			v.Add("recurring_days", "days must be between 0 (Sunday) and 6 (Saturday)")
			break
		}
		weekdays[time.Weekday(d)] = true
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	loc := base.StartDate.Location()
	day := time.Date(base.StartDate.Year(), base.StartDate.Month(), base.StartDate.Day(), 0, 0, 0, 0, loc)
	endClock := base.EndDate.In(loc)

	var parentID *uint
	if base.ID != 0 {
		id := base.ID
		parentID = &id
	}

	var entries []models.AvailabilityEntry
	for i := 0; i < MaxRecurringDays && !day.After(until); i, day = i+1, day.AddDate(0, 0, 1) {
		if !weekdays[day.Weekday()] {
			continue
		}
		start := combine(day, base.StartDate)
		if start.After(until) {
			break
		}
		end := combine(day, endClock)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		entries = append(entries, models.AvailabilityEntry{
			TalentID:      talentID,
			StartDate:     start,
			EndDate:       end,
			Status:        base.Status,
			Notes:         base.Notes,
			ParentEntryID: parentID,
		})
	}
	gen.Considered = len(entries)
	if len(entries) == 0 {
		return gen, nil
	}

	res := e.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&entries, 100)
	if res.Error != nil {
		return nil, fmt.Errorf("insert recurring entries: %w", res.Error)
	}
	gen.Created = int(res.RowsAffected)

	e.logger.Info("recurring availability generated",
		zap.Uint("talent_id", talentID),
		zap.Int("considered", gen.Considered),
		zap.Int("created", gen.Created),
	)
	return gen, nil
}

// combine takes the date from day and the time of day from clock.
func combine(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), day.Location())
}
