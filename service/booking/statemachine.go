package booking

import (
	"sort"
	"strings"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/service/apperr"
)

type Action string

const (
	ActionAccept          Action = "accept"
	ActionDecline         Action = "decline"
	ActionRecordPayment   Action = "record_payment"
	ActionMarkComplete    Action = "mark_complete"
	ActionCompleteBooking Action = "complete_booking"
	ActionCancel          Action = "cancel"
	ActionSubmitReview    Action = "submit_review"
)

// Role is the part an actor plays in one booking.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleTalent    Role = "talent"
)

type rule struct {
	from map[Role][]models.BookingStatus
	// to is empty for actions that keep the current status.
	to models.BookingStatus
}

var (
	pending    = []models.BookingStatus{models.BookingPending}
	accepted   = []models.BookingStatus{models.BookingAccepted}
	inProgress = []models.BookingStatus{models.BookingInProgress}
	completion = []models.BookingStatus{models.BookingAccepted, models.BookingInProgress}
	open       = []models.BookingStatus{models.BookingPending, models.BookingAccepted, models.BookingInProgress}
)

var rules = map[Action]rule{
	ActionAccept:          {from: map[Role][]models.BookingStatus{RoleOrganizer: pending}, to: models.BookingAccepted},
	ActionDecline:         {from: map[Role][]models.BookingStatus{RoleOrganizer: pending}, to: models.BookingDeclined},
	ActionRecordPayment:   {from: map[Role][]models.BookingStatus{RoleOrganizer: accepted}, to: models.BookingInProgress},
	ActionMarkComplete:    {from: map[Role][]models.BookingStatus{RoleOrganizer: inProgress}, to: models.BookingCompleted},
	ActionCompleteBooking: {from: map[Role][]models.BookingStatus{RoleOrganizer: completion}, to: models.BookingCompleted},
	ActionCancel: {
		from: map[Role][]models.BookingStatus{RoleOrganizer: open, RoleTalent: open},
		to:   models.BookingCancelled,
	},
	ActionSubmitReview: {from: map[Role][]models.BookingStatus{
		RoleOrganizer: {models.BookingAccepted, models.BookingInProgress, models.BookingCompleted},
		RoleTalent:    {models.BookingCompleted},
	}},
}

// ParseAction accepts the action names used in URLs. make_payment is the
// older name of record_payment.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if a == "make_payment" {
		a = ActionRecordPayment
	}
	if _, ok := rules[a]; !ok {
		return "", apperr.Invalid("action", "unknown action "+s)
	}
	return a, nil
}

// Next returns the status a booking moves to when role performs action
// on it. Actions that keep the status return current.
func Next(current models.BookingStatus, action Action, role Role) (models.BookingStatus, error) {
	r, ok := rules[action]
	if !ok {
		return "", apperr.Invalid("action", "unknown action "+string(action))
	}
	allowed, ok := r.from[role]
	if !ok {
		return "", apperr.ErrForbidden
	}
	for _, s := range allowed {
		if s == current {
			if r.to == "" {
				return current, nil
			}
			return r.to, nil
		}
	}

	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return "", &apperr.InvalidTransitionError{
		Action:  string(action),
		Current: string(current),
		Allowed: names,
	}
}

// AllowedActions lists what role may do to a booking in status, sorted.
func AllowedActions(status models.BookingStatus, role Role) []Action {
	var out []Action
	for action := range rules {
		if _, err := Next(status, action, role); err == nil {
			out = append(out, action)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
