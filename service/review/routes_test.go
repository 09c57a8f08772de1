package review

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/db/dbtest"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestReevaluateRouteIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	const adminID uint = 9
	dbtest.MustCreate(t, f.conn, &models.User{Model: gorm.Model{ID: adminID}, FullName: "Ops", Email: "ops@example.com", Role: models.RoleAdmin})
	done := completedAt
	b := f.booking(t, models.BookingCompleted, &done)
	f.clock = completedAt.Add(VisibilityDelay + time.Minute)

	router := mux.NewRouter()
	NewReviewHandler(f.svc, zap.NewNop()).RegisterRoutes(router)
	post := func(actor uint) int {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/internal/bookings/%d/reviews/reevaluate", b.ID), nil)
		req = req.WithContext(utils.WithUserID(req.Context(), actor))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	for _, actor := range []uint{organizerID, talentID, 404} {
		if code := post(actor); code != http.StatusForbidden {
			t.Errorf("actor %d: status = %d, want 403", actor, code)
		}
	}
	if code := post(adminID); code != http.StatusOK {
		t.Fatalf("admin: status = %d, want 200", code)
	}
}
