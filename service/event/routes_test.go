package event

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/db/dbtest"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEventRoutes(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.MustCreate(t, conn,
		&models.User{Model: gorm.Model{ID: 1}, FullName: "Ama", Email: "ama@example.com", Role: models.RoleOrganizer},
		&models.User{Model: gorm.Model{ID: 2}, FullName: "Kofi", Email: "kofi@example.com", Role: models.RoleTalent},
		&models.User{Model: gorm.Model{ID: 3}, FullName: "Esi", Email: "esi@example.com", Role: models.RoleTalent},
	)
	router := mux.NewRouter()
	NewEventHandler(conn, zap.NewNop()).RegisterRoutes(router)

	do := func(actor uint, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(utils.WithUserID(req.Context(), actor))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	body := `{"title":"Summer Gala","venue":"Accra","event_date":"2025-08-10T18:00:00Z","duration_minutes":180}`
	if rec := do(2, http.MethodPost, "/events", body); rec.Code != http.StatusForbidden {
		t.Errorf("talent create = %d, want 403", rec.Code)
	}
	if rec := do(1, http.MethodPost, "/events", `{"venue":"Accra"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing title = %d, want 400", rec.Code)
	}

	rec := do(1, http.MethodPost, "/events", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	var created models.Event
	json.Unmarshal(rec.Body.Bytes(), &created)
	if !created.EndsAt().Equal(time.Date(2025, time.August, 10, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("ends at %v", created.EndsAt())
	}

	path := fmt.Sprintf("/events/%d", created.ID)
	dbtest.MustCreate(t, conn, &models.Booking{
		OrganizerID: 1, TalentID: 2, EventID: created.ID, Amount: 100, Currency: "GHS",
		ProposedDate: created.EventDate, Status: models.BookingPending,
	})
	if rec := do(2, http.MethodGet, path, ""); rec.Code != http.StatusOK {
		t.Errorf("booked talent get = %d, want 200", rec.Code)
	}
	if rec := do(3, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unrelated talent get = %d, want 404", rec.Code)
	}

	conn.Model(&models.Booking{}).Where("event_id = ?", created.ID).Update("status", models.BookingCompleted)
	if rec := do(1, http.MethodPut, path, body); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("update settled event = %d, want 422", rec.Code)
	}
}
