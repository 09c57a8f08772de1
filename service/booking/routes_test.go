package booking

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func serve(t *testing.T, f *fixture, actor uint, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := mux.NewRouter()
	NewBookingHandler(f.svc, zap.NewNop()).RegisterRoutes(router)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(utils.WithUserID(req.Context(), actor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBookingRoutes(t *testing.T) {
	f := newFixture(t)

	body := fmt.Sprintf(`{"talent_id":%d,"event_id":%d,"amount":250,"proposed_date":"2025-08-10T18:00:00Z"}`, talentID, f.event.ID)
	rec := serve(t, f, organizerID, http.MethodPost, "/bookings", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		ID          uint    `json:"ID"`
		PlatformFee float64 `json:"platform_fee"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	if created.PlatformFee != 25 {
		t.Errorf("platform fee = %v, want 25", created.PlatformFee)
	}

	accept := fmt.Sprintf("/bookings/%d/actions/accept", created.ID)
	if rec := serve(t, f, organizerID, http.MethodPost, accept, ""); rec.Code != http.StatusOK {
		t.Fatalf("accept = %d: %s", rec.Code, rec.Body)
	}

	rec = serve(t, f, organizerID, http.MethodPost, accept, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second accept = %d, want 409", rec.Code)
	}
	var errBody utils.ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &errBody)
	if errBody.Error != "invalid_transition" || !strings.Contains(errBody.Message, "PENDING") {
		t.Errorf("error body = %+v", errBody)
	}

	if rec := serve(t, f, organizerID, http.MethodPost, fmt.Sprintf("/bookings/%d/actions/teleport", created.ID), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action = %d, want 400", rec.Code)
	}
	if rec := serve(t, f, strangerID, http.MethodGet, fmt.Sprintf("/bookings/%d", created.ID), ""); rec.Code != http.StatusNotFound {
		t.Errorf("stranger get = %d, want 404", rec.Code)
	}

	rec = serve(t, f, talentID, http.MethodGet, fmt.Sprintf("/bookings/%d", created.ID), "")
	var view struct {
		AllowedActions []Action `json:"allowed_actions"`
	}
	json.Unmarshal(rec.Body.Bytes(), &view)
	if len(view.AllowedActions) != 1 || view.AllowedActions[0] != ActionCancel {
		t.Errorf("talent allowed actions = %v", view.AllowedActions)
	}

	rec = serve(t, f, organizerID, http.MethodPost, fmt.Sprintf("/bookings/%d/reviews", created.ID), `{"rating":5,"comment":"on time"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("review = %d: %s", rec.Code, rec.Body)
	}

	rec = serve(t, f, organizerID, http.MethodGet, fmt.Sprintf("/bookings/%d/history", created.ID), "")
	var history struct {
		History []json.RawMessage `json:"history"`
	}
	json.Unmarshal(rec.Body.Bytes(), &history)
	if len(history.History) != 2 {
		t.Errorf("history entries = %d, want 2", len(history.History))
	}
}
