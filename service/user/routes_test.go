package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/cmd/utils"
	"github.com/KAsare1/Gigstage-server/db/dbtest"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, func(actor uint, method, path, body string) *httptest.ResponseRecorder) {
	t.Helper()
	conn := dbtest.Open(t)
	dbtest.MustCreate(t, conn,
		&models.User{Model: gorm.Model{ID: 1}, FullName: "Ama Organizer", Email: "ama@example.com", Role: models.RoleOrganizer},
		&models.User{Model: gorm.Model{ID: 2}, FullName: "Kofi Mensah", Email: "kofi@example.com", Role: models.RoleTalent},
		&models.User{Model: gorm.Model{ID: 3}, FullName: "Esi Owusu", Email: "esi@example.com", Role: models.RoleTalent},
		&models.TalentProfile{UserID: 2, StageName: "DJ Kofi", AverageRating: 4.5, TotalReviews: 2},
		&models.TalentProfile{UserID: 3, StageName: "Esi Sings", AverageRating: 3, TotalReviews: 1},
	)
	router := mux.NewRouter()
	NewHandler(conn, zap.NewNop()).RegisterRoutes(router)

	return conn, func(actor uint, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req = req.WithContext(utils.WithUserID(req.Context(), actor))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}
}

func TestGetTalents(t *testing.T) {
	_, do := setup(t)

	tests := []struct {
		query string
		want  []uint
	}{
		{"", []uint{2, 3}},
		{"?q=sings", []uint{3}},
		{"?q=MENSAH", []uint{2}},
		{"?min_rating=4", []uint{2}},
	}
	for _, tt := range tests {
		rec := do(1, http.MethodGet, "/talents"+tt.query, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /talents%s = %d", tt.query, rec.Code)
		}
		var body struct {
			Data []models.TalentProfile `json:"data"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body.Data) != len(tt.want) {
			t.Errorf("GET /talents%s returned %d talents, want %d", tt.query, len(body.Data), len(tt.want))
			continue
		}
		for i, id := range tt.want {
			if body.Data[i].UserID != id {
				t.Errorf("GET /talents%s [%d] = user %d, want %d", tt.query, i, body.Data[i].UserID, id)
			}
		}
	}

	if rec := do(1, http.MethodGet, "/talents?min_rating=9", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad min_rating = %d, want 400", rec.Code)
	}
}

func TestGetTalentHidesOrganizers(t *testing.T) {
	_, do := setup(t)
	if rec := do(2, http.MethodGet, "/talents/1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("organizer as talent = %d, want 404", rec.Code)
	}
	if rec := do(1, http.MethodGet, "/talents/2", ""); rec.Code != http.StatusOK {
		t.Errorf("talent = %d, want 200", rec.Code)
	}
}

func TestUpdateTalentProfileKeepsRating(t *testing.T) {
	conn, do := setup(t)

	if rec := do(1, http.MethodPut, "/talents/me/profile", `{"stage_name":"Ama"}`); rec.Code != http.StatusForbidden {
		t.Errorf("organizer update = %d, want 403", rec.Code)
	}
	if rec := do(2, http.MethodPut, "/talents/me/profile", `{"stage_name":"Kofi Live","bio":"Highlife"}`); rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body)
	}

	var p models.TalentProfile
	conn.Where("user_id = ?", 2).First(&p)
	if p.StageName != "Kofi Live" || p.Bio != "Highlife" || p.AverageRating != 4.5 || p.TotalReviews != 2 {
		t.Errorf("profile = %+v", p)
	}
}

func TestUpdateMe(t *testing.T) {
	_, do := setup(t)

	rec := do(1, http.MethodPut, "/users/me", `{"phone":" 0240000000 "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body)
	}
	var u models.User
	json.Unmarshal(rec.Body.Bytes(), &u)
	if u.Phone != "0240000000" || u.FullName != "Ama Organizer" {
		t.Errorf("user = %+v", u)
	}
	if rec := do(1, http.MethodPut, "/users/me", `{"full_name":"  "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", rec.Code)
	}
}
