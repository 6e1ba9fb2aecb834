package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wata-nana/Hiraizumi-app/pkg/db"
	"github.com/wata-nana/Hiraizumi-app/pkg/models"
)

// createTestPins inserts pins directly and returns their ids.
func createTestPins(t *testing.T, database *db.DB, user *models.User, n int) []uint {
	t.Helper()

	repo := db.NewRepository(database)
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		pin := &models.Pin{
			Lat:         38.90 + float64(i)*0.01,
			Lng:         141.00 + float64(i)*0.01,
			Title:       fmt.Sprintf("ピン%d", i+1),
			Category:    1 + i%12,
			Description: fmt.Sprintf("経路上の地点%d", i+1),
			UserID:      user.ID,
		}
		if err := repo.CreatePin(pin); err != nil {
			t.Fatalf("CreatePin: %v", err)
		}
		ids = append(ids, pin.ID)
	}

	return ids
}

func postRoute(t *testing.T, srv *Server, auth string, fields map[string]string, imageName string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fields, imageName)
	req := httptest.NewRequest(http.MethodPost, "/api/routes", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", auth)

	return performRequest(srv, req)
}

func routePinsField(t *testing.T, ids []uint) string {
	t.Helper()

	refs := make([]map[string]interface{}, 0, len(ids))
	for i, id := range ids {
		refs = append(refs, map[string]interface{}{"pin_id": id, "order": i})
	}

	encoded, err := json.Marshal(refs)
	if err != nil {
		t.Fatalf("marshal route_pins: %v", err)
	}

	return string(encoded)
}

func TestCreateRouteAndReadPinsInOrder(t *testing.T) {
	srv, database := newTestServer(t)
	user := createTestUser(t, database, "route-order")
	auth := bearerToken(t, srv, user)

	ids := createTestPins(t, database, user, 4)

	// Submit the pins in reverse to prove the stored order wins over
	// insertion order.
	reversed := []uint{ids[3], ids[2], ids[1], ids[0]}

	fields := map[string]string{
		"name":        "奥の細道",
		"description": "平泉を巡る旅路",
		"route_pins":  routePinsField(t, reversed),
	}

	w := postRoute(t, srv, auth, fields, "cover.jpg")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", w.Code, w.Body.String())
	}

	var created struct {
		Success bool `json:"success"`
		Data    struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	decodeJSON(t, w.Body, &created)
	if !created.Success || created.Data.ID == 0 {
		t.Fatalf("create response = %+v", created)
	}

	var rowCount int64
	if err := database.Model(&models.RoutePin{}).Where("route_id = ?", created.Data.ID).Count(&rowCount).Error; err != nil {
		t.Fatalf("count route pins: %v", err)
	}
	if rowCount != 4 {
		t.Fatalf("route pin rows = %d, want 4", rowCount)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/routes/%d/pins", created.Data.ID), nil)
	w = performRequest(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("route pins status = %d", w.Code)
	}

	var pins []struct {
		ID          uint    `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Lat         float64 `json:"lat"`
		Lng         float64 `json:"lng"`
		Order       int     `json:"order"`
	}
	decodeJSON(t, w.Body, &pins)

	if len(pins) != 4 {
		t.Fatalf("pins = %d, want 4", len(pins))
	}

	for i, p := range pins {
		if p.Order != i {
			t.Errorf("position %d has order %d", i, p.Order)
		}
		if p.ID != reversed[i] {
			t.Errorf("position %d has pin id %d, want %d (submitted order)", i, p.ID, reversed[i])
		}
		if p.Title == "" || p.Description == "" {
			t.Errorf("position %d missing title/description", i)
		}
	}
}

func TestCreateRouteMissingFields(t *testing.T) {
	srv, database := newTestServer(t)
	user := createTestUser(t, database, "route-missing")
	auth := bearerToken(t, srv, user)

	ids := createTestPins(t, database, user, 1)

	base := func() map[string]string {
		return map[string]string{
			"name":        "毛越寺コース",
			"description": "庭園を歩く",
			"route_pins":  routePinsField(t, ids),
		}
	}

	t.Run("missing name", func(t *testing.T) {
		fields := base()
		delete(fields, "name")
		if w := postRoute(t, srv, auth, fields, "cover.jpg"); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("missing description", func(t *testing.T) {
		fields := base()
		delete(fields, "description")
		if w := postRoute(t, srv, auth, fields, "cover.jpg"); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("missing route_pins", func(t *testing.T) {
		fields := base()
		delete(fields, "route_pins")
		if w := postRoute(t, srv, auth, fields, "cover.jpg"); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("missing image", func(t *testing.T) {
		if w := postRoute(t, srv, auth, base(), ""); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCreateRouteUnknownPinRollsBack(t *testing.T) {
	srv, database := newTestServer(t)
	user := createTestUser(t, database, "route-rollback")
	auth := bearerToken(t, srv, user)

	ids := createTestPins(t, database, user, 1)

	fields := map[string]string{
		"name":        "存在しないピンの旅路",
		"description": "失敗するはず",
		"route_pins":  routePinsField(t, []uint{ids[0], 99999}),
	}

	w := postRoute(t, srv, auth, fields, "cover.jpg")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var routeCount, routePinCount int64
	if err := database.Model(&models.Route{}).Count(&routeCount).Error; err != nil {
		t.Fatalf("count routes: %v", err)
	}
	if err := database.Model(&models.RoutePin{}).Count(&routePinCount).Error; err != nil {
		t.Fatalf("count route pins: %v", err)
	}

	if routeCount != 0 || routePinCount != 0 {
		t.Fatalf("rows after failed create: routes %d, route pins %d; want none", routeCount, routePinCount)
	}
}

func TestCreateRouteAcceptsAnyCoverExtension(t *testing.T) {
	srv, database := newTestServer(t)
	user := createTestUser(t, database, "route-cover")
	auth := bearerToken(t, srv, user)

	ids := createTestPins(t, database, user, 1)

	// Unlike pin images, the cover is stored without an extension
	// filter.
	fields := map[string]string{
		"name":        "表紙テスト",
		"description": "拡張子は問わない",
		"route_pins":  routePinsField(t, ids),
	}

	w := postRoute(t, srv, auth, fields, "cover.webp")
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestListRoutesOrderedByName(t *testing.T) {
	srv, database := newTestServer(t)
	user := createTestUser(t, database, "route-list")
	auth := bearerToken(t, srv, user)

	ids := createTestPins(t, database, user, 1)

	for _, name := range []string{"b-course", "a-course", "c-course"} {
		fields := map[string]string{
			"name":        name,
			"description": "listing",
			"route_pins":  routePinsField(t, ids),
		}
		if w := postRoute(t, srv, auth, fields, "cover.jpg"); w.Code != http.StatusCreated {
			t.Fatalf("create %s status = %d", name, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
	w := performRequest(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}

	var routes []struct {
		ID       uint   `json:"id"`
		Name     string `json:"name"`
		ImageURL string `json:"image_url"`
	}
	decodeJSON(t, w.Body, &routes)

	if len(routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(routes))
	}

	want := []string{"a-course", "b-course", "c-course"}
	for i, r := range routes {
		if r.Name != want[i] {
			t.Errorf("position %d name = %q, want %q", i, r.Name, want[i])
		}
		if r.ImageURL == "" {
			t.Errorf("route %q missing image_url", r.Name)
		}
	}
}

func TestRoutePinsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/routes/9999/pins", "/api/routes/not-a-number/pins"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := performRequest(srv, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want %d", path, w.Code, http.StatusNotFound)
		}
	}
}
