package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"weathermap/internal/artifact"
	"weathermap/internal/auth"
	"weathermap/internal/catalog"
	"weathermap/internal/task"
)

const testBaseURL = "http://maps.example.com"

type stubRenderer struct {
	calls atomic.Int32
	fn    func(ctx context.Context, configPath, outputPath string) error
}

func (s *stubRenderer) Render(ctx context.Context, configPath, outputPath string) error {
	s.calls.Add(1)
	if s.fn != nil {
		return s.fn(ctx, configPath, outputPath)
	}
	return nil
}

type testEnv struct {
	router   *gin.Engine
	manager  *task.Manager
	renderer *stubRenderer
}

func testGroups() []catalog.Group {
	return []catalog.Group{
		{ID: 1, Name: "restricted", Installations: []catalog.Installation{
			{ID: 1, Hostname: "edge-gwA", IP: "10.0.0.1"},
			{ID: 2, Hostname: "edge-gw1", IP: "10.0.0.2"},
		}},
		{ID: 2, Name: "open", Installations: []catalog.Installation{
			{ID: 3, Hostname: "edge-gwA", IP: "10.0.0.3"},
			{ID: 4, Hostname: "edge-gwB", IP: "10.0.0.4"},
		}},
	}
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	renderer := &stubRenderer{}
	artifacts := artifact.NewStore(t.TempDir())
	manager := task.NewManager(task.Options{
		Artifacts:            artifacts,
		Renderer:             renderer,
		MaxConcurrentRenders: 2,
	})

	router := gin.New()
	NewAPI(Options{
		Auth:      auth.NewService("test-secret", time.Hour),
		Directory: catalog.NewDirectoryWith(testGroups()),
		Topology:  nil,
		Tasks:     manager,
		Artifacts: artifacts,
		BaseURL:   testBaseURL,
	}).RegisterRoutes(router)

	return &testEnv{router: router, manager: manager, renderer: renderer}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) token(t *testing.T, username, password string) string {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login %s: bad body %s", username, w.Body.String())
	}
	return resp.Token
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 230, G: 230, B: 230, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func createMapRequest(t *testing.T, token string, fields map[string]string, imageBytes []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if imageBytes != nil {
		part, err := writer.CreateFormFile("map_image", "background.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(imageBytes); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/create-map", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func validFields(groupID string) map[string]string {
	return map[string]string{
		"cacti_group_id": groupID,
		"map_name":       "office",
		"config_content": "BACKGROUND placeholder.png\nWIDTH 16\nHEIGHT 16\n",
	}
}

func (e *testEnv) pollStatus(t *testing.T, token, id string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/task-status/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := e.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("task-status %s: status %d body %s", id, w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("task-status %s: bad body %s", id, w.Body.String())
	}
	return resp
}

func (e *testEnv) waitTerminal(t *testing.T, token, id string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := e.pollStatus(t, token, id)
		if s := resp["status"]; s == string(task.StatusSuccess) || s == string(task.StatusFailure) {
			return resp
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for task %s", id)
	return nil
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := setupEnv(t)
	body := `{"username":"admin","password":"nope"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w := e.do(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCreateMapRequiresToken(t *testing.T) {
	e := setupEnv(t)
	req := createMapRequest(t, "", validFields("2"), testPNG(t))
	if w := e.do(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestCreateMapViewerForbidden(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "viewer", "password")

	req := createMapRequest(t, token, validFields("2"), testPNG(t))
	if w := e.do(req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", w.Code)
	}
	if got := e.renderer.calls.Load(); got != 0 {
		t.Fatalf("renderer ran %d times for a denied request", got)
	}
}

func TestCreateMapViewerDeniedBeforeGroupLookup(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "viewer", "password")

	// an unknown group must not turn the denial into a 404; read-only
	// accounts are rejected before the group is resolved
	req := createMapRequest(t, token, validFields("99"), testPNG(t))
	w := e.do(req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("viewer with unknown group: got %d, want 403 (body %s)", w.Code, w.Body.String())
	}
	if got := e.renderer.calls.Load(); got != 0 {
		t.Fatalf("renderer ran %d times for a denied request", got)
	}
}

func TestCreateMapUserBlockedByRestrictedHost(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "user", "password")

	// group 1 contains edge-gw1; the whole request is denied
	req := createMapRequest(t, token, validFields("1"), testPNG(t))
	w := e.do(req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body %s", w.Code, w.Body.String())
	}
	if got := e.renderer.calls.Load(); got != 0 {
		t.Fatalf("renderer ran %d times after a denied request", got)
	}
}

func TestCreateMapFanOutReachesSuccess(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "user", "password")

	req := createMapRequest(t, token, validFields("2"), testPNG(t))
	w := e.do(req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message string     `json:"message"`
		Tasks   []task.Ref `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %s", w.Body.String())
	}
	if len(resp.Tasks) != 2 || resp.Tasks[0].TaskID == resp.Tasks[1].TaskID {
		t.Fatalf("expected 2 distinct task ids, got %+v", resp.Tasks)
	}

	for _, ref := range resp.Tasks {
		got := e.waitTerminal(t, token, ref.TaskID)
		if got["status"] != string(task.StatusSuccess) {
			t.Fatalf("task %s: %v", ref.TaskID, got)
		}
		url, _ := got["message"].(string)
		if !strings.HasPrefix(url, testBaseURL+"/static/final_maps/office_") {
			t.Fatalf("message not resolved to artifact url: %q", url)
		}
		// repeated polls resolve to the same url
		if again := e.pollStatus(t, token, ref.TaskID); again["message"] != url {
			t.Fatalf("url not stable across polls: %v vs %v", again["message"], url)
		}
	}
}

func TestCreateMapSiblingFailureIsolated(t *testing.T) {
	e := setupEnv(t)
	var tripped atomic.Bool
	e.renderer.fn = func(context.Context, string, string) error {
		if tripped.CompareAndSwap(false, true) {
			return errors.New("renderer exploded")
		}
		return nil
	}
	token := e.token(t, "admin", "password")

	req := createMapRequest(t, token, validFields("2"), testPNG(t))
	w := e.do(req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var resp struct {
		Tasks []task.Ref `json:"tasks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)

	var succeeded, failed int
	for _, ref := range resp.Tasks {
		got := e.waitTerminal(t, token, ref.TaskID)
		switch got["status"] {
		case string(task.StatusSuccess):
			succeeded++
		case string(task.StatusFailure):
			failed++
			if msg, _ := got["message"].(string); msg == "" {
				t.Fatalf("failure without detail: %v", got)
			}
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Fatalf("expected one success and one failure, got %d/%d", succeeded, failed)
	}
}

func TestCreateMapValidation(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "admin", "password")

	cases := []struct {
		name   string
		fields map[string]string
		image  []byte
		want   int
	}{
		{"missing image", validFields("2"), nil, http.StatusBadRequest},
		{"missing map name", map[string]string{"cacti_group_id": "2", "config_content": "x"}, testPNG(t), http.StatusBadRequest},
		{"bad group id", validFields("abc"), testPNG(t), http.StatusBadRequest},
		{"path in map name", map[string]string{"cacti_group_id": "2", "map_name": "../evil", "config_content": "x"}, testPNG(t), http.StatusBadRequest},
		{"unknown group", validFields("99"), testPNG(t), http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := e.do(createMapRequest(t, token, c.fields, c.image))
			if w.Code != c.want {
				t.Fatalf("expected %d, got %d body %s", c.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestTaskStatusUnknownID(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "admin", "password")

	req := httptest.NewRequest(http.MethodGet, "/task-status/nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if w := e.do(req); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGroupsEndpoint(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "viewer", "password")

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := e.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Status string          `json:"status"`
		Data   []catalog.Group `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Status != "success" || len(resp.Data) != 2 {
		t.Fatalf("bad groups body: %s", w.Body.String())
	}
}

func TestConfigTemplateServed(t *testing.T) {
	e := setupEnv(t)
	token := e.token(t, "viewer", "password")

	req := httptest.NewRequest(http.MethodGet, "/config-template", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := e.do(req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "BACKGROUND ") {
		t.Fatalf("template not served: %d %s", w.Code, w.Body.String()[:min(80, w.Body.Len())])
	}
}

func TestAdminEndpointsGated(t *testing.T) {
	e := setupEnv(t)

	userToken := e.token(t, "user", "password")
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	if w := e.do(req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}

	adminToken := e.token(t, "admin", "password")
	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := e.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
	var users []auth.User
	if err := json.Unmarshal(w.Body.Bytes(), &users); err != nil || len(users) == 0 {
		t.Fatalf("bad users body: %s", w.Body.String())
	}
}
