package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.sup, zap.NewNop())
	r := gin.New()
	r.POST("/streams", h.Start)
	r.GET("/streams", h.List)
	r.GET("/streams/:id", h.Get)
	r.DELETE("/streams/:id", h.Stop)
	r.POST("/streams/:id/pause", h.Pause)
	r.POST("/streams/:id/resume", h.Resume)
	r.POST("/streams/:id/profile", h.ChangeProfile)
	r.GET("/streams/:id/playlist", h.GetPlaylist)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, env
}

const startBody = `{
	"owner_id": 10,
	"source": {"kind": "file", "path": "/media/show.mp4"},
	"destination": {"url": "rtmp://live.example.com/app", "key": "secretkey1234"},
	"tier": 720,
	"loop": true
}`

func TestHandler_start_and_get(t *testing.T) {
	f := newFixture(t, Options{})
	r := newTestRouter(f)

	w, env := doRequest(t, r, http.MethodPost, "/streams", startBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /streams = %d, body %s", w.Code, w.Body.String())
	}
	var view View
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Status != StatusRunning || view.Tier != 720 {
		t.Errorf("unexpected view: %+v", view)
	}
	if strings.Contains(string(env.Data), "secretkey1234") {
		t.Error("response leaks the stream key")
	}

	w, env = doRequest(t, r, http.MethodGet, "/streams/"+view.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /streams/:id = %d", w.Code)
	}
	var got View
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if got.ID != view.ID {
		t.Errorf("id mismatch: %s != %s", got.ID, view.ID)
	}
}

func TestHandler_start_rejects_bad_body(t *testing.T) {
	f := newFixture(t, Options{})
	r := newTestRouter(f)

	w, env := doRequest(t, r, http.MethodPost, "/streams", `{"source": {}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if env.Success {
		t.Error("success=true on a rejected request")
	}
}

func TestHandler_unknown_session_is_404(t *testing.T) {
	f := newFixture(t, Options{})
	r := newTestRouter(f)

	w, _ := doRequest(t, r, http.MethodGet, "/streams/"+uuid.NewString(), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	w, _ = doRequest(t, r, http.MethodGet, "/streams/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, want 400", w.Code)
	}
}

func TestHandler_stop(t *testing.T) {
	f := newFixture(t, Options{})
	r := newTestRouter(f)

	_, env := doRequest(t, r, http.MethodPost, "/streams", startBody)
	var view View
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}

	w, env := doRequest(t, r, http.MethodDelete, "/streams/"+view.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE = %d", w.Code)
	}
	if !strings.Contains(string(env.Data), `"stopped":true`) {
		t.Errorf("unexpected stop payload: %s", env.Data)
	}

	_, env = doRequest(t, r, http.MethodDelete, "/streams/"+view.ID.String(), "")
	if !strings.Contains(string(env.Data), `"stopped":false`) {
		t.Errorf("second stop payload: %s", env.Data)
	}
}

func TestHandler_owner_conflict_is_409(t *testing.T) {
	f := newFixture(t, Options{SingleSessionPerOwner: true})
	r := newTestRouter(f)

	if w, _ := doRequest(t, r, http.MethodPost, "/streams", startBody); w.Code != http.StatusCreated {
		t.Fatalf("first start = %d", w.Code)
	}
	w, _ := doRequest(t, r, http.MethodPost, "/streams", startBody)
	if w.Code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", w.Code)
	}
}

func TestHandler_pause_resume_cycle(t *testing.T) {
	f := newFixture(t, Options{})
	r := newTestRouter(f)

	_, env := doRequest(t, r, http.MethodPost, "/streams", startBody)
	var view View
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	id := view.ID.String()

	if w, _ := doRequest(t, r, http.MethodPost, "/streams/"+id+"/pause", ""); w.Code != http.StatusOK {
		t.Errorf("pause = %d", w.Code)
	}
	// Pausing twice is a state conflict, not a client error.
	if w, _ := doRequest(t, r, http.MethodPost, "/streams/"+id+"/pause", ""); w.Code != http.StatusConflict {
		t.Errorf("double pause = %d, want 409", w.Code)
	}
	if w, _ := doRequest(t, r, http.MethodPost, "/streams/"+id+"/resume", ""); w.Code != http.StatusOK {
		t.Errorf("resume = %d", w.Code)
	}
}

func TestHandler_profile_change(t *testing.T) {
	f := newFixture(t, Options{})
	r := newTestRouter(f)

	_, env := doRequest(t, r, http.MethodPost, "/streams", startBody)
	var view View
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}

	w, env := doRequest(t, r, http.MethodPost, "/streams/"+view.ID.String()+"/profile", `{"tier": 480}`)
	if w.Code != http.StatusOK {
		t.Fatalf("profile change = %d, body %s", w.Code, w.Body.String())
	}
	var got View
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if got.Tier != 480 || got.ID != view.ID {
		t.Errorf("unexpected view after profile change: %+v", got)
	}
}

func TestHandler_playlist_on_file_session(t *testing.T) {
	f := newFixture(t, Options{})
	r := newTestRouter(f)

	_, env := doRequest(t, r, http.MethodPost, "/streams", startBody)
	var view View
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}

	w, _ := doRequest(t, r, http.MethodGet, "/streams/"+view.ID.String()+"/playlist", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("playlist on file session = %d, want 400", w.Code)
	}
}
