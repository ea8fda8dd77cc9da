package briefings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jimdaga/briefdesk/internal/auth"
	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/editor"
	"github.com/jimdaga/briefdesk/internal/labels"
	"github.com/jimdaga/briefdesk/internal/store"
	"github.com/jimdaga/briefdesk/internal/streams"
	"github.com/jimdaga/briefdesk/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	err error
}

func (g *fakeGenerator) GenerateBriefing(ctx context.Context, conversation, userID string) (*briefing.Document, error) {
	if g.err != nil {
		return nil, g.err
	}
	if strings.TrimSpace(conversation) == "" {
		return nil, briefing.ValidationError("generate", "conversation is empty")
	}
	return &briefing.Document{
		Objective:      conversation,
		TargetAudience: "Small business owners",
		References:     []string{"Current logo"},
		Deadlines:      briefing.Deadlines{Delivery: "March"},
		Budget:         briefing.Budget{Total: 1200, PerStage: 400},
	}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []streams.BriefingEvent
}

func (s *recordingSink) PublishEvent(ctx context.Context, ev streams.BriefingEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return fmt.Sprintf("%d-0", len(s.events)), nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	router  *gin.Engine
	store   *store.Store
	ownerID uint
	sink    *recordingSink
	gen     *fakeGenerator
}

func newTestEnv(t *testing.T, ratePerMinute int) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "owner@example.com")
	st := store.New(db)
	gen := &fakeGenerator{}
	sink := &recordingSink{}
	set := labels.MustLookup("en")

	d := &Deps{
		Workspaces: NewWorkspaces(st, gen, set, ratePerMinute),
		Store:      st,
		Labels:     set,
		Events:     sink,
	}

	r := gin.New()
	r.SetHTMLTemplate(MustTemplates())
	rg := r.Group("/", func(c *gin.Context) {
		c.Set(auth.ContextOwnerID, user.ID)
		c.Next()
	})
	RegisterRoutes(rg, d)

	return &testEnv{router: r, store: st, ownerID: user.ID, sink: sink, gen: gen}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, htmx bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type editorResponse struct {
	State    string             `json:"state"`
	Document *briefing.Document `json:"document"`
	Title    string             `json:"title"`
	SavedID  string             `json:"saved_id"`
	Notice   *editor.Notice     `json:"notice"`
	Error    string             `json:"error"`
}

type listResponse struct {
	Items   []briefing.Briefing `json:"items"`
	Page    int                 `json:"page"`
	HasMore bool                `json:"has_more"`
	Total   int64               `json:"total"`
	Loaded  bool                `json:"loaded"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestGenerateSaveAndList(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "Client wants a logo redesign by March"}, false)
	if w.Code != http.StatusOK {
		t.Fatalf("generate: status %d body %s", w.Code, w.Body.String())
	}
	gen := decode[editorResponse](t, w)
	if gen.State != "editing" || gen.Document == nil {
		t.Fatalf("unexpected editor after generate: %+v", gen)
	}
	if gen.Title != "Client wants a logo redesign by March" {
		t.Errorf("title = %q", gen.Title)
	}
	if gen.Notice == nil || gen.Notice.Level != editor.NoticeSuccess {
		t.Errorf("expected success notice, got %+v", gen.Notice)
	}

	w = env.do(t, http.MethodPost, "/editor/save", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("save: status %d body %s", w.Code, w.Body.String())
	}
	saved := decode[editorResponse](t, w)
	if _, err := uuid.Parse(saved.SavedID); err != nil {
		t.Fatalf("saved id %q is not a UUID: %v", saved.SavedID, err)
	}

	w = env.do(t, http.MethodGet, "/briefings?refresh=1", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	list := decode[listResponse](t, w)
	if len(list.Items) != 1 || list.Items[0].ID != saved.SavedID {
		t.Fatalf("expected saved briefing first, got %+v", list.Items)
	}
	if list.Items[0].Document.Budget.Total != 1200 {
		t.Errorf("budget not persisted: %+v", list.Items[0].Document.Budget)
	}

	// A second save updates the same row.
	if w := env.do(t, http.MethodPatch, "/editor/fields", gin.H{"path": "budget.total", "value": "1500,50"}, false); w.Code != http.StatusOK {
		t.Fatalf("edit: status %d body %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/editor/save", nil, false)
	if again := decode[editorResponse](t, w); again.SavedID != saved.SavedID {
		t.Errorf("second save created %q, want update of %q", again.SavedID, saved.SavedID)
	}
	got, err := env.store.Get(context.Background(), env.ownerID, saved.SavedID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Document.Budget.Total != 1500.5 {
		t.Errorf("total = %v, want 1500.5", got.Document.Budget.Total)
	}

	want := []string{streams.EventCreated, streams.EventUpdated}
	if fmt.Sprint(env.sink.types()) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", env.sink.types(), want)
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		if _, err := env.store.Create(ctx, env.ownerID, fmt.Sprintf("B%d", i), briefing.Document{Objective: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	first := decode[listResponse](t, env.do(t, http.MethodGet, "/briefings", nil, false))
	if len(first.Items) != 6 || !first.HasMore || first.Total != 8 {
		t.Fatalf("unexpected first page: items=%d has_more=%v total=%d", len(first.Items), first.HasMore, first.Total)
	}

	more := decode[listResponse](t, env.do(t, http.MethodPost, "/briefings/more", nil, false))
	if len(more.Items) != 8 || more.HasMore || !more.Loaded {
		t.Fatalf("unexpected second page: items=%d has_more=%v loaded=%v", len(more.Items), more.HasMore, more.Loaded)
	}

	done := decode[listResponse](t, env.do(t, http.MethodPost, "/briefings/more", nil, false))
	if done.Loaded || len(done.Items) != 8 {
		t.Errorf("load more past the end: loaded=%v items=%d", done.Loaded, len(done.Items))
	}
}

func TestDetailAndDelete(t *testing.T) {
	env := newTestEnv(t, 0)
	b, err := env.store.Create(context.Background(), env.ownerID, "Logo", briefing.Document{Objective: "Redesign"})
	if err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/briefings/"+b.ID, nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("detail: status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Redesign") || !strings.Contains(w.Body.String(), "briefing-detail") {
		t.Errorf("detail fragment missing content: %s", w.Body.String())
	}

	w = env.do(t, http.MethodDelete, "/briefings/"+b.ID, nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status %d body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("HX-Redirect"); got != "/briefings" {
		t.Errorf("HX-Redirect = %q", got)
	}

	if w := env.do(t, http.MethodGet, "/briefings/"+b.ID, nil, false); w.Code != http.StatusNotFound {
		t.Errorf("detail after delete: status %d, want 404", w.Code)
	}
	if types := env.sink.types(); len(types) != 1 || types[0] != streams.EventDeleted {
		t.Errorf("events = %v", types)
	}
}

func TestOpenSavedBriefing(t *testing.T) {
	env := newTestEnv(t, 0)
	b, err := env.store.Create(context.Background(), env.ownerID, "Logo", briefing.Document{Objective: "Redesign"})
	if err != nil {
		t.Fatal(err)
	}

	open := decode[editorResponse](t, env.do(t, http.MethodPost, "/editor/open/"+b.ID, nil, false))
	if open.State != "editing" || open.SavedID != b.ID || open.Title != "Logo" {
		t.Fatalf("unexpected editor after open: %+v", open)
	}

	reset := decode[editorResponse](t, env.do(t, http.MethodPost, "/editor/reset", nil, false))
	if reset.State != "idle" || reset.Document != nil {
		t.Errorf("unexpected editor after reset: %+v", reset)
	}
}

func TestExportPDF(t *testing.T) {
	env := newTestEnv(t, 0)
	env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "Poster for the spring fair"}, false)

	w := env.do(t, http.MethodGet, "/editor/export", nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status %d body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="briefing.pdf"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestErrorStatuses(t *testing.T) {
	env := newTestEnv(t, 0)

	if w := env.do(t, http.MethodPost, "/editor/save", nil, false); w.Code != http.StatusConflict {
		t.Errorf("save while idle: status %d, want 409", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/editor/export", nil, false); w.Code != http.StatusConflict {
		t.Errorf("export while idle: status %d, want 409", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "   "}, false); w.Code != http.StatusBadRequest {
		t.Errorf("blank conversation: status %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/briefings/"+uuid.NewString(), nil, false); w.Code != http.StatusNotFound {
		t.Errorf("missing briefing: status %d, want 404", w.Code)
	}

	env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "Landing page"}, false)
	w := env.do(t, http.MethodPatch, "/editor/fields", gin.H{"path": "budget.total", "value": "abc"}, false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad amount: status %d, want 400", w.Code)
	}
	if resp := decode[editorResponse](t, w); resp.Error == "" || resp.Document.Budget.Total != 1200 {
		t.Errorf("bad amount changed the buffer or lost the error: %+v", resp)
	}
	if w := env.do(t, http.MethodDelete, "/editor/fields?path=notes[3]", nil, false); w.Code != http.StatusBadRequest {
		t.Errorf("remove out of range: status %d, want 400", w.Code)
	}

	env.gen.err = briefing.NetworkError("generate", errors.New("connection refused"))
	w = env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "Another one"}, false)
	if w.Code != http.StatusBadGateway {
		t.Errorf("network failure: status %d, want 502", w.Code)
	}
	if resp := decode[editorResponse](t, w); resp.Notice == nil || resp.Notice.Level != editor.NoticeError {
		t.Errorf("expected error notice, got %+v", resp.Notice)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	env := newTestEnv(t, 1)

	if w := env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "First"}, false); w.Code != http.StatusOK {
		t.Fatalf("first generate: status %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "Second"}, false); w.Code != http.StatusTooManyRequests {
		t.Errorf("second generate: status %d, want 429", w.Code)
	}
}

func TestGenerateAsync(t *testing.T) {
	env := newTestEnv(t, 0)
	if w := env.do(t, http.MethodPost, "/briefings/generate-async", gin.H{"conversation": "x"}, false); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without queue: status %d, want 503", w.Code)
	}

	var gotOwner uint
	var gotConversation string
	env2 := newTestEnv(t, 0)
	d := &Deps{
		Workspaces: NewWorkspaces(env2.store, env2.gen, labels.MustLookup("en"), 0),
		Store:      env2.store,
		Labels:     labels.MustLookup("en"),
		Enqueue: func(ctx context.Context, ownerID uint, conversation string) (string, error) {
			gotOwner, gotConversation = ownerID, conversation
			return "task-1", nil
		},
	}
	r := gin.New()
	r.POST("/briefings/generate-async", func(c *gin.Context) {
		c.Set(auth.ContextOwnerID, uint(9))
		c.Next()
	}, GenerateAsyncHandler(d))

	req := httptest.NewRequest(http.MethodPost, "/briefings/generate-async", strings.NewReader(`{"conversation":"Banner for launch"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if gotOwner != 9 || gotConversation != "Banner for launch" {
		t.Errorf("enqueued owner=%d conversation=%q", gotOwner, gotConversation)
	}
	if !strings.Contains(w.Body.String(), "task-1") {
		t.Errorf("response missing task id: %s", w.Body.String())
	}
}

func TestHTMXRendersFragments(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(t, http.MethodGet, "/briefings", nil, true)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), `id="briefing-list"`) {
		t.Errorf("list fragment missing: %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/editor/generate", gin.H{"conversation": "Menu <b>redesign</b>"}, true)
	body := w.Body.String()
	if !strings.Contains(body, `data-state="editing"`) {
		t.Errorf("editor fragment missing state: %s", body)
	}
	if strings.Contains(body, "<b>redesign</b>") {
		t.Error("conversation text was not escaped")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", editor.ErrInvalidTransition), http.StatusConflict},
		{briefing.ValidationError("op", "bad"), http.StatusBadRequest},
		{briefing.NotFoundError("op", "id"), http.StatusNotFound},
		{briefing.NetworkError("op", errors.New("down")), http.StatusBadGateway},
		{briefing.NetworkError("op", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, statusClientClosed},
		{briefing.DataStoreError("op", errors.New("db")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWorkspacesSweep(t *testing.T) {
	env := newTestEnv(t, 0)
	ws := NewWorkspaces(env.store, env.gen, nil, 0)
	ws.Get(1)
	ws.Get(2)
	if ws.Len() != 2 {
		t.Fatalf("Len = %d", ws.Len())
	}
	if n := ws.Sweep(-1); n != 2 || ws.Len() != 0 {
		t.Errorf("Sweep dropped %d, %d left", n, ws.Len())
	}
}

func TestHandlersRequireOwner(t *testing.T) {
	d := &Deps{Workspaces: NewWorkspaces(nil, nil, nil, 0), Labels: labels.MustLookup("en")}
	r := gin.New()
	r.GET("/editor", EditorHandler(d))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/editor", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", w.Code)
	}
	if d.Workspaces.Len() != 0 {
		t.Errorf("workspace created for an anonymous request")
	}
}
