package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jimdaga/briefdesk/internal/models"
	"github.com/jimdaga/briefdesk/internal/testutil"
	"github.com/markbates/goth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestUpsertUserCreatesThenUpdates(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	gu := goth.User{
		Provider:    "google",
		UserID:      "g-1",
		Email:       "ana@example.com",
		Name:        "Ana",
		AccessToken: "access-1",
	}

	first, err := UpsertUser(db, gu, now)
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if first.ID == 0 || first.Name != "Ana" {
		t.Fatalf("unexpected user %+v", first)
	}

	gu.Name = "Ana Maria"
	gu.AccessToken = "access-2"
	second, err := UpsertUser(db, gu, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same user, got %d and %d", first.ID, second.ID)
	}

	var identities []models.AuthIdentity
	db.Where("user_id = ?", first.ID).Find(&identities)
	if len(identities) != 1 || identities[0].AccessToken != "access-2" {
		t.Errorf("unexpected identities %+v", identities)
	}
}

func TestUpsertUserRequiresEmail(t *testing.T) {
	if _, err := UpsertUser(testutil.NewDB(t), goth.User{Provider: "google", UserID: "x"}, time.Now()); err == nil {
		t.Error("expected error for user without email")
	}
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.GET("/as/:name", func(c *gin.Context) {
		if err := Login(c, &models.User{Email: "a@example.com", Name: c.Param("name")}, ""); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	})
	r.GET("/as-owner", func(c *gin.Context) {
		u := &models.User{Email: "a@example.com", Name: "Ana"}
		u.ID = 42
		if err := Login(c, u, ""); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	})
	r.GET("/private", RequireAuth(), func(c *gin.Context) {
		id, ok := OwnerID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"owner_id": id})
	})
	return r
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Errorf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("HX-Request", "true")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || w.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("expected HX-Redirect, got %d %q", w.Code, w.Header().Get("HX-Redirect"))
	}
}

func TestRequireAuthSetsOwner(t *testing.T) {
	r := newRouter()

	login := httptest.NewRecorder()
	r.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/as-owner", nil))

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	for _, ck := range login.Result().Cookies() {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != `{"owner_id":42}` {
		t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestRequireAuthRejectsZeroOwner(t *testing.T) {
	r := newRouter()

	login := httptest.NewRecorder()
	r.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/as/nobody", nil))

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	for _, ck := range login.Result().Cookies() {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Errorf("expected redirect for zero owner id, got %d", w.Code)
	}
}
