package webserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/wata-nana/Hiraizumi-app/pkg/config"
	"github.com/wata-nana/Hiraizumi-app/pkg/db"
	"github.com/wata-nana/Hiraizumi-app/pkg/log"
	"github.com/wata-nana/Hiraizumi-app/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Server: config.ServerConfig{
			Host:    "localhost",
			Port:    0,
			Env:     "development",
			BaseURL: "http://localhost",
		},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			Database:     ":memory:",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		OAuth: config.OAuth2Config{
			Google: config.GoogleOAuthConfig{
				ClientID:     "test-client",
				ClientSecret: "test-secret",
				RedirectURL:  "http://localhost/auth/callback",
				Scopes:       []string{"openid", "email", "profile"},
				AuthURL:      "https://accounts.google.com/o/oauth2/auth",
				TokenURL:     "https://oauth2.googleapis.com/token",
				UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
			},
		},
		Security: config.SecurityConfig{
			SessionSecret:      "0123456789abcdef0123456789abcdef",
			SessionCookieName:  "hiraizumi_session",
			SessionMaxAge:      86400 * 7,
			JWTSecret:          "0123456789abcdef0123456789abcdef",
			JWTExpirationHours: 1,
			RateLimitEnabled:   false,
		},
		Logging: config.LoggingConfig{
			Level:  "error",
			Format: "text",
			Output: "stdout",
		},
		Upload: config.UploadConfig{
			Dir:       t.TempDir(),
			URLPrefix: "/static/uploads",
			MaxSizeMB: 10,
		},
	}
}

// newTestServer builds a server backed by an in-memory store.
func newTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()

	cfg := testConfig(t)

	logger, err := log.New(&cfg.Logging)
	if err != nil {
		t.Fatalf("log.New: %v", err)
	}

	database, err := db.New(&cfg.Database)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	srv, err := New(cfg, database, logger)
	if err != nil {
		t.Fatalf("webserver.New: %v", err)
	}

	return srv, database
}

// createTestUser inserts a user directly into the store.
func createTestUser(t *testing.T, database *db.DB, sub string) *models.User {
	t.Helper()

	user := &models.User{
		Sub:   sub,
		Email: sub + "@example.com",
		Name:  "Test User",
	}
	if err := db.NewRepository(database).CreateUser(user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	return user
}

// bearerToken mints an API token accepted by the auth middleware.
func bearerToken(t *testing.T, srv *Server, user *models.User) string {
	t.Helper()

	token, err := srv.jwtManager.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	return "Bearer " + token
}

// performRequest runs a request through the router.
func performRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

// multipartBody builds a multipart form from fields plus an optional
// file part named "image".
func multipartBody(t *testing.T, fields map[string]string, imageName string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s): %v", k, err)
		}
	}

	if imageName != "" {
		fw, err := mw.CreateFormFile("image", imageName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte("not-a-real-image")); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return &buf, mw.FormDataContentType()
}

// cookieJar tracks session cookies across redirect hops.
type cookieJar map[string]*http.Cookie

func (j cookieJar) update(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		j[ck.Name] = ck
	}
}

func (j cookieJar) apply(req *http.Request) {
	for _, ck := range j {
		req.AddCookie(ck)
	}
}

// loginThroughGoogle drives the full OAuth flow against stubbed Google
// endpoints and returns the authenticated session cookies.
func loginThroughGoogle(t *testing.T, srv *Server, claims map[string]string) cookieJar {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"stub-access-token","token_type":"Bearer"}`)
	}))
	t.Cleanup(tokenSrv.Close)

	userinfoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(claims)
	}))
	t.Cleanup(userinfoSrv.Close)

	srv.config.OAuth.Google.TokenURL = tokenSrv.URL
	srv.config.OAuth.Google.UserInfoURL = userinfoSrv.URL

	jar := cookieJar{}

	// Step 1: /login/google redirects to the provider with a state bound
	// to the session.
	req := httptest.NewRequest(http.MethodGet, "/login/google", nil)
	w := performRequest(srv, req)
	resp := w.Result()
	jar.update(resp)

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("authorization redirect carries no state")
	}

	// Step 2: the callback exchanges the code and binds the session.
	req = httptest.NewRequest(http.MethodGet, "/auth/callback?code=stub-code&state="+url.QueryEscape(state), nil)
	jar.apply(req)
	w = performRequest(srv, req)
	resp = w.Result()
	jar.update(resp)

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status = %d, want %d", resp.StatusCode, http.StatusFound)
	}

	return jar
}

func decodeJSON(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
