package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ayase-lab/traqtune/internal/models"
	"github.com/ayase-lab/traqtune/internal/shared"
	"github.com/ayase-lab/traqtune/internal/traq"
)

// fakeUpstream is a minimal traQ stand-in covering the endpoints the gateway proxies.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	files := []models.File{
		{ID: "f1", Name: "one.mp3", MIME: "audio/mpeg", CreatedAt: now, UploaderID: "u1"},
		{ID: "f2", Name: "cover.png", MIME: "image/png", CreatedAt: now, UploaderID: "u1"},
		{ID: "f3", Name: "two.ogg", MIME: "audio/ogg", CreatedAt: now},
		{ID: "f4", Name: "notes.txt", MIME: "text/plain", CreatedAt: now},
		{ID: "f5", Name: "photo.jpg", MIME: "image/jpeg", CreatedAt: now},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "upstream-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer upstream-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(models.Profile{ID: "u1", Name: "katori", DisplayName: "Katori"})
	})

	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer upstream-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("channelId") == "broken-channel" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(files)
	})

	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer upstream-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.PathValue("id") {
		case "f1":
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("mp3-bytes"))
		case "untyped":
			w.Header()["Content-Type"] = []string{""}
			w.Write([]byte("raw-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	return httptest.NewServer(mux)
}

func newTestGateway(t *testing.T, upstreamURL string) *Gateway {
	t.Helper()

	cfg := &shared.Config{
		OAuth: shared.OAuthConfig{
			ClientID:    "gw-client",
			RedirectURL: "http://gateway.test/api/auth/callback",
		},
		Upstream: shared.UpstreamConfig{
			BaseURL:   upstreamURL,
			ChannelID: "music-channel",
			PageSize:  200,
		},
		Server: shared.ServerConfig{
			ClientAppURL:  "http://app.test",
			AllowedOrigin: "http://app.test",
		},
	}

	client, err := traq.NewClient(cfg.Upstream.BaseURL, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURL)
	if err != nil {
		t.Fatalf("failed to create traq client: %v", err)
	}

	return New(cfg, client, shared.NewLogger(io.Discard))
}

func withSession(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "upstream-token"})
	return r
}

func findCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandleLogin(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newTestGateway(t, upstream.URL).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	res := rec.Result()

	if res.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", res.StatusCode)
	}

	loc, err := url.Parse(res.Header.Get("Location"))
	if err != nil {
		t.Fatalf("failed to parse redirect location: %v", err)
	}
	if !strings.HasSuffix(loc.Path, "/oauth2/authorize") {
		t.Errorf("expected authorize endpoint, got %s", loc.Path)
	}
	if loc.Query().Get("response_type") != "code" {
		t.Error("expected response_type=code")
	}
	if loc.Query().Get("client_id") != "gw-client" {
		t.Errorf("expected configured client id, got %s", loc.Query().Get("client_id"))
	}

	state := findCookie(res, stateCookieName)
	if state == nil || state.Value == "" {
		t.Fatal("expected state cookie to be set")
	}
	if !state.HttpOnly {
		t.Error("expected state cookie to be HttpOnly")
	}
	if loc.Query().Get("state") != state.Value {
		t.Error("expected redirect state to match the cookie nonce")
	}
}

func TestHandleCallback(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newTestGateway(t, upstream.URL).Router()

	withState := func(r *http.Request, state string) *http.Request {
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: state})
		return r
	}

	t.Run("Missing Code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback", nil))
		res := rec.Result()

		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", res.StatusCode)
		}
		if findCookie(res, SessionCookieName) != nil {
			t.Error("expected no session cookie on failure")
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := withState(httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=good-code&state=evil", nil), "nonce")
		router.ServeHTTP(rec, req)
		res := rec.Result()

		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", res.StatusCode)
		}
		if findCookie(res, SessionCookieName) != nil {
			t.Error("expected no session cookie on state mismatch")
		}
	})

	t.Run("Missing State Cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=good-code&state=nonce", nil))

		if rec.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Result().StatusCode)
		}
	})

	t.Run("Rejected Code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := withState(httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=bad-code&state=nonce", nil), "nonce")
		router.ServeHTTP(rec, req)
		res := rec.Result()

		if res.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", res.StatusCode)
		}
		if findCookie(res, SessionCookieName) != nil {
			t.Error("expected no session cookie when the exchange fails")
		}
	})

	t.Run("Successful Exchange", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := withState(httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=good-code&state=nonce", nil), "nonce")
		router.ServeHTTP(rec, req)
		res := rec.Result()

		if res.StatusCode != http.StatusFound {
			t.Fatalf("expected 302, got %d", res.StatusCode)
		}
		if got := res.Header.Get("Location"); got != "http://app.test" {
			t.Errorf("expected redirect to client app, got %s", got)
		}

		session := findCookie(res, SessionCookieName)
		if session == nil {
			t.Fatal("expected session cookie to be set")
		}
		if session.Value != "upstream-token" {
			t.Errorf("expected cookie to carry the upstream token, got %s", session.Value)
		}
		if !session.HttpOnly {
			t.Error("expected session cookie to be HttpOnly")
		}
		if session.Path != "/" {
			t.Errorf("expected root path, got %s", session.Path)
		}
		if session.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
			t.Errorf("expected 7 day max age, got %d", session.MaxAge)
		}

		state := findCookie(res, stateCookieName)
		if state == nil || state.MaxAge >= 0 {
			t.Error("expected state cookie to be cleared after use")
		}
	})
}

func TestHandleMe(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newTestGateway(t, upstream.URL).Router()

	t.Run("Anonymous Without Cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "null" {
			t.Errorf("expected null body, got %q", rec.Body.String())
		}
	})

	t.Run("Anonymous On Rejected Token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale-token"})
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 even when upstream rejects the token, got %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != "null" {
			t.Errorf("expected null body, got %q", rec.Body.String())
		}
	})

	t.Run("Resolved Identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/me", nil)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var profile models.Profile
		if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
			t.Fatalf("failed to decode profile: %v", err)
		}
		if profile.ID != "u1" || profile.Name != "katori" {
			t.Errorf("unexpected profile: %+v", profile)
		}
	})
}

func TestHandleSongs(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()

	t.Run("Unauthorized Without Cookie", func(t *testing.T) {
		router := newTestGateway(t, upstream.URL).Router()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/songs", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "\"id\"") {
			t.Error("expected no partial data in unauthorized response")
		}
	})

	t.Run("Misconfigured Channel", func(t *testing.T) {
		gw := newTestGateway(t, upstream.URL)
		gw.cfg.Upstream.ChannelID = ""
		router := gw.Router()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/songs", nil)))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		gw := newTestGateway(t, upstream.URL)
		gw.cfg.Upstream.ChannelID = "broken-channel"
		router := gw.Router()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/songs", nil)))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Filters To Audio Files In Upstream Order", func(t *testing.T) {
		router := newTestGateway(t, upstream.URL).Router()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/songs", nil)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}

		var songs []models.Song
		if err := json.Unmarshal(rec.Body.Bytes(), &songs); err != nil {
			t.Fatalf("failed to decode songs: %v", err)
		}

		// 5 upstream files, 2 audio
		if len(songs) != 2 {
			t.Fatalf("expected 2 songs, got %d", len(songs))
		}
		if songs[0].ID != "f1" || songs[1].ID != "f3" {
			t.Errorf("expected upstream order [f1 f3], got [%s %s]", songs[0].ID, songs[1].ID)
		}
		for _, s := range songs {
			if !strings.HasPrefix(s.MIME, models.AudioMIMEPrefix) {
				t.Errorf("non-audio song leaked: %+v", s)
			}
			if s.ID == "" || s.Name == "" || s.CreatedAt.IsZero() {
				t.Errorf("expected id, name, createdAt populated: %+v", s)
			}
		}
		if songs[0].UploaderID != "u1" {
			t.Error("expected uploader id to be carried when present")
		}
		if songs[1].UploaderID != "" {
			t.Error("expected uploader id to stay optional")
		}
	})
}

func TestHandleStream(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newTestGateway(t, upstream.URL).Router()

	t.Run("Unauthorized Without Cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/f1", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Forwards Upstream Status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/stream/missing", nil)))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected upstream 404 to be forwarded, got %d", rec.Code)
		}
	})

	t.Run("Relays Bytes With Headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/stream/f1", nil)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "mp3-bytes" {
			t.Errorf("expected relayed body, got %q", rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
			t.Errorf("expected upstream content type, got %s", ct)
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
			t.Errorf("expected bounded caching, got %s", cc)
		}
	})

	t.Run("Defaults Content Type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/stream/untyped", nil)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != defaultStreamMIME {
			t.Errorf("expected default %s, got %s", defaultStreamMIME, ct)
		}
	})

	t.Run("Client Disconnect Cancels Upstream", func(t *testing.T) {
		upstreamCancelled := make(chan struct{})
		headersSent := make(chan struct{})

		// A download that never finishes on its own: it holds the body open
		// until its request context ends.
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "audio/mpeg")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			close(headersSent)

			select {
			case <-r.Context().Done():
				close(upstreamCancelled)
			case <-time.After(5 * time.Second):
			}
		}))
		defer slow.Close()

		gwServer := httptest.NewServer(newTestGateway(t, slow.URL).Router())
		defer gwServer.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, gwServer.URL+"/api/stream/f1", nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		withSession(req)

		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("expected the relay to start, got %v", err)
		}
		defer res.Body.Close()

		<-headersSent
		cancel() // listener goes away mid-stream

		select {
		case <-upstreamCancelled:
		case <-time.After(2 * time.Second):
			t.Fatal("expected the upstream fetch to be cancelled when the client disconnected, not drained")
		}
	})
}

func TestMiddleware(t *testing.T) {
	upstream := fakeUpstream(t)
	defer upstream.Close()
	router := newTestGateway(t, upstream.URL).Router()

	t.Run("CORS Allows Configured Origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Origin", "http://app.test")
		router.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
			t.Errorf("expected allowed origin echoed, got %q", got)
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected credentials to be allowed")
		}
	})

	t.Run("CORS Ignores Other Origins", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Origin", "http://evil.test")
		router.ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS headers for unknown origin")
		}
	})

	t.Run("Preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/api/songs", nil)
		req.Header.Set("Origin", "http://app.test")
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/songs", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}
