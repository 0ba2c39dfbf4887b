package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayase-lab/traqtune/internal/models"
	"github.com/ayase-lab/traqtune/internal/shared"
	"github.com/ayase-lab/traqtune/internal/traq"
	"github.com/charmbracelet/log"
)

// defaultStreamMIME is used when the upstream omits a content type on a file
// download. Listings only ever expose audio files, so a generic audio type is
// the safe fallback.
const defaultStreamMIME = "audio/mpeg"

// Gateway holds the handlers for the HTTP surface.
//
// It is stateless between requests: authentication is re-derived from the
// session cookie on every call, and nothing from the upstream is retained.
// There is no logout route; revocation would need upstream cooperation, so
// the session simply expires with its cookie.
type Gateway struct {
	cfg    *shared.Config
	client *traq.Client
	logger *log.Logger
}

// New creates a Gateway from validated configuration.
func New(cfg *shared.Config, client *traq.Client, logger *log.Logger) *Gateway {
	return &Gateway{cfg: cfg, client: client, logger: logger}
}

// Router builds the gateway's route table with CORS and request logging applied.
func (g *Gateway) Router() *BasicRouter {
	router := NewBasicRouter()
	router.Use(RequestLogger(g.logger), CORS(g.cfg.Server.AllowedOrigin))

	router.Handle(http.MethodGet, "/api/auth/login", http.HandlerFunc(g.HandleLogin))
	router.Handle(http.MethodGet, "/api/auth/callback", http.HandlerFunc(g.HandleCallback))
	router.Handle(http.MethodGet, "/api/me", http.HandlerFunc(g.HandleMe))
	router.Handle(http.MethodGet, "/api/songs", http.HandlerFunc(g.HandleSongs))
	router.Handle(http.MethodGet, "/api/stream/{fileId}", http.HandlerFunc(g.HandleStream))

	return router
}

// HandleLogin redirects the browser to the provider's authorize endpoint.
//
// A UUID nonce is stored in a short-lived cookie and carried as the OAuth
// state parameter, to be verified on callback.
func (g *Gateway) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	writeStateCookie(w, state, g.cfg.Server.SecureCookies)

	http.Redirect(w, r, g.client.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback completes the authorization-code exchange and establishes
// the session.
//
// The session cookie is set only after a confirmed successful exchange; every
// failure path leaves the browser without one.
func (g *Gateway) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	expected, ok := readStateCookie(r)
	if !ok || r.URL.Query().Get("state") != expected {
		g.logger.Warn("oauth state mismatch", "remote", r.RemoteAddr)
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	token, err := g.client.Exchange(r.Context(), code)
	if err != nil {
		g.logger.Error("token exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, "token exchange failed")
		return
	}

	clearStateCookie(w, g.cfg.Server.SecureCookies)
	writeSessionCookie(w, token.AccessToken, g.cfg.Server.SecureCookies)

	http.Redirect(w, r, g.cfg.Server.ClientAppURL, http.StatusFound)
}

// HandleMe reports the identity behind the session cookie.
//
// Anonymous is a valid state: no cookie, an upstream error, or a rejected
// token all collapse to a JSON null. Resolving identity must never break
// page load, so this route has no hard failure mode.
func (g *Gateway) HandleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := readSessionToken(r)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	profile, err := g.client.Me(r.Context(), token)
	if err != nil {
		g.logger.Debug("identity lookup failed, treating as anonymous", "error", err)
		writeJSON(w, http.StatusOK, nil)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleSongs lists the configured channel's audio files as songs.
//
// Only files whose MIME type starts with audio/ leave the gateway; the
// result keeps the upstream's order, which callers must not assume to be
// chronological.
func (g *Gateway) HandleSongs(w http.ResponseWriter, r *http.Request) {
	token, ok := readSessionToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	channelID := g.cfg.Upstream.ChannelID
	if channelID == "" {
		g.logger.Error("song listing requested but no channel is configured")
		writeError(w, http.StatusInternalServerError, "gateway misconfigured")
		return
	}

	files, err := g.client.ListChannelFiles(r.Context(), token, channelID, g.cfg.Upstream.PageSize)
	if err != nil {
		g.logger.Error("upstream file listing failed", "channel", channelID, "error", err)
		writeError(w, http.StatusInternalServerError, "upstream error")
		return
	}

	writeJSON(w, http.StatusOK, models.FilterSongs(files))
}

// HandleStream relays a file's bytes from the upstream to the client.
//
// The relay is pass-through: no buffering of the whole body, no transcoding.
// Upstream failures with a status are forwarded verbatim; the request context
// ties the upstream fetch to the client connection so a disconnect mid-stream
// cancels the download.
func (g *Gateway) HandleStream(w http.ResponseWriter, r *http.Request) {
	token, ok := readSessionToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	fileID := r.PathValue("fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "missing file id")
		return
	}

	stream, err := g.client.DownloadFile(r.Context(), token, fileID)
	if err != nil {
		g.logger.Error("upstream file fetch failed", "file", fileID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream error")
		return
	}
	defer stream.Body.Close()

	if stream.StatusCode < 200 || stream.StatusCode >= 300 {
		g.logger.Warn("upstream returned non-success for file", "file", fileID, "status", stream.StatusCode)
		writeError(w, stream.StatusCode, "failed to fetch file")
		return
	}

	contentType := stream.ContentType
	if contentType == "" {
		contentType = defaultStreamMIME
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, stream.Body); err != nil {
		// Client disconnects land here; the context cancellation has already
		// closed the upstream request.
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			g.logger.Debug("stream relay ended early", "file", fileID, "error", err)
		}
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error object with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
