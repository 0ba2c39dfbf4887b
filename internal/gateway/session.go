package gateway

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName carries the upstream access token. The cookie is the
	// whole session: the gateway keeps no server-side record of it.
	SessionCookieName = "traq_token"

	// stateCookieName transiently holds the OAuth state nonce between the
	// login redirect and the provider callback.
	stateCookieName = "traq_oauth_state"

	sessionMaxAge = 7 * 24 * time.Hour
	stateMaxAge   = 5 * time.Minute
)

// writeSessionCookie stores the upstream access token in the browser.
func writeSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// readSessionToken extracts the session token from the request cookie.
//
// Absence is a normal state (anonymous), not an error.
func readSessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// writeStateCookie stores the CSRF nonce for the in-flight authorization request.
func writeStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// readStateCookie extracts the CSRF nonce set at login time.
func readStateCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(stateCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// clearStateCookie removes the nonce once the callback consumed it.
func clearStateCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
