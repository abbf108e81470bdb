package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ryokrieger/CityConnect/internal/models"
	"github.com/ryokrieger/CityConnect/internal/services"
)

const (
	signInFlowCookieName   = "cityconnect_signin"
	signUpPendingCookie    = "cityconnect_signup"
	signInFlowTTL          = 10 * time.Minute
	signInLandingPath      = "/matches"
	signUpCompletePath     = "/signup/complete"
	signInFailurePath      = "/signin"
	maxSignInErrorCodeSize = 60
)

// signInFlow is what Start remembers about a browser's trip to the provider.
// It lives in Redis keyed by the OAuth state, so the cookie only carries the state.
type signInFlow struct {
	Provider services.Provider `json:"provider"`
	Nonce    string            `json:"nonce"`
	Next     string            `json:"next,omitempty"`
}

// ProviderAuthHandler serves "Sign in with <provider>": Start redirects to
// the provider, Callback signs the user in or parks a pending signup, and
// Complete turns a pending signup into an account once a username is chosen.
type ProviderAuthHandler struct {
	providerAuth services.ProviderAuthServiceInterface
	authService  services.AuthServiceInterface
	store        services.RedisClient
	providers    map[string]services.OAuthProvider
	secure       bool
}

func NewProviderAuthHandler(providerAuth services.ProviderAuthServiceInterface, authService services.AuthServiceInterface, store services.RedisClient, providers map[services.Provider]services.OAuthProvider, secure bool) *ProviderAuthHandler {
	byName := make(map[string]services.OAuthProvider, len(providers))
	for name, provider := range providers {
		byName[strings.ToLower(string(name))] = provider
	}
	return &ProviderAuthHandler{
		providerAuth: providerAuth,
		authService:  authService,
		store:        store,
		providers:    byName,
		secure:       secure,
	}
}

type ProviderCompleteRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
}

type ProviderCompleteResponse struct {
	User *models.User `json:"user"`
	Next string       `json:"next,omitempty"`
}

func (h *ProviderAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.lookupProvider(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	state, err := newSignInToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}
	nonce, err := newSignInToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}

	flow := signInFlow{
		Provider: provider.Provider(),
		Nonce:    nonce,
		Next:     localRedirectPath(r.URL.Query().Get("next")),
	}
	if err := h.putJSON(r, signInFlowKey(state), flow); err != nil {
		log.Printf("Error saving sign-in flow: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}

	h.setFlowCookie(w, signInFlowCookieName, state)
	http.Redirect(w, r, provider.AuthCodeURL(state, nonce), http.StatusFound)
}

func (h *ProviderAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.lookupProvider(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.failSignIn(w, r, providerErr)
		return
	}
	code, state := query.Get("code"), query.Get("state")
	if code == "" || state == "" {
		h.failSignIn(w, r, "signin_missing_code")
		return
	}

	cookie, err := r.Cookie(signInFlowCookieName)
	if err != nil || !tokensEqual(cookie.Value, state) {
		h.failSignIn(w, r, "signin_invalid_state")
		return
	}
	h.clearFlowCookie(w, signInFlowCookieName)

	var flow signInFlow
	if !h.takeJSON(r, signInFlowKey(state), &flow) || flow.Provider != provider.Provider() {
		h.failSignIn(w, r, "signin_expired")
		return
	}

	claims, err := provider.ExchangeAndVerify(r.Context(), code, flow.Nonce)
	if err != nil {
		log.Printf("Error exchanging %s code: %v", flow.Provider, err)
		h.failSignIn(w, r, "signin_exchange")
		return
	}

	result, err := h.providerAuth.LinkOrFindUserFromProvider(r.Context(), claims)
	switch {
	case errors.Is(err, services.ErrProviderEmailUnverified):
		h.failSignIn(w, r, "signin_email_unverified")
		return
	case errors.Is(err, services.ErrUserRestricted):
		h.failSignIn(w, r, "account_restricted")
		return
	case err != nil:
		log.Printf("Error linking %s identity: %v", flow.Provider, err)
		h.failSignIn(w, r, "signin_link")
		return
	}

	if result.User != nil {
		if !h.startSession(w, r, result.User) {
			return
		}
		target := flow.Next
		if target == "" {
			target = signInLandingPath
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	if result.Pending == nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	pendingToken, err := newSignInToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if err := h.putJSON(r, signUpPendingKey(pendingToken), result.Pending); err != nil {
		log.Printf("Error saving pending signup: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setFlowCookie(w, signUpPendingCookie, pendingToken)
	completeURL := signUpCompletePath + "?" + url.Values{
		"provider": {string(flow.Provider)},
		"next":     {flow.Next},
	}.Encode()
	http.Redirect(w, r, completeURL, http.StatusFound)
}

func (h *ProviderAuthHandler) Complete(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.lookupProvider(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if GetUserFromContext(r.Context()) != nil {
		writeError(w, http.StatusBadRequest, "Already signed in")
		return
	}

	cookie, err := r.Cookie(signUpPendingCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusBadRequest, "Signup expired, please sign in again")
		return
	}
	pendingKey := signUpPendingKey(cookie.Value)

	var pending services.PendingProviderUser
	if !h.readJSON(r, pendingKey, &pending) || pending.Provider != provider.Provider() {
		writeError(w, http.StatusBadRequest, "Signup expired, please sign in again")
		return
	}

	var req ProviderCompleteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.providerAuth.CreateUserFromProviderPending(r.Context(), pending, req.Username, models.Gender(req.Gender))
	switch {
	case errors.Is(err, services.ErrUsernameAlreadyExists):
		writeError(w, http.StatusConflict, "Username already taken")
		return
	case errors.Is(err, services.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, services.ErrProviderIdentityExists):
		writeError(w, http.StatusConflict, "This account is already linked")
		return
	case errors.Is(err, services.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, "Username must be between 3 and 50 characters")
		return
	case errors.Is(err, services.ErrInvalidGender):
		writeError(w, http.StatusBadRequest, "Gender must be male, female or other")
		return
	case errors.Is(err, services.ErrInvalidProviderPending):
		writeError(w, http.StatusBadRequest, "Signup expired, please sign in again")
		return
	case err != nil:
		log.Printf("Error completing %s signup: %v", pending.Provider, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.clearFlowCookie(w, signUpPendingCookie)
	if err := h.store.Del(r.Context(), pendingKey); err != nil {
		log.Printf("Error deleting pending signup: %v", err)
	}

	writeJSON(w, http.StatusCreated, ProviderCompleteResponse{
		User: user,
		Next: localRedirectPath(r.URL.Query().Get("next")),
	})
}

func (h *ProviderAuthHandler) lookupProvider(r *http.Request) (services.OAuthProvider, bool) {
	provider, ok := h.providers[strings.ToLower(r.PathValue("provider"))]
	return provider, ok
}

func (h *ProviderAuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User) bool {
	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error creating session: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return false
	}
	setSessionCookie(w, token, h.secure)
	return true
}

func (h *ProviderAuthHandler) putJSON(r *http.Request, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return h.store.Set(r.Context(), key, string(payload), signInFlowTTL)
}

func (h *ProviderAuthHandler) readJSON(r *http.Request, key string, dst any) bool {
	payload, err := h.store.Get(r.Context(), key)
	if err != nil || payload == "" {
		return false
	}
	return json.Unmarshal([]byte(payload), dst) == nil
}

// takeJSON reads a value and deletes it so a flow can only be redeemed once.
func (h *ProviderAuthHandler) takeJSON(r *http.Request, key string, dst any) bool {
	if !h.readJSON(r, key, dst) {
		return false
	}
	if err := h.store.Del(r.Context(), key); err != nil {
		log.Printf("Error deleting sign-in flow: %v", err)
	}
	return true
}

func (h *ProviderAuthHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(signInFlowTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *ProviderAuthHandler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *ProviderAuthHandler) failSignIn(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, signInFailurePath+"?error="+signInErrorCode(code), http.StatusFound)
}

func signInFlowKey(state string) string {
	return "signin_flow:" + state
}

func signUpPendingKey(token string) string {
	return "signup_pending:" + token
}

func newSignInToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func tokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// localRedirectPath accepts only same-origin absolute paths such as "/groups/x".
func localRedirectPath(value string) string {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "/") || strings.HasPrefix(value, "//") || strings.HasPrefix(value, "/\\") {
		return ""
	}
	if strings.ContainsAny(value, "\r\n") {
		return ""
	}
	return value
}

// signInErrorCode keeps provider supplied error codes to a short slug.
func signInErrorCode(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxSignInErrorCodeSize {
		return "signin_error"
	}
	for _, r := range value {
		isSlug := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isSlug {
			return "signin_error"
		}
	}
	return value
}
