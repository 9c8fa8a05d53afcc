package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"github.com/basemint/whitelist-backend/interfaces"
	"github.com/basemint/whitelist-backend/metrics"
	"github.com/basemint/whitelist-backend/proof"
	"github.com/basemint/whitelist-backend/session"
)

const (
	// sessionCookieName is the cookie carrying the bearer session token.
	sessionCookieName = "session"

	// maxBodySize is the maximum allowed request body size (64KB).
	maxBodySize = 64 * 1024
)

// Stable machine-readable reason codes. The UI keys its call-to-action off
// these, so collapsing them into a generic code is a regression.
const (
	codeUnauthenticated = "unauthenticated"
	codeNeedsFollow     = "needs_follow"
	codeNeedsLinking    = "needs_linking"
	codeAlreadyMinted   = "already_minted"
	codeConflict        = "conflict"
	codeInvalidRequest  = "invalid_request"
	codeInvalidAddress  = "invalid_address"
	codeWalletMismatch  = "wallet_mismatch"
	codeStaleNonce      = "stale_nonce"
	codeConfigError     = "config_error"
	codeTransient       = "transient"
)

type errorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	NeedsFollow   bool   `json:"needsFollow,omitempty"`
	NeedsLinking  bool   `json:"needsLinking,omitempty"`
	AlreadyMinted bool   `json:"alreadyMinted,omitempty"`
}

// HandlerConfig wires the orchestrator's collaborators and request-handling
// options. Everything is constructed once at startup and injected; the
// handler holds no mutable state of its own.
type HandlerConfig struct {
	// AppURL is the frontend URL OAuth callbacks redirect back to.
	AppURL string

	// RedirectURI is the OAuth callback URL registered with the X app.
	RedirectURI string

	// CookieSecure marks session cookies Secure (production deployments).
	CookieSecure bool

	// AdminToken guards the admin API. Empty disables the admin API.
	AdminToken string

	Sessions *session.Codec
	Store    interfaces.LinkStore
	Issuer   *proof.Issuer
	OAuth    interfaces.ProfileProvider
	Follower interfaces.FollowerVerifier

	// Nonces is optional; when set, caller-supplied nonces are cross-checked
	// against the contract before signing.
	Nonces interfaces.NonceReader

	Log *slog.Logger
}

// Handler is the authorization orchestrator: it validates sessions, enforces
// the follow gate and link uniqueness, and issues mint proofs. Every failure
// is translated into a typed reason code at this boundary; internal errors
// never reach the caller.
type Handler struct {
	cfg *HandlerConfig
	log *slog.Logger
}

// NewHandler creates the orchestrator from its configured collaborators.
func NewHandler(cfg *HandlerConfig) *Handler {
	return &Handler{cfg: cfg, log: cfg.Log}
}

// HandleAuthStart returns the OAuth authorization URL to redirect the user
// to.
//
// URL format: POST /api/auth/x
// Optional body: {"redirectUri": "..."} overriding the configured callback.
func (h *Handler) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RedirectURI string `json:"redirectUri"`
	}
	// Body is optional; decode errors fall back to the configured URI.
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body)

	redirectURI := body.RedirectURI
	if redirectURI == "" {
		redirectURI = h.cfg.RedirectURI
	}

	authURL, err := h.cfg.OAuth.AuthorizeURL(redirectURI)
	if err != nil {
		h.log.Error("Failed to build authorization URL", "err", err)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "OAuth client not configured", Code: codeConfigError})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

// HandleAuthCallback completes the OAuth dance: exchanges the code, fetches
// the profile and hands the client a fresh session cookie. Failures redirect
// back to the app with an error tag rather than surfacing JSON, since the
// browser lands here directly.
//
// URL format: GET /api/auth/x/callback?code=...
func (h *Handler) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if oauthErr := query.Get("error"); oauthErr != "" {
		h.redirectWithError(w, r, "x_"+oauthErr)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "No authorization code provided", Code: codeInvalidRequest})
		return
	}

	accessToken, err := h.cfg.OAuth.Exchange(r.Context(), code, h.cfg.RedirectURI)
	if err != nil {
		h.log.Error("OAuth code exchange failed", "err", err)
		h.redirectWithError(w, r, "x_auth_failed")
		return
	}

	profile, err := h.cfg.OAuth.Profile(r.Context(), accessToken)
	if err != nil {
		h.log.Error("Profile fetch failed", "err", err)
		h.redirectWithError(w, r, "x_auth_failed")
		return
	}

	token, err := h.cfg.Sessions.Issue(session.Claims{
		UserID:      profile.ID,
		Handle:      profile.Handle,
		AccessToken: accessToken,
	})
	if err != nil {
		h.log.Error("Failed to issue session", "err", err)
		h.redirectWithError(w, r, "session_failed")
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, h.appURL(), http.StatusFound)
}

// HandleSession reports the current session's claims.
//
// URL format: GET /api/session
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	claims, _, err := h.session(r)
	if err != nil {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"xUsername":     claims.Handle,
		"xUserId":       claims.UserID,
		"isFollower":    claims.Follower,
		"address":       claims.Wallet,
	})
}

// HandleLogout clears the session cookie. The token itself remains valid
// until expiry; stateless sessions cannot be revoked server-side.
//
// URL format: POST /api/session/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleVerifyFollower runs the configured follower check for the session's
// identity and re-issues the session token with the follower claim set.
//
// URL format: POST /api/verify-follower
func (h *Handler) HandleVerifyFollower(w http.ResponseWriter, r *http.Request) {
	claims, token, err := h.session(r)
	if err != nil || claims.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, errorResponse{Error: "Not authenticated. Please connect with X first.", Code: codeUnauthenticated})
		return
	}

	isFollower, err := h.cfg.Follower.IsFollowing(r.Context(), claims.UserID)
	if err != nil {
		h.log.Error("Follower check failed", "err", err, "identity", claims.UserID)
		h.writeError(w, http.StatusBadGateway, errorResponse{Error: "Follower verification temporarily unavailable, please retry", Code: codeTransient})
		return
	}

	newToken, err := h.cfg.Sessions.Merge(token, session.Update{Follower: &isFollower})
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, errorResponse{Error: "Invalid session. Please reconnect with X.", Code: codeUnauthenticated})
		return
	}
	h.setSessionCookie(w, newToken)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"isFollower": isFollower,
		"xUsername":  claims.Handle,
		"xUserId":    claims.UserID,
	})
}

// HandleLinkWallet links the session's identity to a wallet address. The
// link is one-shot for both sides: conflicts are reported with the existing
// counterpart so the UI can explain them, and never overwrite.
//
// URL format: POST /api/link-wallet
// Body: {"address": "0x..."}
func (h *Handler) HandleLinkWallet(w http.ResponseWriter, r *http.Request) {
	claims, token, err := h.session(r)
	if err != nil || claims.UserID == "" || claims.Handle == "" {
		h.writeError(w, http.StatusUnauthorized, errorResponse{Error: "Not authenticated. Please connect with X first.", Code: codeUnauthenticated})
		return
	}

	if !claims.Follower {
		h.writeError(w, http.StatusForbidden, errorResponse{
			Error:       "Not a follower. Please follow our X account to get whitelist access.",
			Code:        codeNeedsFollow,
			NeedsFollow: true,
		})
		return
	}

	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil || body.Address == "" {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "Wallet address is required", Code: codeInvalidRequest})
		return
	}

	wallet, err := interfaces.NewWalletAddress(body.Address)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid Ethereum address", Code: codeInvalidAddress})
		return
	}

	record, err := h.cfg.Store.CreateLink(r.Context(), claims.UserID, claims.Handle, wallet)
	if err != nil {
		h.writeLinkError(w, err)
		return
	}
	metrics.LinksCreated.Inc()

	// Carry the linked wallet in the session so the proof endpoint can
	// match it without an extra lookup on the client's side.
	walletStr := wallet.String()
	if newToken, err := h.cfg.Sessions.Merge(token, session.Update{Wallet: &walletStr}); err == nil {
		h.setSessionCookie(w, newToken)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       "Wallet linked successfully! You are now whitelisted.",
		"xUsername":     record.Handle,
		"walletAddress": record.Wallet,
		"whitelisted":   true,
	})
}

func (h *Handler) writeLinkError(w http.ResponseWriter, err error) {
	var identityConflict *interfaces.AlreadyLinkedIdentityError
	var walletConflict *interfaces.AlreadyLinkedWalletError

	switch {
	case errors.As(err, &identityConflict):
		metrics.LinkConflicts.Inc()
		h.writeError(w, http.StatusConflict, errorResponse{
			Error: "X account already linked to " + identityConflict.Wallet.String(),
			Code:  codeConflict,
		})
	case errors.As(err, &walletConflict):
		metrics.LinkConflicts.Inc()
		h.writeError(w, http.StatusConflict, errorResponse{
			Error: "Wallet already linked to @" + walletConflict.Handle,
			Code:  codeConflict,
		})
	default:
		h.log.Error("Failed to create link", "err", err)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to link wallet", Code: codeTransient})
	}
}

// HandleWhitelistStatus reports the public status for any wallet address.
// An absent record is not an error; the endpoint just reports false.
//
// URL format: GET /api/whitelist/{address}
func (h *Handler) HandleWhitelistStatus(w http.ResponseWriter, r *http.Request) {
	wallet, err := interfaces.NewWalletAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid Ethereum address", Code: codeInvalidAddress})
		return
	}

	record, found, err := h.cfg.Store.ByWallet(r.Context(), wallet)
	if err != nil {
		h.log.Error("Whitelist lookup failed", "err", err, "wallet", wallet)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to check whitelist", Code: codeTransient})
		return
	}

	if !found {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"whitelisted": false,
			"linked":      false,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"whitelisted": true,
		"linked":      true,
		"xUsername":   record.Handle,
		"mintClaimed": record.MintClaimed,
		"linkedAt":    record.LinkedAt,
	})
}

// HandleSignWhitelist issues the one mint authorization for a linked
// wallet.
//
// The store's ClaimMint is the single serialization point: the signature is
// computed first (it is a pure function, identical for every caller), and
// only the request that wins the conditional flag flip returns it. Of N
// concurrent requests for one wallet exactly one succeeds.
//
// URL format: POST /api/sign-whitelist
// Body: {"address": "0x...", "nonce": 0}
func (h *Handler) HandleSignWhitelist(w http.ResponseWriter, r *http.Request) {
	claims, _, err := h.session(r)
	if err != nil || claims.UserID == "" {
		h.writeError(w, http.StatusUnauthorized, errorResponse{Error: "Not authenticated. Please connect with X first.", Code: codeUnauthenticated})
		return
	}

	var body struct {
		Address string  `json:"address"`
		Nonce   *uint64 `json:"nonce"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil || body.Address == "" || body.Nonce == nil {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "Address and nonce are required", Code: codeInvalidRequest})
		return
	}
	nonce := *body.Nonce

	wallet, err := interfaces.NewWalletAddress(body.Address)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "Invalid Ethereum address", Code: codeInvalidAddress})
		return
	}

	record, found, err := h.cfg.Store.ByWallet(r.Context(), wallet)
	if err != nil {
		h.log.Error("Whitelist lookup failed", "err", err, "wallet", wallet)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to check whitelist", Code: codeTransient})
		return
	}
	if !found {
		metrics.ProofsRejected.WithLabelValues(codeNeedsLinking).Inc()
		h.writeError(w, http.StatusForbidden, errorResponse{
			Error:        "Wallet not whitelisted. Please link your wallet first by following our X account.",
			Code:         codeNeedsLinking,
			NeedsLinking: true,
		})
		return
	}
	if record.IdentityID != claims.UserID {
		metrics.ProofsRejected.WithLabelValues(codeWalletMismatch).Inc()
		h.writeError(w, http.StatusForbidden, errorResponse{Error: "Wallet is linked to a different X account", Code: codeWalletMismatch})
		return
	}
	if record.MintClaimed {
		metrics.ProofsRejected.WithLabelValues(codeAlreadyMinted).Inc()
		h.writeAlreadyMinted(w, record.Handle)
		return
	}

	if h.cfg.Nonces != nil {
		currentNonce, err := h.cfg.Nonces.CurrentNonce(r.Context(), wallet)
		if err != nil {
			h.log.Error("On-chain nonce lookup failed", "err", err, "wallet", wallet)
			h.writeError(w, http.StatusBadGateway, errorResponse{Error: "Chain state temporarily unavailable, please retry", Code: codeTransient})
			return
		}
		if currentNonce != nonce {
			metrics.ProofsRejected.WithLabelValues(codeStaleNonce).Inc()
			h.writeError(w, http.StatusConflict, errorResponse{Error: "Nonce does not match on-chain state", Code: codeStaleNonce})
			return
		}
	}

	if h.cfg.Issuer == nil {
		h.log.Error("Mint proof requested but backend signer is not configured")
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Backend signer not configured", Code: codeConfigError})
		return
	}

	signature, err := h.cfg.Issuer.IssueProof(wallet, nonce)
	if err != nil {
		h.log.Error("Failed to sign whitelist proof", "err", err, "wallet", wallet)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to sign whitelist proof", Code: codeConfigError})
		return
	}

	// The conditional flag flip decides the winner; a lost race discards
	// the signature just computed.
	claimed, err := h.cfg.Store.ClaimMint(r.Context(), wallet)
	if err != nil {
		var alreadyMinted *interfaces.AlreadyMintedError
		switch {
		case errors.As(err, &alreadyMinted):
			metrics.ProofsRejected.WithLabelValues(codeAlreadyMinted).Inc()
			h.writeAlreadyMinted(w, alreadyMinted.Handle)
		case errors.Is(err, interfaces.ErrNotLinked):
			metrics.ProofsRejected.WithLabelValues(codeNeedsLinking).Inc()
			h.writeError(w, http.StatusForbidden, errorResponse{
				Error:        "Wallet not whitelisted. Please link your wallet first by following our X account.",
				Code:         codeNeedsLinking,
				NeedsLinking: true,
			})
		default:
			h.log.Error("Failed to claim mint", "err", err, "wallet", wallet)
			h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to issue mint proof", Code: codeTransient})
		}
		return
	}
	metrics.ProofsIssued.Inc()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"signature": hexutil.Encode(signature),
		"nonce":     nonce,
		"address":   wallet,
		"xUsername": claimed.Handle,
		"message":   "Signature generated successfully",
	})
}

func (h *Handler) writeAlreadyMinted(w http.ResponseWriter, handle string) {
	h.writeError(w, http.StatusForbidden, errorResponse{
		Error:         "This wallet already minted with @" + handle,
		Code:          codeAlreadyMinted,
		AlreadyMinted: true,
	})
}

// RequireAdmin guards the admin API with the configured bearer token. With
// no token configured the admin API does not exist.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.AdminToken == "" {
			http.NotFound(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.AdminToken)) != 1 {
			h.writeError(w, http.StatusUnauthorized, errorResponse{Error: "Invalid admin token", Code: codeUnauthenticated})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleAdminEntries lists every link record.
//
// URL format: GET /api/admin/entries
func (h *Handler) HandleAdminEntries(w http.ResponseWriter, r *http.Request) {
	records, err := h.cfg.Store.All(r.Context())
	if err != nil {
		h.log.Error("Failed to list link records", "err", err)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to list entries", Code: codeTransient})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"entries": records})
}

// HandleAdminStats reports registry totals.
//
// URL format: GET /api/admin/stats
func (h *Handler) HandleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cfg.Store.Stats(r.Context())
	if err != nil {
		h.log.Error("Failed to compute stats", "err", err)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to compute stats", Code: codeTransient})
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// HandleAdminRemoveLink purges the link for an identity from both indexes.
// This is the only deletion path and sits outside normal flow.
//
// URL format: DELETE /api/admin/links/{identity}
func (h *Handler) HandleAdminRemoveLink(w http.ResponseWriter, r *http.Request) {
	identity := interfaces.IdentityID(chi.URLParam(r, "identity"))
	if identity == "" {
		h.writeError(w, http.StatusBadRequest, errorResponse{Error: "Identity is required", Code: codeInvalidRequest})
		return
	}

	if err := h.cfg.Store.Remove(r.Context(), identity); err != nil {
		h.log.Error("Failed to remove link", "err", err, "identity", identity)
		h.writeError(w, http.StatusInternalServerError, errorResponse{Error: "Failed to remove link", Code: codeTransient})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// session extracts and verifies the bearer session from the cookie or the
// Authorization header. It returns the decoded claims together with the raw
// token so claim merges can re-issue from it.
func (h *Handler) session(r *http.Request) (session.Claims, string, error) {
	token, ok := h.sessionToken(r)
	if !ok {
		return session.Claims{}, "", session.ErrInvalidToken
	}

	claims, err := h.cfg.Sessions.Verify(token)
	if err != nil {
		return session.Claims{}, "", err
	}
	return claims, token, nil
}

func (h *Handler) sessionToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token, true
	}
	return "", false
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(session.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) appURL() string {
	if h.cfg.AppURL == "" {
		return "/"
	}
	return h.cfg.AppURL
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, tag string) {
	target := h.appURL()
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("error", tag)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, resp errorResponse) {
	h.writeJSON(w, status, resp)
}
