package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"github.com/vrsjns/bearlink-sub000/internal/clicks"
	"github.com/vrsjns/bearlink-sub000/internal/events"
	"github.com/vrsjns/bearlink-sub000/internal/geo"
	"github.com/vrsjns/bearlink-sub000/internal/logger"
	"github.com/vrsjns/bearlink-sub000/internal/models"
	"github.com/vrsjns/bearlink-sub000/internal/policy"
	"github.com/vrsjns/bearlink-sub000/internal/signer"
	"github.com/vrsjns/bearlink-sub000/internal/storage"
	"github.com/vrsjns/bearlink-sub000/internal/util"
)

// Handler carries every collaborator the HTTP surface needs. All clients
// are injected once at startup; nothing is reached through globals.
type Handler struct {
	store   storage.Store
	signer  *signer.Signer
	gate    *policy.Gate
	tracker *clicks.Tracker
	emitter *events.Emitter
	geo     *geo.Resolver
	baseURL string
}

func New(store storage.Store, sig *signer.Signer, gate *policy.Gate, tracker *clicks.Tracker,
	emitter *events.Emitter, geoResolver *geo.Resolver, baseURL string) *Handler {
	return &Handler{
		store:   store,
		signer:  sig,
		gate:    gate,
		tracker: tracker,
		emitter: emitter,
		geo:     geoResolver,
		baseURL: baseURL,
	}
}

func (h *Handler) ShortURL(slug string) string {
	return h.baseURL + "/" + slug
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		http.Error(w, "Database connection failed.", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Redirect resolves a slug and walks the security gate in order: existence,
// safety, expiration, signature, password. The first failure wins.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	slugParam := chi.URLParam(r, "slug")

	link, err := h.store.FindBySlug(r.Context(), slugParam)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.redirectChecks(r, &link, slugParam); err != nil {
		h.writeError(w, r, err)
		return
	}
	if link.PasswordHash != "" {
		h.writeError(w, r, models.ErrPasswordRequired)
		return
	}

	h.completeRedirect(w, r, link)
}

// Unlock verifies the password, re-runs the expiration and signature gates,
// and only then counts the click and redirects.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	slugParam := chi.URLParam(r, "slug")

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		h.writeError(w, r, models.Invalid("password is required"))
		return
	}

	link, err := h.store.FindBySlug(r.Context(), slugParam)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if link.PasswordHash == "" {
		h.writeError(w, r, models.Invalid("link is not password-protected"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(body.Password)) != nil {
		h.writeError(w, r, models.ErrWrongPassword)
		return
	}

	if err := h.redirectChecks(r, &link, slugParam); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.completeRedirect(w, r, link)
}

// QRCode renders the short URL for a slug as a PNG. Policy gates apply when
// the encoded URL is followed, not when the image is rendered.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	slugParam := chi.URLParam(r, "slug")

	if _, err := h.store.FindBySlug(r.Context(), slugParam); err != nil {
		h.writeError(w, r, err)
		return
	}

	png, err := qrcode.Encode(h.ShortURL(slugParam), qrcode.Medium, 256)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// redirectChecks covers the safety, expiration and signature gates. The
// password gate stays with the caller because unlock satisfies it
// differently.
func (h *Handler) redirectChecks(r *http.Request, link *models.Link, slugParam string) error {
	u, err := url.Parse(link.OriginalURL)
	if err != nil || !util.SafeScheme(u.Scheme) {
		return models.ErrUnsafeRedirect
	}

	if link.Expired(time.Now()) {
		return models.ErrExpired
	}

	if link.RequireSignature {
		if !h.signer.Enabled() {
			// No secret: the flag can never be satisfied. Surfaced at
			// startup as a misconfiguration warning.
			return models.ForbiddenError{Reason: "invalid signature"}
		}
		q := r.URL.Query()
		if err := h.signer.Verify(h.ShortURL(slugParam), q.Get("sig"), q.Get("exp")); err != nil {
			switch {
			case errors.Is(err, signer.ErrMissingSignature):
				return models.ForbiddenError{Reason: "missing signature"}
			case errors.Is(err, signer.ErrExpired):
				return models.ForbiddenError{Reason: "signature expired"}
			default:
				return models.ForbiddenError{Reason: "invalid signature"}
			}
		}
	}
	return nil
}

func (h *Handler) completeRedirect(w http.ResponseWriter, r *http.Request, link models.Link) {
	ip := util.ClientIP(r)
	userAgent := r.UserAgent()

	if h.tracker.ShouldCount(r.Context(), link.ShortID, ip, userAgent, time.Now()) {
		if err := h.store.IncrementClicks(r.Context(), link.ShortID); err != nil {
			logger.Log.Warnw("click increment failed", "shortId", link.ShortID, "error", err)
		}
		h.emitter.LinkClicked(r.Context(), events.ClickEvent{
			ShortID:   link.ShortID,
			IP:        ip,
			Country:   h.geo.Country(r.Context(), ip),
			UserAgent: userAgent,
			Referer:   r.Referer(),
			Timestamp: time.Now().Unix(),
		})
	}

	redirectType := link.RedirectType
	if redirectType != http.StatusMovedPermanently {
		redirectType = http.StatusFound
	}
	http.Redirect(w, r, link.OriginalURL, redirectType)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr models.ValidationError
		forbiddenErr  models.ForbiddenError
		policyErr     models.PolicyError
	)
	switch {
	case errors.As(err, &validationErr):
		util.JSONError(w, validationErr.Msg, http.StatusBadRequest)
	case errors.Is(err, models.ErrUnsafeRedirect):
		util.JSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		util.JSONError(w, "Link not found.", http.StatusNotFound)
	case errors.Is(err, models.ErrAliasTaken):
		util.JSONError(w, "Custom alias is already taken.", http.StatusConflict)
	case errors.Is(err, models.ErrExpired):
		util.JSONError(w, "This link has expired.", http.StatusGone)
	case errors.Is(err, models.ErrPasswordRequired):
		util.JSONResponse(w, map[string]interface{}{
			"error":            "This link is password-protected.",
			"requiresPassword": true,
		}, http.StatusUnauthorized)
	case errors.Is(err, models.ErrWrongPassword):
		util.JSONError(w, "Incorrect password.", http.StatusUnauthorized)
	case errors.As(err, &forbiddenErr):
		util.JSONError(w, forbiddenErr.Reason, http.StatusForbidden)
	case errors.As(err, &policyErr):
		util.JSONError(w, policyErr.Reason, http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrSigningDisabled):
		util.JSONError(w, "Link signing is not configured.", http.StatusServiceUnavailable)
	default:
		correlationID := uuid.New().String()
		logger.Log.Errorw("internal error",
			"correlationId", correlationID,
			"uri", r.RequestURI,
			"error", err,
		)
		util.JSONResponse(w, map[string]string{
			"error":         "Internal server error.",
			"correlationId": correlationID,
		}, http.StatusInternalServerError)
	}
}
