package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vrsjns/bearlink-sub000/internal/middleware"
	"github.com/vrsjns/bearlink-sub000/internal/models"
	"github.com/vrsjns/bearlink-sub000/internal/services"
	"github.com/vrsjns/bearlink-sub000/internal/slug"
	"github.com/vrsjns/bearlink-sub000/internal/util"
)

const (
	defaultSignTTL = time.Hour
	maxSignTTL     = 30 * 24 * time.Hour
)

func (h *Handler) CreateURL(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		util.JSONError(w, "Authentication required.", http.StatusUnauthorized)
		return
	}

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, models.Invalid("invalid request format"))
		return
	}

	link, err := h.createLink(r.Context(), principal.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.emitter.LinkCreated(r.Context(), link)
	util.JSONResponse(w, map[string]string{"shortUrl": h.ShortURL(link.Slug())}, http.StatusCreated)
}

func (h *Handler) BulkCreateURLs(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		util.JSONError(w, "Authentication required.", http.StatusUnauthorized)
		return
	}

	var body struct {
		URLs []models.CreateRequest `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.URLs) == 0 {
		h.writeError(w, r, models.Invalid("urls must be a non-empty array"))
		return
	}
	if len(body.URLs) > services.MaxBulkItems {
		h.writeError(w, r, models.Invalid("at most %d urls per request", services.MaxBulkItems))
		return
	}

	results := services.BulkCreate(r.Context(), body.URLs, func(ctx context.Context, req models.CreateRequest) (string, error) {
		link, err := h.createLink(ctx, principal.ID, req)
		if err != nil {
			return "", err
		}
		h.emitter.LinkCreated(ctx, link)
		return h.ShortURL(link.Slug()), nil
	})

	util.JSONResponse(w, results, http.StatusOK)
}

// createLink validates the request, runs the creation-time policy gate and
// inserts with bounded collision retries. A custom-alias conflict is never
// retried: only the user can fix a deterministic request.
func (h *Handler) createLink(ctx context.Context, ownerID string, req models.CreateRequest) (models.Link, error) {
	originalURL, err := util.ParseURL(req.OriginalURL)
	if err != nil {
		return models.Link{}, models.Invalid("you must provide a valid http or https URL")
	}

	redirectType, err := validateRedirectType(req.RedirectType)
	if err != nil {
		return models.Link{}, err
	}

	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return models.Link{}, models.Invalid("expiresAt must be in the future")
	}

	if req.CustomAlias != "" {
		if err := slug.ValidateAlias(req.CustomAlias); err != nil {
			return models.Link{}, err
		}
	}

	if err := h.gate.Evaluate(ctx, originalURL); err != nil {
		return models.Link{}, err
	}

	var passwordHash string
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.Link{}, err
		}
		passwordHash = string(hash)
	}

	link := models.Link{
		OriginalURL:      originalURL,
		CustomAlias:      req.CustomAlias,
		RedirectType:     redirectType,
		ExpiresAt:        req.ExpiresAt,
		PasswordHash:     passwordHash,
		Tags:             models.StringList(req.Tags),
		UTMParams:        models.Params(req.UTMParams),
		RequireSignature: req.RequireSignature,
		UserID:           ownerID,
	}

	for attempt := 0; attempt < slug.MaxAttempts; attempt++ {
		shortID, err := slug.New()
		if err != nil {
			return models.Link{}, err
		}
		link.ShortID = shortID
		err = h.store.Create(ctx, &link)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, models.ErrSlugTaken) {
			continue
		}
		return models.Link{}, err
	}
	return models.Link{}, models.ErrCollisionExhausted
}

type updateRequest struct {
	OriginalURL      *string                 `json:"originalUrl"`
	CustomAlias      *string                 `json:"customAlias"`
	RedirectType     *int                    `json:"redirectType"`
	ExpiresAt        json.RawMessage         `json:"expiresAt"`
	Password         json.RawMessage         `json:"password"`
	Tags             *[]string               `json:"tags"`
	UTMParams        *map[string]interface{} `json:"utmParams"`
	RequireSignature *bool                   `json:"requireSignature"`
}

func (h *Handler) UpdateURL(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		util.JSONError(w, "Authentication required.", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, r, models.Invalid("invalid link id"))
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, models.Invalid("invalid request format"))
		return
	}

	patch, err := h.buildPatch(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	link, err := h.store.UpdateByOwner(r.Context(), id, principal.ID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.emitter.LinkUpdated(r.Context(), link)
	util.JSONResponse(w, link, http.StatusOK)
}

func (h *Handler) buildPatch(ctx context.Context, req updateRequest) (models.LinkPatch, error) {
	var patch models.LinkPatch

	if req.OriginalURL != nil {
		normalized, err := util.ParseURL(*req.OriginalURL)
		if err != nil {
			return patch, models.Invalid("you must provide a valid http or https URL")
		}
		if err := h.gate.Evaluate(ctx, normalized); err != nil {
			return patch, err
		}
		patch.OriginalURL = &normalized
	}

	if req.CustomAlias != nil {
		if *req.CustomAlias != "" {
			if err := slug.ValidateAlias(*req.CustomAlias); err != nil {
				return patch, err
			}
		}
		patch.CustomAlias = req.CustomAlias
	}

	if req.RedirectType != nil {
		redirectType, err := validateRedirectType(*req.RedirectType)
		if err != nil {
			return patch, err
		}
		patch.RedirectType = &redirectType
	}

	if len(req.ExpiresAt) > 0 {
		patch.SetExpiresAt = true
		if !isJSONNull(req.ExpiresAt) {
			var expiresAt time.Time
			if err := json.Unmarshal(req.ExpiresAt, &expiresAt); err != nil {
				return patch, models.Invalid("invalid expiresAt timestamp")
			}
			if !expiresAt.After(time.Now()) {
				return patch, models.Invalid("expiresAt must be in the future")
			}
			patch.ExpiresAt = &expiresAt
		}
	}

	if len(req.Password) > 0 {
		patch.SetPassword = true
		if !isJSONNull(req.Password) {
			var password string
			if err := json.Unmarshal(req.Password, &password); err != nil || password == "" {
				return patch, models.Invalid("password must be a non-empty string or null")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return patch, err
			}
			hashStr := string(hash)
			patch.PasswordHash = &hashStr
		}
	}

	if req.Tags != nil {
		tags := models.StringList(*req.Tags)
		patch.Tags = &tags
	}
	if req.UTMParams != nil {
		params := models.Params(*req.UTMParams)
		patch.UTMParams = &params
	}
	patch.RequireSignature = req.RequireSignature

	if patch.Empty() {
		return patch, models.Invalid("nothing to update")
	}
	return patch, nil
}

func (h *Handler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		util.JSONError(w, "Authentication required.", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, r, models.Invalid("invalid link id"))
		return
	}

	link, err := h.store.DeleteByOwner(r.Context(), id, principal.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.emitter.LinkDeleted(r.Context(), link)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListURLs(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		util.JSONError(w, "Authentication required.", http.StatusUnauthorized)
		return
	}

	params := r.URL.Query()
	query := models.ListQuery{
		Search: params.Get("search"),
		Tag:    params.Get("tag"),
	}
	query.Page, _ = strconv.Atoi(params.Get("page"))
	query.Limit, _ = strconv.Atoi(params.Get("limit"))
	if expired, err := strconv.ParseBool(params.Get("expired")); err == nil {
		query.Expired = &expired
	}
	query.Normalize()

	links, total, err := h.store.List(r.Context(), principal.ID, query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if links == nil {
		links = []models.Link{}
	}

	pages := total / int64(query.Limit)
	if total%int64(query.Limit) != 0 {
		pages++
	}
	util.JSONResponse(w, map[string]interface{}{
		"data": links,
		"pagination": map[string]interface{}{
			"page":  query.Page,
			"limit": query.Limit,
			"total": total,
			"pages": pages,
		},
	}, http.StatusOK)
}

func (h *Handler) SignURL(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		util.JSONError(w, "Authentication required.", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, r, models.Invalid("invalid link id"))
		return
	}

	link, err := h.store.FindByOwner(r.Context(), id, principal.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if !h.signer.Enabled() {
		h.writeError(w, r, models.ErrSigningDisabled)
		return
	}

	ttl := defaultSignTTL
	var body struct {
		TTL int64 `json:"ttl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.TTL != 0 {
		ttl = time.Duration(body.TTL) * time.Second
	}
	if ttl <= 0 || ttl > maxSignTTL {
		h.writeError(w, r, models.Invalid("ttl must be between 1 second and 30 days"))
		return
	}

	signedURL, err := h.signer.Sign(h.ShortURL(link.Slug()), ttl)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	util.JSONResponse(w, map[string]string{"signedUrl": signedURL}, http.StatusOK)
}

func validateRedirectType(redirectType int) (int, error) {
	switch redirectType {
	case 0:
		return http.StatusFound, nil
	case http.StatusMovedPermanently, http.StatusFound:
		return redirectType, nil
	default:
		return 0, models.Invalid("redirectType must be 301 or 302")
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
