package handlers

//go:generate mockgen -source=users.go -destination=mocks/mock_users.go -package=mocks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/younginnovators/internal/cache"
	"github.com/geocoder89/younginnovators/internal/config"
	"github.com/geocoder89/younginnovators/internal/domain/user"
	"github.com/geocoder89/younginnovators/internal/observability"
	"github.com/geocoder89/younginnovators/internal/security"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetCredentials(ctx context.Context, email string) (user.User, string, error)
	ListByRoles(ctx context.Context, roles []user.Role) ([]user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type UsersHandler struct {
	store   UserStore
	hasher  PasswordHasher
	cache   cache.Store
	prom    *observability.Prom
	log     *slog.Logger
	timeout time.Duration
}

type UsersOption func(*UsersHandler)

// WithCache enables caching of the mentors listing.
func WithCache(c cache.Store) UsersOption {
	return func(h *UsersHandler) { h.cache = c }
}

func WithMetrics(p *observability.Prom) UsersOption {
	return func(h *UsersHandler) { h.prom = p }
}

func WithLogger(l *slog.Logger) UsersOption {
	return func(h *UsersHandler) { h.log = l }
}

func WithStoreTimeout(d time.Duration) UsersOption {
	return func(h *UsersHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func NewUsersHandler(store UserStore, hasher PasswordHasher, opts ...UsersOption) *UsersHandler {
	h := &UsersHandler{
		store:   store,
		hasher:  hasher,
		log:     slog.Default(),
		timeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type usersListResponse struct {
	Items []user.User `json:"items"`
	Count int         `json:"count"`
}

func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !DecodeJSON(ctx, &req) {
		return
	}

	nu, err := user.Validate(req)

	if err != nil {
		var verr *user.ValidationError
		if errors.As(err, &verr) {
			for _, v := range verr.Violations {
				h.prom.ObserveViolation(string(v.Kind), v.Reason)
			}
			h.prom.ObserveRegistration(rejectedRoleLabel(verr), "invalid")
			RespondValidation(ctx, verr)
			return
		}

		h.log.ErrorContext(ctx.Request.Context(), "registration validation failed", "err", err)
		RespondInternal(ctx, "Could not register user")
		return
	}

	hash, err := h.hasher.Hash(nu.Password)

	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "hash password", "err", err)
		RespondInternal(ctx, "Could not register user")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)

	defer cancel()

	u, err := h.store.Create(cctx, nu.WithPasswordHash(hash))

	if err != nil {
		if errors.Is(err, user.ErrDuplicateUser) {
			h.prom.ObserveRegistration(string(nu.Role), "duplicate")
			RespondConflict(ctx, "duplicate_user", "A user with this email already exists")
			return
		}

		h.prom.ObserveRegistration(string(nu.Role), "error")
		h.respondStoreError(ctx, err, "Could not register user")
		return
	}

	h.prom.ObserveRegistration(string(u.Role), "created")

	if isMentorRole(u.Role) {
		h.invalidateMentors(cctx)
	}

	h.log.InfoContext(ctx.Request.Context(), "user registered", "user_id", u.ID, "role", u.Role)

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	email := strings.TrimSpace(ctx.Query("email"))

	if email == "" {
		RespondBadRequest(ctx, "Email query parameter is required", gin.H{
			"fields": []FieldError{{Field: "email", Rule: "required", Message: "is required"}},
		})
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)

	defer cancel()

	u, err := h.store.GetByEmail(cctx, email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.respondStoreError(ctx, err, "Could not fetch user")
		return
	}

	respondWithETag(ctx, userETag(u), u)
}

func (h *UsersHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// registration never stores a password bcrypt would reject
	if len(req.Password) > user.PasswordMaxBytes {
		h.prom.ObserveLogin("invalid")
		RespondUnauthorized(ctx, "invalid_credentials", user.ErrInvalidCredentials.Error())
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)

	defer cancel()

	u, hash, err := h.store.GetCredentials(cctx, req.Email)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.prom.ObserveLogin("invalid")
			RespondUnauthorized(ctx, "invalid_credentials", user.ErrInvalidCredentials.Error())
			return
		}
		h.prom.ObserveLogin("error")
		h.respondStoreError(ctx, err, "Could not log in")
		return
	}

	err = h.hasher.Compare(hash, req.Password)

	if err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			h.prom.ObserveLogin("invalid")
			RespondUnauthorized(ctx, "invalid_credentials", user.ErrInvalidCredentials.Error())
			return
		}
		h.prom.ObserveLogin("error")
		h.log.ErrorContext(ctx.Request.Context(), "compare password hash", "user_id", u.ID, "err", err)
		RespondInternal(ctx, "Could not log in")
		return
	}

	h.prom.ObserveLogin("ok")

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Mentors(ctx *gin.Context) {
	key := cache.MentorsKey()

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)

	defer cancel()

	if resp, ok := h.cachedList(cctx, key); ok {
		respondWithETag(ctx, listETag(resp.Items), resp)
		return
	}

	items, err := h.store.ListByRoles(cctx, user.MentorRoles)

	if err != nil {
		h.respondStoreError(ctx, err, "Could not list mentors")
		return
	}

	resp := usersListResponse{Items: items, Count: len(items)}

	if h.cache != nil {
		if b, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(cctx, key, b); err != nil {
				h.log.WarnContext(cctx, "cache set failed", "key", key, "err", err)
			}
		}
	}

	respondWithETag(ctx, listETag(resp.Items), resp)
}

func (h *UsersHandler) cachedList(ctx context.Context, key string) (usersListResponse, bool) {
	if h.cache == nil {
		return usersListResponse{}, false
	}

	b, ok, err := h.cache.Get(ctx, key)

	if err != nil {
		h.prom.ObserveCache("mentors", "error")
		h.log.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		return usersListResponse{}, false
	}

	if !ok {
		h.prom.ObserveCache("mentors", "miss")
		return usersListResponse{}, false
	}

	var resp usersListResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		h.prom.ObserveCache("mentors", "error")
		return usersListResponse{}, false
	}

	h.prom.ObserveCache("mentors", "hit")
	return resp, true
}

func (h *UsersHandler) invalidateMentors(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, cache.MentorsKey()); err != nil {
		h.log.WarnContext(ctx, "cache invalidation failed", "err", err)
	}
}

func (h *UsersHandler) respondStoreError(ctx *gin.Context, err error, message string) {
	if errors.Is(err, user.ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		h.log.WarnContext(ctx.Request.Context(), "user store unavailable", "err", err)
		RespondUnavailable(ctx, "User store is unavailable, try again later")
		return
	}

	h.log.ErrorContext(ctx.Request.Context(), message, "err", err)
	RespondInternal(ctx, message)
}

// rejectedRoleLabel names the role of a rejected registration for metrics.
// Shape failures stop before defaults are applied, so the role is only known
// when every violation came from the policy stage.
func rejectedRoleLabel(verr *user.ValidationError) string {
	if verr.Has(user.KindMalformedField) || verr.Role == "" {
		return "unknown"
	}
	return string(verr.Role)
}

func isMentorRole(r user.Role) bool {
	for _, m := range user.MentorRoles {
		if m == r {
			return true
		}
	}
	return false
}
