package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/younginnovators/internal/cache"
	"github.com/geocoder89/younginnovators/internal/domain/user"
	"github.com/geocoder89/younginnovators/internal/http/handlers"
	"github.com/geocoder89/younginnovators/internal/observability"
	"github.com/geocoder89/younginnovators/internal/repo/memory"
	"github.com/geocoder89/younginnovators/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake implementation of handlers.UserStore

type fakeUsersRepo struct {
	createFn      func(ctx context.Context, nu user.NewUser) (user.User, error)
	getByEmailFn  func(ctx context.Context, email string) (user.User, error)
	credentialsFn func(ctx context.Context, email string) (user.User, string, error)
	listByRolesFn func(ctx context.Context, roles []user.Role) ([]user.User, error)
}

func (f *fakeUsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(ctx, nu)
	}
	return user.User{}, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsersRepo) GetCredentials(ctx context.Context, email string) (user.User, string, error) {
	if f.credentialsFn != nil {
		return f.credentialsFn(ctx, email)
	}
	return user.User{}, "", user.ErrNotFound
}

func (f *fakeUsersRepo) ListByRoles(ctx context.Context, roles []user.Role) ([]user.User, error) {
	if f.listByRolesFn != nil {
		return f.listByRolesFn(ctx, roles)
	}
	return []user.User{}, nil
}

// plainHasher keeps handler tests fast; bcrypt is covered in the security package.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "h:" + plain, nil }

func (plainHasher) Compare(hash, plain string) error {
	if hash != "h:"+plain {
		return security.ErrPasswordMismatch
	}
	return nil
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Violations []user.Violation `json:"violations"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return env
}

func storedFrom(nu user.NewUser) user.User {
	return user.User{
		ID:       uuid.NewString(),
		Profile:  nu.Profile,
		JoinedAt: time.Now().UTC(),
	}
}

const validStudent = `{
	"email": "s1@uni.ac.ke",
	"password": "Abcdef1!",
	"full_name": "Ada Student",
	"student_id": "S-1",
	"department": "CS"
}`

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantCode       string
		wantKinds      []user.Kind
	}{
		{
			name: "success",
			body: validStudent,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, nu user.NewUser) (user.User, error) {
					if nu.PasswordHash != "h:Abcdef1!" {
						return user.User{}, fmt.Errorf("unexpected hash %q", nu.PasswordHash)
					}
					return storedFrom(nu), nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "policy violations are all reported",
			body: `{"email":"m@yahoo.com","password":"short","full_name":"M","department":"CS"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, nu user.NewUser) (user.User, error) {
					return user.User{}, errors.New("store must not be called")
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "validation_failed",
			wantKinds:      []user.Kind{user.KindWeakPassword, user.KindInvalidEmailDomain, user.KindMissingStudentID},
		},
		{
			name:           "missing required fields are malformed_field violations",
			body:           `{"password":"Abcdef1!"}`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "validation_failed",
			wantKinds:      []user.Kind{user.KindMalformedField},
		},
		{
			name:           "unparseable body",
			body:           `{"email":`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "invalid_request",
		},
		{
			name:           "wrong json type",
			body:           `{"email":"s1@uni.ac.ke","points":"ten"}`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "validation_failed",
			wantKinds:      []user.Kind{user.KindMalformedField},
		},
		{
			name:           "password longer than bcrypt accepts",
			body:           `{"email":"s1@uni.ac.ke","password":"Abcdef1!` + strings.Repeat("x", 70) + `","full_name":"Ada","student_id":"S1","department":"CS"}`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "validation_failed",
			wantKinds:      []user.Kind{user.KindMalformedField},
		},
		{
			name:           "blank full name",
			body:           `{"email":"s1@uni.ac.ke","password":"Abcdef1!","full_name":"   ","student_id":"S1","department":"CS"}`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "validation_failed",
			wantKinds:      []user.Kind{user.KindMalformedField},
		},
		{
			name: "duplicate email",
			body: validStudent,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, nu user.NewUser) (user.User, error) {
					return user.User{}, user.ErrDuplicateUser
				}
			},
			wantStatusCode: http.StatusConflict,
			wantCode:       "duplicate_user",
		},
		{
			name: "store unavailable",
			body: validStudent,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, nu user.NewUser) (user.User, error) {
					return user.User{}, fmt.Errorf("create user: %w: dial tcp: refused", user.ErrStoreUnavailable)
				}
			},
			wantStatusCode: http.StatusServiceUnavailable,
			wantCode:       "store_unavailable",
		},
		{
			name: "repo_error",
			body: validStudent,
			repoSetUp: func(f *fakeUsersRepo) {
				f.createFn = func(ctx context.Context, nu user.NewUser) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
			wantCode:       "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewUsersHandler(repo, plainHasher{})

			r := setupRouter(http.MethodPost, "/register", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantCode == "" {
				return
			}

			env := decodeError(t, w)
			if env.Error.Code != tt.wantCode {
				t.Fatalf("got code %q, want %q", env.Error.Code, tt.wantCode)
			}

			got := map[user.Kind]bool{}
			for _, v := range env.Error.Details.Violations {
				got[v.Kind] = true
			}
			for _, k := range tt.wantKinds {
				if !got[k] {
					t.Fatalf("missing violation kind %q in %+v", k, env.Error.Details.Violations)
				}
			}
		})
	}
}

func TestRegisterHandler_ResponseOmitsPassword(t *testing.T) {
	repo := &fakeUsersRepo{
		createFn: func(ctx context.Context, nu user.NewUser) (user.User, error) {
			return storedFrom(nu), nil
		},
	}

	h := handlers.NewUsersHandler(repo, plainHasher{})
	r := setupRouter(http.MethodPost, "/register", h.Register)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(validStudent))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d body=%s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, k := range []string{"password", "password_hash", "PasswordHash"} {
		if _, ok := body[k]; ok {
			t.Fatalf("response leaks %q: %s", k, w.Body.String())
		}
	}
	if body["role"] != "student" || body["points"] != float64(0) || body["is_verified"] != false {
		t.Fatalf("defaults not applied: %s", w.Body.String())
	}
}

func TestMeHandler(t *testing.T) {
	stored := user.User{ID: "u-1", Profile: user.Profile{Email: "m@gmail.com", Role: user.RoleMentor}}

	tests := []struct {
		name           string
		query          string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
	}{
		{
			name:  "found",
			query: "?email=M@gmail.com",
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return stored, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "missing email",
			query:          "",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "not found",
			query:          "?email=nobody@gmail.com",
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:  "store timeout",
			query: "?email=m@gmail.com",
			repoSetUp: func(f *fakeUsersRepo) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{}, fmt.Errorf("get user: %w", context.DeadlineExceeded)
				}
			},
			wantStatusCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewUsersHandler(repo, plainHasher{})
			r := setupRouter(http.MethodGet, "/me", h.Me)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	stored := user.User{ID: "u-1", Profile: user.Profile{Email: "s1@uni.ac.ke", Role: user.RoleStudent}}

	tests := []struct {
		name           string
		body           string
		repoSetUp      func(*fakeUsersRepo)
		wantStatusCode int
		wantCode       string
	}{
		{
			name: "success",
			body: `{"email":"s1@uni.ac.ke","password":"Abcdef1!"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.credentialsFn = func(ctx context.Context, email string) (user.User, string, error) {
					return stored, "h:Abcdef1!", nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "wrong password",
			body: `{"email":"s1@uni.ac.ke","password":"nope"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.credentialsFn = func(ctx context.Context, email string) (user.User, string, error) {
					return stored, "h:Abcdef1!", nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
			wantCode:       "invalid_credentials",
		},
		{
			name:           "unknown email",
			body:           `{"email":"ghost@uni.ac.ke","password":"Abcdef1!"}`,
			wantStatusCode: http.StatusUnauthorized,
			wantCode:       "invalid_credentials",
		},
		{
			name: "password longer than bcrypt accepts",
			body: `{"email":"s1@uni.ac.ke","password":"Abcdef1!` + strings.Repeat("x", 70) + `"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.credentialsFn = func(ctx context.Context, email string) (user.User, string, error) {
					return user.User{}, "", errors.New("store must not be called")
				}
			},
			wantStatusCode: http.StatusUnauthorized,
			wantCode:       "invalid_credentials",
		},
		{
			name:           "malformed body",
			body:           `{"email":"not-an-email"}`,
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "invalid_request",
		},
		{
			name: "store unavailable",
			body: `{"email":"s1@uni.ac.ke","password":"Abcdef1!"}`,
			repoSetUp: func(f *fakeUsersRepo) {
				f.credentialsFn = func(ctx context.Context, email string) (user.User, string, error) {
					return user.User{}, "", user.ErrStoreUnavailable
				}
			},
			wantStatusCode: http.StatusServiceUnavailable,
			wantCode:       "store_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeUsersRepo{}
			if tt.repoSetUp != nil {
				tt.repoSetUp(repo)
			}

			h := handlers.NewUsersHandler(repo, plainHasher{})
			r := setupRouter(http.MethodPost, "/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tt.wantCode != "" {
				if env := decodeError(t, w); env.Error.Code != tt.wantCode {
					t.Fatalf("got code %q, want %q", env.Error.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestRegisterHandler_RejectedRoleLabel(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRole string
	}{
		{
			name:     "policy failure with default role",
			body:     `{"email":"s1@gmail.com","password":"Abcdef1!","full_name":"Ada","student_id":"S1","department":"CS"}`,
			wantRole: "student",
		},
		{
			name:     "policy failure for mentor",
			body:     `{"email":"m@example.org","password":"Abcdef1!","full_name":"Ada","department":"CS","role":"mentor"}`,
			wantRole: "mentor",
		},
		{
			name:     "shape failure",
			body:     `{"email":"m@example.org","password":"Abcdef1!","full_name":"Ada","department":"CS","role":"admin"}`,
			wantRole: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prom := observability.NewProm(prometheus.NewRegistry())
			h := handlers.NewUsersHandler(&fakeUsersRepo{}, plainHasher{}, handlers.WithMetrics(prom))
			r := setupRouter(http.MethodPost, "/register", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
			}
			if got := testutil.ToFloat64(prom.RegistrationsTotal.WithLabelValues(tt.wantRole, "invalid")); got != 1 {
				t.Fatalf("expected one invalid registration labelled %q, got %v", tt.wantRole, got)
			}
		})
	}
}

func TestOverlongPassword_WithBcrypt(t *testing.T) {
	repo := memory.NewUsersRepo()
	h := handlers.NewUsersHandler(repo, security.NewPasswordHasher(bcrypt.MinCost))

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	long := "Abcdef1!" + strings.Repeat("x", 70)

	w := post("/register", `{"email":"s1@uni.ac.ke","password":"`+long+`","full_name":"Ada","student_id":"S1","department":"CS"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("register: got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	env := decodeError(t, w)
	if env.Error.Code != "validation_failed" || len(env.Error.Details.Violations) != 1 {
		t.Fatalf("register: unexpected error %+v", env.Error)
	}
	if v := env.Error.Details.Violations[0]; v.Field != "password" || v.Reason != user.ReasonMaxBytes {
		t.Fatalf("register: unexpected violation %+v", v)
	}

	if _, err := repo.GetByEmail(context.Background(), "s1@uni.ac.ke"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("rejected registration must not be stored, got %v", err)
	}

	w = post("/register", `{"email":"s1@uni.ac.ke","password":"Abcdef1!","full_name":"Ada","student_id":"S1","department":"CS"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("register: got status %d, body=%s", w.Code, w.Body.String())
	}

	w = post("/login", `{"email":"s1@uni.ac.ke","password":"`+long+`"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login: got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
	if env := decodeError(t, w); env.Error.Code != "invalid_credentials" {
		t.Fatalf("login: got code %q", env.Error.Code)
	}
}

func TestMentorsHandler_CacheHitAndInvalidation(t *testing.T) {
	calls := 0
	mentors := []user.User{{ID: "m-1", Profile: user.Profile{Email: "m@gmail.com", Role: user.RoleMentor}}}

	repo := &fakeUsersRepo{
		listByRolesFn: func(ctx context.Context, roles []user.Role) ([]user.User, error) {
			calls++
			return mentors, nil
		},
		createFn: func(ctx context.Context, nu user.NewUser) (user.User, error) {
			return storedFrom(nu), nil
		},
	}

	c := cache.NewMemory(30 * time.Second)
	h := handlers.NewUsersHandler(repo, plainHasher{}, handlers.WithCache(c))

	r := gin.New()
	r.GET("/mentors", h.Mentors)
	r.POST("/register", h.Register)

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mentors", nil))
		return w
	}

	// First request: cache miss -> repo called
	if w := get(); w.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w.Code, w.Body.String())
	}

	// Second request: cache hit -> repo should NOT be called again
	w := get()
	if w.Code != http.StatusOK {
		t.Fatalf("second call got %d body=%s", w.Code, w.Body.String())
	}
	if calls != 1 {
		t.Fatalf("expected repo calls=1, got %d", calls)
	}

	var resp struct {
		Items []user.User `json:"items"`
		Count int         `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Items[0].ID != "m-1" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	// registering a mentor drops the cached listing
	body := `{"email":"new@gmail.com","password":"Abcdef1!","full_name":"New","department":"CS","role":"mentor"}`
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body)))
	if rw.Code != http.StatusOK {
		t.Fatalf("register got %d body=%s", rw.Code, rw.Body.String())
	}

	if w := get(); w.Code != http.StatusOK {
		t.Fatalf("third call got %d", w.Code)
	}
	if calls != 2 {
		t.Fatalf("expected repo calls=2 after invalidation, got %d", calls)
	}
}

func TestMentorsHandler_ETagNotModified(t *testing.T) {
	repo := &fakeUsersRepo{
		listByRolesFn: func(ctx context.Context, roles []user.Role) ([]user.User, error) {
			return []user.User{}, nil
		},
	}

	h := handlers.NewUsersHandler(repo, plainHasher{})
	r := setupRouter(http.MethodGet, "/mentors", h.Mentors)

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/mentors", nil))

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w1.Code, w1.Body.String())
	}
	if w1.Body.String() != `{"items":[],"count":0}` {
		t.Fatalf("empty listing should be an empty array, got %s", w1.Body.String())
	}

	etag := w1.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header in first response")
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/mentors", nil)
	req2.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("second call got %d, want %d, body=%s", w2.Code, http.StatusNotModified, w2.Body.String())
	}

	if w2.Body.Len() != 0 {
		t.Fatalf("expected empty body for 304, got %q", w2.Body.String())
	}
}

func TestMentorsHandler_StoreFailure(t *testing.T) {
	repo := &fakeUsersRepo{
		listByRolesFn: func(ctx context.Context, roles []user.Role) ([]user.User, error) {
			return nil, fmt.Errorf("list: %w", user.ErrStoreUnavailable)
		},
	}

	h := handlers.NewUsersHandler(repo, plainHasher{}, handlers.WithCache(cache.NewMemory(time.Minute)))
	r := setupRouter(http.MethodGet, "/mentors", h.Mentors)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mentors", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503, body=%s", w.Code, w.Body.String())
	}
}
