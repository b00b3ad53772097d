package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
)

// Auth service stub: every method is replaceable, defaults fail the test
type stubAuth struct {
	t            *testing.T
	register     func(auth.RegisterParams) (models.User, error)
	login        func(email, password, userAgent string) (models.TokenPair, error)
	refresh      func(token, userAgent string) (models.TokenPair, error)
	logout       func(token string) error
	authenticate func(bearer string) (models.Principal, error)
	sessions     func(p models.Principal) ([]models.Session, error)
}

func (s *stubAuth) Register(_ context.Context, p auth.RegisterParams) (models.User, error) {
	require.NotNil(s.t, s.register, "unexpected register call")
	return s.register(p)
}

func (s *stubAuth) Login(_ context.Context, email, password, userAgent string) (models.TokenPair, error) {
	require.NotNil(s.t, s.login, "unexpected login call")
	return s.login(email, password, userAgent)
}

func (s *stubAuth) Refresh(_ context.Context, token, userAgent string) (models.TokenPair, error) {
	require.NotNil(s.t, s.refresh, "unexpected refresh call")
	return s.refresh(token, userAgent)
}

func (s *stubAuth) Logout(_ context.Context, token string) error {
	require.NotNil(s.t, s.logout, "unexpected logout call")
	return s.logout(token)
}

func (s *stubAuth) Sessions(_ context.Context, p models.Principal) ([]models.Session, error) {
	require.NotNil(s.t, s.sessions, "unexpected sessions call")
	return s.sessions(p)
}

func (s *stubAuth) Authenticate(_ context.Context, bearer string) (models.Principal, error) {
	if s.authenticate == nil {
		return models.Principal{}, apperrors.ErrAccessTokenInvalid
	}
	return s.authenticate(bearer)
}

type stubUsers struct {
	findOne  func(key string) (models.User, error)
	deleteAs func(p models.Principal, id uuid.UUID) (uuid.UUID, error)
}

func (s *stubUsers) FindOne(_ context.Context, key string, _ bool) (models.User, error) {
	return s.findOne(key)
}

func (s *stubUsers) DeleteAs(_ context.Context, p models.Principal, id uuid.UUID) (uuid.UUID, error) {
	return s.deleteAs(p, id)
}

var testPair = models.TokenPair{
	Access:  models.IssuedToken{Value: "Bearer access.jwt", ExpiresAt: time.Now().Add(15 * time.Minute)},
	Refresh: models.IssuedToken{Value: "refresh-value", ExpiresAt: time.Now().Add(24 * time.Hour).Truncate(time.Second)},
}

func startServer(t *testing.T, a *stubAuth, u *stubUsers) string {
	a.t = t
	if u == nil {
		u = &stubUsers{}
	}
	srv := httptest.NewServer(NewRouter(RouterConfig{SecureCookie: true}, a, u, logger.NewNoOpLogger()))
	t.Cleanup(srv.Close)
	return srv.URL
}

func do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, string(body)
}

func newRequest(t *testing.T, method, url, body string) *http.Request {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func Test_AuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("register ok", func(t *testing.T) {
		id := uuid.New()
		var got auth.RegisterParams
		url := startServer(t, &stubAuth{register: func(p auth.RegisterParams) (models.User, error) {
			got = p
			return models.User{ID: id, Email: p.Email, PasswordHash: "secret-hash", Roles: models.DefaultRoles}, nil
		}}, nil)

		resp, body := do(t, newRequest(t, "POST", url+"/auth/register",
			`{"email": "a@x.io", "password": "secret1", "passwordRepeat": "secret1"}`))

		require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
		require.Equal(t, auth.RegisterParams{Email: "a@x.io", Password: "secret1"}, got)
		require.Contains(t, body, id.String())
		require.Contains(t, body, `"roles":["USER"]`)
		require.NotContains(t, body, "secret-hash", "password hash must not leak")
		require.Empty(t, resp.Cookies(), "register does not log in")
	})

	t.Run("register with profile", func(t *testing.T) {
		var got auth.RegisterParams
		url := startServer(t, &stubAuth{register: func(p auth.RegisterParams) (models.User, error) {
			got = p
			return models.User{ID: uuid.New(), Email: p.Email, Profile: p.Profile, Roles: models.DefaultRoles}, nil
		}}, nil)

		resp, body := do(t, newRequest(t, "POST", url+"/auth/register",
			`{"email": "a@x.io", "password": "secret1", "passwordRepeat": "secret1", "firstname": "Alice", "imageUrl": "https://img.example.com/a.png"}`))

		require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
		require.Equal(t, "Alice", *got.Profile.FirstName)
		require.Nil(t, got.Profile.LastName, "empty field is not set")
		require.Equal(t, "https://img.example.com/a.png", *got.Profile.ImageURL)
		require.Contains(t, body, `"firstname":"Alice"`)
		require.NotContains(t, body, "lastname")
	})

	t.Run("register validation", func(t *testing.T) {
		url := startServer(t, &stubAuth{}, nil)

		for _, data := range []string{
			`{"email": "not-email", "password": "secret1", "passwordRepeat": "secret1"}`,
			`{"email": "a@x.io", "password": "short", "passwordRepeat": "short"}`,
			`{"email": "a@x.io", "password": "secret1", "passwordRepeat": "secret2"}`,
			`{"email": "a@x.io", "password": "secret1", "passwordRepeat": "secret1", "imageUrl": "not a url"}`,
			`not-json`,
		} {
			resp, body := do(t, newRequest(t, "POST", url+"/auth/register", data))
			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "request %s should be rejected. Body: %s", data, body)
		}
	})

	t.Run("register conflict", func(t *testing.T) {
		url := startServer(t, &stubAuth{register: func(auth.RegisterParams) (models.User, error) {
			return models.User{}, apperrors.ErrUsernameTaken
		}}, nil)

		resp, body := do(t, newRequest(t, "POST", url+"/auth/register",
			`{"email": "a@x.io", "username": "alice", "password": "secret1", "passwordRepeat": "secret1"}`))

		require.Equalf(t, http.StatusConflict, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "User with this username already exists"
			}`, body)
	})

	t.Run("login ok", func(t *testing.T) {
		var gotAgent string
		url := startServer(t, &stubAuth{login: func(email, password, userAgent string) (models.TokenPair, error) {
			gotAgent = userAgent
			return testPair, nil
		}}, nil)

		req := newRequest(t, "POST", url+"/auth/login", `{"email": "a@x.io", "password": "secret1"}`)
		req.Header.Set("User-Agent", "test-agent")
		resp, body := do(t, req)

		require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"accessToken": "Bearer access.jwt"}`, body)
		require.Equal(t, "test-agent", gotAgent)

		require.Len(t, resp.Cookies(), 1)
		cookie := resp.Cookies()[0]
		require.Equal(t, "refreshtoken", cookie.Name)
		require.Equal(t, "refresh-value", cookie.Value)
		require.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
		require.True(t, cookie.Secure, "refresh cookie should be Secure in production")
		require.Equal(t, "/", cookie.Path, "refresh cookie should be available on / path")
		require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		require.WithinDuration(t, testPair.Refresh.ExpiresAt, cookie.Expires, time.Second)
	})

	t.Run("login failed", func(t *testing.T) {
		url := startServer(t, &stubAuth{login: func(string, string, string) (models.TokenPair, error) {
			return models.TokenPair{}, apperrors.ErrInvalidCredentials
		}}, nil)

		resp, body := do(t, newRequest(t, "POST", url+"/auth/login", `{"email": "a@x.io", "password": "wrong"}`))

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Invalid email or password"
			}`, body)
		require.Empty(t, resp.Cookies(), "no cookies should be set on login error")
	})

	t.Run("refresh ok", func(t *testing.T) {
		var gotToken string
		url := startServer(t, &stubAuth{refresh: func(token, _ string) (models.TokenPair, error) {
			gotToken = token
			return testPair, nil
		}}, nil)

		req := newRequest(t, "GET", url+"/auth/refresh-tokens", "")
		req.AddCookie(&http.Cookie{Name: "refreshtoken", Value: "old-value"})
		resp, body := do(t, req)

		require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
		require.Equal(t, "old-value", gotToken)
		require.Len(t, resp.Cookies(), 1)
		require.Equal(t, "refresh-value", resp.Cookies()[0].Value)
	})

	t.Run("refresh without cookie", func(t *testing.T) {
		url := startServer(t, &stubAuth{}, nil)

		resp, body := do(t, newRequest(t, "GET", url+"/auth/refresh-tokens", ""))

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
	})

	t.Run("refresh used token", func(t *testing.T) {
		url := startServer(t, &stubAuth{refresh: func(string, string) (models.TokenPair, error) {
			return models.TokenPair{}, apperrors.ErrRefreshTokenNotFound
		}}, nil)

		req := newRequest(t, "GET", url+"/auth/refresh-tokens", "")
		req.AddCookie(&http.Cookie{Name: "refreshtoken", Value: "used"})
		resp, body := do(t, req)

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
		require.Empty(t, resp.Cookies())
	})

	t.Run("logout", func(t *testing.T) {
		var revoked string
		url := startServer(t, &stubAuth{logout: func(token string) error {
			revoked = token
			return nil
		}}, nil)

		req := newRequest(t, "GET", url+"/auth/logout", "")
		req.AddCookie(&http.Cookie{Name: "refreshtoken", Value: "value"})
		resp, _ := do(t, req)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "value", revoked)
		require.Len(t, resp.Cookies(), 1)
		require.Empty(t, resp.Cookies()[0].Value, "cookie should be cleared")
	})

	t.Run("logout without cookie", func(t *testing.T) {
		url := startServer(t, &stubAuth{}, nil)

		resp, _ := do(t, newRequest(t, "GET", url+"/auth/logout", ""))

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Empty(t, resp.Cookies())
	})

	t.Run("logout revocation failure still ok", func(t *testing.T) {
		url := startServer(t, &stubAuth{logout: func(string) error {
			return context.DeadlineExceeded
		}}, nil)

		req := newRequest(t, "GET", url+"/auth/logout", "")
		req.AddCookie(&http.Cookie{Name: "refreshtoken", Value: "value"})
		resp, _ := do(t, req)

		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func Test_UserHandlers(t *testing.T) {
	t.Parallel()

	owner := models.User{ID: uuid.New(), Email: "a@x.io", PasswordHash: "secret-hash", Roles: models.DefaultRoles}
	principal := models.Principal{ID: owner.ID, Email: owner.Email, Roles: owner.Roles}

	authenticated := &stubAuth{authenticate: func(bearer string) (models.Principal, error) {
		if bearer != "Bearer good" {
			return models.Principal{}, apperrors.ErrAccessTokenInvalid
		}
		return principal, nil
	}}

	users := &stubUsers{
		findOne: func(key string) (models.User, error) {
			if key == owner.Email || key == owner.ID.String() {
				return owner, nil
			}
			return models.User{}, apperrors.ErrUserNotFound
		},
		deleteAs: func(p models.Principal, id uuid.UUID) (uuid.UUID, error) {
			if !p.IsSelfOrHasRole(id, models.RoleAdmin) {
				return uuid.Nil, apperrors.ErrForbidden
			}
			if id != owner.ID {
				return uuid.Nil, apperrors.ErrUserNotFound
			}
			return id, nil
		},
	}

	withBearer := func(req *http.Request, bearer string) *http.Request {
		req.Header.Set("Authorization", bearer)
		return req
	}

	t.Run("find requires auth", func(t *testing.T) {
		url := startServer(t, authenticated, users)

		resp, _ := do(t, newRequest(t, "GET", url+"/user/a@x.io", ""))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = do(t, withBearer(newRequest(t, "GET", url+"/user/a@x.io", ""), "Bearer bad"))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("find by email and id", func(t *testing.T) {
		url := startServer(t, authenticated, users)

		for _, key := range []string{owner.Email, owner.ID.String()} {
			resp, body := do(t, withBearer(newRequest(t, "GET", url+"/user/"+key, ""), "Bearer good"))

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, owner.ID.String())
			require.NotContains(t, body, "secret-hash")
		}
	})

	t.Run("find not found", func(t *testing.T) {
		url := startServer(t, authenticated, users)

		resp, body := do(t, withBearer(newRequest(t, "GET", url+"/user/nobody@x.io", ""), "Bearer good"))

		require.Equalf(t, http.StatusNotFound, resp.StatusCode, "not expected code. Body: %s", body)
	})

	t.Run("delete self", func(t *testing.T) {
		url := startServer(t, authenticated, users)

		resp, body := do(t, withBearer(newRequest(t, "DELETE", url+"/user/"+owner.ID.String(), ""), "Bearer good"))

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `{"id": "`+owner.ID.String()+`"}`, body)
	})

	t.Run("delete other forbidden", func(t *testing.T) {
		url := startServer(t, authenticated, users)

		resp, body := do(t, withBearer(newRequest(t, "DELETE", url+"/user/"+uuid.NewString(), ""), "Bearer good"))

		require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
	})

	t.Run("sessions requires auth", func(t *testing.T) {
		url := startServer(t, &stubAuth{}, users)

		resp, _ := do(t, newRequest(t, "GET", url+"/auth/sessions", ""))

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("sessions of principal", func(t *testing.T) {
		a := &stubAuth{
			authenticate: authenticated.authenticate,
			sessions: func(p models.Principal) ([]models.Session, error) {
				require.Equal(t, principal.ID, p.ID)
				return []models.Session{{UserAgent: "curl", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}}, nil
			},
		}
		url := startServer(t, a, users)

		resp, body := do(t, withBearer(newRequest(t, "GET", url+"/auth/sessions", ""), "Bearer good"))

		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.Contains(t, body, `"userAgent":"curl"`)
		require.NotContains(t, body, "token")
	})

	t.Run("delete not uuid", func(t *testing.T) {
		url := startServer(t, authenticated, users)

		resp, _ := do(t, withBearer(newRequest(t, "DELETE", url+"/user/a@x.io", ""), "Bearer good"))

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
