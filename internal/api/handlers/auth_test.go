package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unisphere-campus/server/internal/api/problem"
	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/domain/users"
)

type stubAuthService struct {
	registerFn func(req users.RegisterRequest) (*users.Session, error)
	loginFn    func(email, password string) (*users.Session, error)
	refreshFn  func(token string) (*users.Session, error)
	logoutFn   func(access *auth.Claims, refreshToken string) error
	getUserFn  func(id int64) (*users.User, error)
	updateFn   func(actor *users.User, update users.ProfileUpdate) (*users.User, error)
}

func (s stubAuthService) Register(_ context.Context, req users.RegisterRequest) (*users.Session, error) {
	if s.registerFn == nil {
		return nil, errNotStubbed
	}
	return s.registerFn(req)
}

func (s stubAuthService) Login(_ context.Context, email, password string) (*users.Session, error) {
	if s.loginFn == nil {
		return nil, errNotStubbed
	}
	return s.loginFn(email, password)
}

func (s stubAuthService) Refresh(_ context.Context, token string) (*users.Session, error) {
	if s.refreshFn == nil {
		return nil, errNotStubbed
	}
	return s.refreshFn(token)
}

func (s stubAuthService) Logout(_ context.Context, access *auth.Claims, refreshToken string) error {
	if s.logoutFn == nil {
		return errNotStubbed
	}
	return s.logoutFn(access, refreshToken)
}

func (s stubAuthService) GetUser(_ context.Context, id int64) (*users.User, error) {
	if s.getUserFn == nil {
		return nil, errNotStubbed
	}
	return s.getUserFn(id)
}

func (s stubAuthService) UpdateProfile(_ context.Context, actor *users.User, update users.ProfileUpdate) (*users.User, error) {
	if s.updateFn == nil {
		return nil, errNotStubbed
	}
	return s.updateFn(actor, update)
}

func testSession(email string) *users.Session {
	return &users.Session{
		User: &users.User{ID: 4, FirstName: "Malee", LastName: "Srisuk", Email: email, Role: "user", IsActive: true},
		Tokens: auth.TokenPair{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "bearer",
		},
	}
}

const registerBody = `{
	"personal_info": {"first_name": "Malee", "last_name": "Srisuk"},
	"education_info": {"campus": "วิทยาเขตรังสิต"},
	"account_info": {"email": "malee@campus.test", "password": "s3cret-pass", "confirm_password": "s3cret-pass"}
}`

func TestAuthRegister(t *testing.T) {
	svc := stubAuthService{
		registerFn: func(req users.RegisterRequest) (*users.Session, error) {
			require.Equal(t, "Malee", req.PersonalInfo.FirstName)
			require.Equal(t, "วิทยาเขตรังสิต", req.EducationInfo.Campus)
			return testSession(req.AccountInfo.Email), nil
		},
	}
	res := httptest.NewRecorder()
	NewAuthHandler(svc, "test").Register(res, newRequest(http.MethodPost, "/api/v1/auth/register", registerBody, 0, ""))

	require.Equal(t, http.StatusCreated, res.Code)
	body := decodeBody[SessionResponse](t, res)
	require.Equal(t, "malee@campus.test", body.User.Email)
	require.Equal(t, "access", body.Token.AccessToken)
	require.Equal(t, "bearer", body.Token.TokenType)
}

func TestAuthRegisterErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"email taken", users.ErrEmailTaken, http.StatusConflict, problem.TypeConflict},
		{"validation", users.ValidationError{Field: "confirm_password", Message: "passwords do not match"}, http.StatusBadRequest, problem.TypeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubAuthService{registerFn: func(users.RegisterRequest) (*users.Session, error) { return nil, tc.err }}
			res := httptest.NewRecorder()
			NewAuthHandler(svc, "test").Register(res, newRequest(http.MethodPost, "/api/v1/auth/register", registerBody, 0, ""))
			requireProblem(t, res, tc.status, tc.typ)
		})
	}
}

func TestAuthLoginFailureMessages(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		detail string
	}{
		{"bad credentials", users.ErrInvalidCredentials, "Invalid email or password"},
		{"inactive", users.ErrInactive, "User account is inactive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubAuthService{loginFn: func(string, string) (*users.Session, error) { return nil, tc.err }}
			res := httptest.NewRecorder()
			NewAuthHandler(svc, "test").Login(res, newRequest(http.MethodPost, "/api/v1/auth/login",
				`{"email":"malee@campus.test","password":"wrong-pass"}`, 0, ""))

			body := requireProblem(t, res, http.StatusUnauthorized, problem.TypeUnauthorized)
			require.Equal(t, tc.detail, body.Detail)
		})
	}
}

func TestAuthLogin(t *testing.T) {
	svc := stubAuthService{
		loginFn: func(email, password string) (*users.Session, error) {
			require.Equal(t, "malee@campus.test", email)
			return testSession(email), nil
		},
	}
	h := NewAuthHandler(svc, "test")

	res := httptest.NewRecorder()
	h.Login(res, newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"malee@campus.test","password":"s3cret-pass"}`, 0, ""))
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	h.Login(res, newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"malee@campus.test"}`, 0, ""))
	requireProblem(t, res, http.StatusBadRequest, problem.TypeValidation)
}

func TestAuthRefreshRevoked(t *testing.T) {
	svc := stubAuthService{refreshFn: func(string) (*users.Session, error) { return nil, users.ErrTokenRevoked }}
	res := httptest.NewRecorder()
	NewAuthHandler(svc, "test").Refresh(res, newRequest(http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"old"}`, 0, ""))

	body := requireProblem(t, res, http.StatusUnauthorized, problem.TypeUnauthorized)
	require.Equal(t, "Could not validate credentials", body.Detail)
}

func TestAuthLogout(t *testing.T) {
	var gotRefresh string
	var gotJTI string
	svc := stubAuthService{
		logoutFn: func(access *auth.Claims, refreshToken string) error {
			gotJTI = access.ID
			gotRefresh = refreshToken
			return nil
		},
	}
	h := NewAuthHandler(svc, "test")

	res := httptest.NewRecorder()
	h.Logout(res, newRequest(http.MethodPost, "/api/v1/auth/logout", "", 4, "user"))
	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[LogoutResponse](t, res)
	require.True(t, body.Success)
	require.Equal(t, "Successfully logged out", body.Message)
	require.Equal(t, "jti-test", gotJTI)
	require.Empty(t, gotRefresh)

	res = httptest.NewRecorder()
	h.Logout(res, newRequest(http.MethodPost, "/api/v1/auth/logout", `{"refresh_token":"r1"}`, 4, "user"))
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "r1", gotRefresh)

	res = httptest.NewRecorder()
	h.Logout(res, newRequest(http.MethodPost, "/api/v1/auth/logout", "", 0, ""))
	requireProblem(t, res, http.StatusUnauthorized, problem.TypeUnauthorized)
}

func TestAuthUpdateProfile(t *testing.T) {
	svc := stubAuthService{
		getUserFn: func(id int64) (*users.User, error) {
			return &users.User{ID: id, FirstName: "Malee", Role: "user", IsActive: true}, nil
		},
		updateFn: func(actor *users.User, update users.ProfileUpdate) (*users.User, error) {
			require.Equal(t, int64(4), actor.ID)
			require.NotNil(t, update.Major)
			updated := *actor
			updated.Major = *update.Major
			return &updated, nil
		},
	}
	res := httptest.NewRecorder()
	NewAuthHandler(svc, "test").UpdateProfile(res, newRequest(http.MethodPut, "/api/v1/auth/profile", `{"major":"Computer Science"}`, 4, "user"))

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[UserResponse](t, res)
	require.Equal(t, "Computer Science", body.Major)
}

func TestAuthEducationOptions(t *testing.T) {
	res := httptest.NewRecorder()
	NewAuthHandler(stubAuthService{}, "test").EducationOptions(res, newRequest(http.MethodGet, "/api/v1/auth/education-options", "", 0, ""))

	require.Equal(t, http.StatusOK, res.Code)
	body := decodeBody[users.EducationOptions](t, res)
	require.NotEmpty(t, body.Campuses)
	require.NotEmpty(t, body.Faculties)
}
