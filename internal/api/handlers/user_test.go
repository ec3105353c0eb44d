package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/drew/identity-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	CreatedAt string `json:"created_at"`
}

type registerResponse struct {
	Message string      `json:"message"`
	User    userPayload `json:"user"`
}

type loginResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    userPayload `json:"user"`
}

type profileResponse struct {
	Source string      `json:"source"`
	Data   userPayload `json:"data"`
}

type listResponse struct {
	Data  []userPayload `json:"data"`
	Count int           `json:"count"`
}

func postJSON(t *testing.T, url string, payload map[string]string) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	return resp
}

func TestUserHandler_Register(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		name           string
		request        map[string]string
		setup          func()
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "successful registration",
			request: map[string]string{
				"username":  "newuser",
				"email":     "newuser@example.com",
				"password":  "password123",
				"full_name": "New User",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result registerResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, "User created successfully", result.Message)
				assert.Equal(t, "newuser", result.User.Username)
				assert.Equal(t, "newuser@example.com", result.User.Email)
				assert.NotEmpty(t, result.User.ID)
				assert.NotEmpty(t, result.User.CreatedAt)
			},
		},
		{
			name: "missing username",
			request: map[string]string{
				"email":    "nobody@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing email",
			request: map[string]string{
				"username": "nobody",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing password",
			request: map[string]string{
				"username": "nobody",
				"email":    "nobody@example.com",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate username",
			request: map[string]string{
				"username": "existinguser",
				"email":    "unique@example.com",
				"password": "password123",
			},
			setup: func() {
				testutil.NewUserBuilder().
					WithUsername("existinguser").
					Build(t, ts.DB.DB)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "empty request body",
			request:        map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts.DB.Truncate(t)

			if tt.setup != nil {
				tt.setup()
			}

			resp := postJSON(t, ts.APIURL("/register"), tt.request)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestUserHandler_Login(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, rawPassword := testutil.NewUserBuilder().
		WithUsername("loginuser").
		WithPassword("correctpassword").
		Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "successful login",
			request: map[string]string{
				"username": user.Username,
				"password": rawPassword,
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result loginResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, "Login successful", result.Message)
				assert.NotEmpty(t, result.Token)
				assert.Equal(t, user.Username, result.User.Username)
				assert.Equal(t, user.Email, result.User.Email)

				claims, err := ts.Tokens.Validate(result.Token, time.Now())
				require.NoError(t, err)
				assert.Equal(t, user.ID.String(), claims.UserID)
			},
		},
		{
			name: "wrong password",
			request: map[string]string{
				"username": user.Username,
				"password": "wrongpassword",
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "non-existent user",
			request: map[string]string{
				"username": "nonexistent",
				"password": "anypassword",
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "missing password",
			request: map[string]string{
				"username": user.Username,
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.APIURL("/login"), tt.request)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestUserHandler_Login_IdenticalErrorForBothFailures(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, _ := testutil.NewUserBuilder().
		WithUsername("enumuser").
		WithPassword("correctpassword").
		Build(t, ts.DB.DB)

	wrongPassword := postJSON(t, ts.APIURL("/login"), map[string]string{
		"username": user.Username,
		"password": "wrongpassword",
	})
	defer wrongPassword.Body.Close()

	unknownUser := postJSON(t, ts.APIURL("/login"), map[string]string{
		"username": "no-such-user",
		"password": "wrongpassword",
	})
	defer unknownUser.Body.Close()

	assert.Equal(t, wrongPassword.StatusCode, unknownUser.StatusCode)

	firstBody, err := io.ReadAll(wrongPassword.Body)
	require.NoError(t, err)
	secondBody, err := io.ReadAll(unknownUser.Body)
	require.NoError(t, err)
	assert.Equal(t, string(firstBody), string(secondBody))
}

func TestUserHandler_GetProfile(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, _ := testutil.NewUserBuilder().
		WithUsername("profileuser").
		WithFullName("Profile User").
		Build(t, ts.DB.DB)

	t.Run("first read comes from the database", func(t *testing.T) {
		resp, err := http.Get(ts.APIURL("/" + user.ID.String()))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		testutil.AssertNoPasswordHash(t, body)

		var result profileResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.Equal(t, "database", result.Source)
		assert.Equal(t, user.ID.String(), result.Data.ID)
		assert.Equal(t, "profileuser", result.Data.Username)
	})

	t.Run("second read comes from the cache with identical data", func(t *testing.T) {
		resp, err := http.Get(ts.APIURL("/" + user.ID.String()))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result profileResponse
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, "cache", result.Source)
		assert.Equal(t, user.ID.String(), result.Data.ID)
		assert.Equal(t, "profileuser", result.Data.Username)
		assert.Equal(t, "Profile User", result.Data.FullName)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		resp, err := http.Get(ts.APIURL("/2b33dfad-7aa7-42a8-b519-3f2e80a1a5d6"))
		require.NoError(t, err)
		defer resp.Body.Close()

		testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "User not found")
	})
}

func TestUserHandler_List(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.DB.Truncate(t)

	for _, name := range []string{"user_a", "user_b", "user_c"} {
		testutil.NewUserBuilder().WithUsername(name).Build(t, ts.DB.DB)
	}

	resp, err := http.Get(ts.APIURL(""))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	testutil.AssertNoPasswordHash(t, body)

	var result listResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 3, result.Count)
	assert.Len(t, result.Data, 3)
}

func TestUserHandler_Me(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, rawPassword := testutil.NewUserBuilder().
		WithUsername("meuser").
		Build(t, ts.DB.DB)

	login := postJSON(t, ts.APIURL("/login"), map[string]string{
		"username": user.Username,
		"password": rawPassword,
	})
	defer login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	var loggedIn loginResponse
	testutil.AssertJSONResponse(t, login, &loggedIn)

	t.Run("with bearer token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.APIURL("/me"), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+loggedIn.Token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result profileResponse
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, user.ID.String(), result.Data.ID)
	})

	t.Run("without token", func(t *testing.T) {
		resp, err := http.Get(ts.APIURL("/me"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("with tampered token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.APIURL("/me"), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+loggedIn.Token+"x")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

// Exercises the register -> login -> read -> conflicting register sequence
// end to end.
func TestUserHandler_FullFlow(t *testing.T) {
	ts := testutil.NewTestServer(t)

	register := postJSON(t, ts.APIURL("/register"), map[string]string{
		"username": "alice",
		"email":    "alice@x.com",
		"password": "pw1",
	})
	defer register.Body.Close()
	require.Equal(t, http.StatusCreated, register.StatusCode)

	var created registerResponse
	testutil.AssertJSONResponse(t, register, &created)

	login := postJSON(t, ts.APIURL("/login"), map[string]string{
		"username": "alice",
		"password": "pw1",
	})
	defer login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	var loggedIn loginResponse
	testutil.AssertJSONResponse(t, login, &loggedIn)
	assert.NotEmpty(t, loggedIn.Token)

	first, err := http.Get(ts.APIURL("/" + created.User.ID))
	require.NoError(t, err)
	defer first.Body.Close()
	var firstProfile profileResponse
	testutil.AssertJSONResponse(t, first, &firstProfile)
	assert.Equal(t, "database", firstProfile.Source)

	second, err := http.Get(ts.APIURL("/" + created.User.ID))
	require.NoError(t, err)
	defer second.Body.Close()
	var secondProfile profileResponse
	testutil.AssertJSONResponse(t, second, &secondProfile)
	assert.Equal(t, "cache", secondProfile.Source)
	assert.Equal(t, firstProfile.Data, secondProfile.Data)

	conflict := postJSON(t, ts.APIURL("/register"), map[string]string{
		"username": "alice",
		"email":    "other@x.com",
		"password": "pw2",
	})
	defer conflict.Body.Close()
	assert.Equal(t, http.StatusConflict, conflict.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.BaseURL() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Status    string `json:"status"`
		Service   string `json:"service"`
		Timestamp string `json:"timestamp"`
	}
	testutil.AssertJSONResponse(t, resp, &result)
	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "identity-service", result.Service)
	assert.NotEmpty(t, result.Timestamp)
}
