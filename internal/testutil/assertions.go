package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertNoPasswordHash verifies that a raw response body never leaks the
// password hash column in any field.
func AssertNoPasswordHash(t *testing.T, body []byte) {
	t.Helper()
	assert.NotContains(t, string(body), "password_hash", "response leaks password_hash")
	assert.NotContains(t, string(body), "$2a$", "response leaks a bcrypt digest")
}
