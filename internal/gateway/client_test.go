package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"partner-server/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, observability.NewLogger()), server
}

func TestLogin_Success(t *testing.T) {
	var gotEmail string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/partner/login", r.URL.Path)
		assert.Equal(t, clientName, r.Header.Get("X-Client"))

		var body loginRequest
		require.NoError(t, decodeJSONBody(r, &body))
		gotEmail = body.Email

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token":     "partner-token-1",
			"expiresIn": 86400,
		})
	}))

	result, err := client.Login(context.Background(), "partner@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "partner-token-1", result.Token)
	assert.Equal(t, "partner@example.com", gotEmail)
	assert.True(t, result.ExpiresAt.After(result.IssuedAt))
}

func TestLogin_Rejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "bad credentials"})
	}))

	_, err := client.Login(context.Background(), "partner@example.com", "wrong")
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, CodeAuthentication, authErr.Code())
}

func TestLogin_EmptyToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"token": ""})
	}))

	_, err := client.Login(context.Background(), "partner@example.com", "secret")
	var authErr *AuthenticationError
	assert.ErrorAs(t, err, &authErr)
}

func TestCreateApp_Conflict(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{"message": "app name taken"})
	}))

	_, err := client.CreateApp(context.Background(), "token", "acme_support", true)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"apps": []App{{ID: "app-1"}}})
	}))

	apps, err := client.ListApps(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, apps, 1)
}

func TestWithRetry_Exhausted(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.ListApps(context.Background(), "token")
	var transient *TransientNetworkError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, maxAttempts, attempts)
}

func TestWithRetry_NoRetryOn4xx(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": "malformed"})
	}))

	_, err := client.ListApps(context.Background(), "token")
	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, 1, attempts)
}

func TestWithRetry_NoRetryOn429(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"message": "slow down"})
	}))

	_, err := client.ListApps(context.Background(), "token")
	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, 1, attempts)
}

func TestSendTemplateMessageV3_CallbackBilling(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": "Callback billing not enabled for this account",
		})
	}))

	_, err := client.SendTemplateMessageV3(context.Background(), "token", "app-1",
		"6581234567", "welcome_msg", "en", map[string]string{"1": "Ada"})
	assert.ErrorIs(t, err, ErrCallbackBillingNotEnabled)
}

func TestSendTemplateMessageV2_PositionalParams(t *testing.T) {
	var got sendTemplateV2Request
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app-1/api/v2/messages/template", r.URL.Path)
		require.NoError(t, decodeJSONBody(r, &got))
		writeJSON(w, http.StatusOK, map[string]interface{}{"messageId": "wamid.42"})
	}))

	id, err := client.SendTemplateMessageV2(context.Background(), "token", "app-1",
		"6581234567", "welcome_msg", "en", []string{"Ada", "Tuesday"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.42", id)
	assert.Equal(t, []string{"Ada", "Tuesday"}, got.Parameters)
}
