package quota

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentup-app/fluentup/internal/auth"
	"github.com/fluentup-app/fluentup/internal/config"
)

type handlerFixture struct {
	handler *Handler
	auth    *auth.Service
	token   string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	authSvc, err := auth.NewService(config.AuthConfig{
		TokenSecret: "test-secret-at-least-32-characters-long",
		TokenTTL:    time.Hour,
		Credentials: `{"alice":"pw"}`,
		CookieName:  "fluentup_token",
	})
	require.NoError(t, err)

	token, _, err := authSvc.Login("alice", "pw")
	require.NoError(t, err)

	svc := NewService(NewStore(nil), testQuotaConfig(), nil)
	return &handlerFixture{
		handler: NewHandler(svc),
		auth:    authSvc,
		token:   token,
	}
}

func (f *handlerFixture) do(t *testing.T, h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1/usage", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr := httptest.NewRecorder()
	auth.Middleware(f.auth)(h).ServeHTTP(rr, req)
	return rr
}

func TestHandler_GetUsage(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, f.handler.GetUsage, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp UsageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "alice", resp.Usage.SafeID)
	assert.Equal(t, Limit(170), resp.Limits.Listening)
	assert.Equal(t, 17, resp.SectionCount)
	assert.Equal(t, 10, resp.PerSectionLimits[CategoryListening])
	assert.Equal(t, ModeMemory, resp.Storage)
	assert.Equal(t, Limit(170), resp.Remaining.Listening)
}

func TestHandler_IncrementUsage(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, f.handler.IncrementUsage, http.MethodPost, `{"type":"listening","amount":3}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp UsageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, Count(3), resp.Usage.ListeningUsed)
	assert.Equal(t, Limit(167), resp.Remaining.Listening)
}

func TestHandler_IncrementUsageDefaultsAmountToOne(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, f.handler.IncrementUsage, http.MethodPost, `{"type":"translation"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp UsageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, Count(1), resp.Usage.TranslationUsed)
}

func TestHandler_IncrementUsageOverLimit(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, f.handler.IncrementUsage, http.MethodPost, `{"type":"listening","amount":170}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, f.handler.IncrementUsage, http.MethodPost, `{"type":"listening","amount":1}`)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	var resp ExceededResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Equal(t, CategoryListening, resp.LimitExceeded.Type)
	assert.Equal(t, Limit(170), resp.LimitExceeded.Limit)
	assert.Equal(t, 170, resp.LimitExceeded.Used)
	assert.NotEmpty(t, resp.Error)
	// The snapshot still reflects the pre-increment state.
	assert.Equal(t, Count(170), resp.Usage.ListeningUsed)
}

func TestHandler_IncrementUsageBadRequests(t *testing.T) {
	f := newHandlerFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing type", `{"amount":1}`},
		{"unknown category", `{"type":"grammar"}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, f.handler.IncrementUsage, http.MethodPost, tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandler_IncrementUsageWithoutClaims(t *testing.T) {
	f := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/usage", strings.NewReader(`{"type":"listening"}`))
	rr := httptest.NewRecorder()
	f.handler.IncrementUsage(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandler_AdminListUsage(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, f.handler.IncrementUsage, http.MethodPost, `{"type":"listening","amount":4}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, f.handler.ListUsage, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp AdminListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "alice", resp.Items[0].SafeID)
	assert.Equal(t, Limit(166), resp.Items[0].Remaining.Listening)
}

func TestHandler_AdminAction(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, f.handler.IncrementUsage, http.MethodPost, `{"type":"listening","amount":4}`)
	require.Equal(t, http.StatusOK, rr.Code)

	t.Run("get", func(t *testing.T) {
		rr := f.do(t, f.handler.AdminAction, http.MethodPost, `{"action":"get","userId":"alice"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp UsageResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, Count(4), resp.Usage.ListeningUsed)
	})

	t.Run("reset", func(t *testing.T) {
		rr := f.do(t, f.handler.AdminAction, http.MethodPost, `{"action":"reset","userId":"alice"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp UsageResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, Count(0), resp.Usage.ListeningUsed)
		assert.NotNil(t, resp.Usage.ResetAt)
	})

	t.Run("delete", func(t *testing.T) {
		rr := f.do(t, f.handler.AdminAction, http.MethodPost, `{"action":"delete","userId":"alice"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"deleted":"alice"`)
	})

	t.Run("missing action", func(t *testing.T) {
		rr := f.do(t, f.handler.AdminAction, http.MethodPost, `{"userId":"alice"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "action is required")
	})

	t.Run("missing userId", func(t *testing.T) {
		rr := f.do(t, f.handler.AdminAction, http.MethodPost, `{"action":"reset"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "userId is required")
	})

	t.Run("unsupported action", func(t *testing.T) {
		rr := f.do(t, f.handler.AdminAction, http.MethodPost, `{"action":"explode","userId":"alice"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "unsupported action: explode")
	})
}
