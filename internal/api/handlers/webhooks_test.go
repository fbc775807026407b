package handlers_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/agentops/internal/api/handlers"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/internal/meetings"
	"github.com/hugh/agentops/internal/testutil"
	"github.com/hugh/agentops/internal/webhooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "webhook-secret"

func setupWebhookTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	// no queue: deliveries are applied inline
	svc := webhooks.NewService(tc.DB, testWebhookSecret, nil, meetings.NewService(tc.DB, tc.Logger), tc.Logger)
	handler := handlers.NewWebhookHandler(svc, tc.Logger)

	r := chi.NewRouter()
	r.Post("/api/v1/webhooks/meetings", handler.Receive)
	r.Post("/api/v1/webhooks/{event}", handler.Receive)
	return r, tc
}

func signedRequest(path string, body []byte, signature string) *http.Request {
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(webhooks.SignatureHeader, signature)
	}
	return req
}

func TestWebhookHandler_Signature(t *testing.T) {
	router, tc := setupWebhookTestRouter(t)
	defer tc.Cleanup()

	meeting := testutil.CreateTestMeeting(t, tc.DB, tc.Org.ID, tc.User.ID)
	body := []byte(fmt.Sprintf(`{"event":"meeting_bot_joined","meetingId":"%s"}`, meeting.ID))

	t.Run("missing signature", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, signedRequest("/api/v1/webhooks/meetings", body, ""))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("wrong signature", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, signedRequest("/api/v1/webhooks/meetings", body, webhooks.Sign([]byte("other-secret"), body)))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)

		// rejected deliveries are kept but never applied
		var rejected models.WebhookEvent
		require.NoError(t, tc.DB.Where("signature_valid = ?", false).First(&rejected).Error)
		assert.Nil(t, rejected.ProcessedAt)

		var m models.Meeting
		require.NoError(t, tc.DB.First(&m, "id = ?", meeting.ID).Error)
		assert.Equal(t, models.BotStatusNone, m.BotStatus)
	})

	t.Run("valid signature", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, signedRequest("/api/v1/webhooks/meetings", body, webhooks.Sign([]byte(testWebhookSecret), body)))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var ack map[string]any
		testutil.ParseJSONResponse(t, rr, &ack)
		assert.Equal(t, true, ack["received"])
		assert.NotEmpty(t, ack["id"])

		var m models.Meeting
		require.NoError(t, tc.DB.First(&m, "id = ?", meeting.ID).Error)
		assert.Equal(t, models.BotStatusJoined, m.BotStatus)
	})
}

func TestWebhookHandler_TranscriptByPath(t *testing.T) {
	router, tc := setupWebhookTestRouter(t)
	defer tc.Cleanup()

	meeting := testutil.CreateTestMeeting(t, tc.DB, tc.Org.ID, tc.User.ID)
	body := []byte(fmt.Sprintf(`{"meetingId":"%s","segments":[`+
		`{"speaker":"Ana","text":"Let's ship on Friday.","startMs":0,"endMs":2500},`+
		`{"speaker":"Ben","text":"I'll update the changelog.","startMs":2600,"endMs":4200}]}`, meeting.ID))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedRequest("/api/v1/webhooks/"+webhooks.EventTranscriptReady, body, webhooks.Sign([]byte(testWebhookSecret), body)))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var m models.Meeting
	require.NoError(t, tc.DB.First(&m, "id = ?", meeting.ID).Error)
	assert.True(t, m.TranscriptReady)

	var count int64
	require.NoError(t, tc.DB.Model(&models.TranscriptSegment{}).Where("meeting_id = ?", meeting.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestWebhookHandler_MissingEvent(t *testing.T) {
	router, tc := setupWebhookTestRouter(t)
	defer tc.Cleanup()

	body := []byte(`{"meetingId":"00000000-0000-0000-0000-000000000000"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, signedRequest("/api/v1/webhooks/meetings", body, webhooks.Sign([]byte(testWebhookSecret), body)))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
