// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/guestgate/internal/checkin"
	"codeberg.org/oliverandrich/guestgate/internal/handlers"
	"codeberg.org/oliverandrich/guestgate/internal/i18n"
	"codeberg.org/oliverandrich/guestgate/internal/models"
	"codeberg.org/oliverandrich/guestgate/internal/repository"
	"codeberg.org/oliverandrich/guestgate/internal/testutil"
	"codeberg.org/oliverandrich/guestgate/internal/token"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "webhook-test-secret"

func init() {
	_ = i18n.Init()
}

func newHandlers(t *testing.T) (*handlers.Handlers, *repository.Repository, *token.Codec) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	codec, err := token.NewCodec("test-secret", repo)
	require.NoError(t, err)
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	gate := checkin.NewGate(repo, codec, repo, loc)
	h := handlers.New(repo, codec, gate, nil, webhookSecret)
	return h, repo, codec
}

func TestHealth(t *testing.T) {
	h := handlers.New(nil, nil, nil, nil, "")

	e := echo.New()
	c, rec := testutil.NewEchoContext(e, http.MethodGet, "/health", nil)

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateAndGetGuest(t *testing.T) {
	h, _, _ := newHandlers(t)
	e := echo.New()

	body := `{"name":"Alice","phone":"081234","category":"VIP"}`
	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/guests", strings.NewReader(body))
	require.NoError(t, h.CreateGuest(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Guest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Alice", created.Name)
	assert.Equal(t, models.CategoryVIP, created.Category)

	c, rec = testutil.NewEchoContext(e, http.MethodGet, "/", nil)
	c.SetPath("/api/guests/:id")
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(created.ID, 10))
	require.NoError(t, h.GetGuest(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateGuest_Validation(t *testing.T) {
	h, _, _ := newHandlers(t)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/guests",
		strings.NewReader(`{"phone":"081234"}`))
	require.NoError(t, h.CreateGuest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = testutil.NewEchoContext(e, http.MethodPost, "/api/guests",
		strings.NewReader(`{"name":"Bob","category":"Royalty"}`))
	require.NoError(t, h.CreateGuest(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteGuest(t *testing.T) {
	h, repo, _ := newHandlers(t)
	guest := testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	del := func(id string) *httptest.ResponseRecorder {
		c, rec := testutil.NewEchoContext(e, http.MethodDelete, "/", nil)
		c.SetPath("/api/guests/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		require.NoError(t, h.DeleteGuest(c))
		return rec
	}

	rec := del(strconv.FormatInt(guest.ID, 10))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// A second delete of the same guest reports not found.
	rec = del(strconv.FormatInt(guest.ID, 10))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGuestQR_IssuesAndKeepsToken(t *testing.T) {
	h, repo, _ := newHandlers(t)
	guest := testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	qr := func(handler func(echo.Context) error) *token.Payload {
		c, rec := testutil.NewEchoContext(e, http.MethodGet, "/", nil)
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatInt(guest.ID, 10))
		require.NoError(t, handler(c))
		require.Equal(t, http.StatusOK, rec.Code)
		var payload token.Payload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		return &payload
	}

	first := qr(h.GuestQR)
	assert.NotEmpty(t, first.Nonce)
	assert.NotEmpty(t, first.Signature)

	// A second fetch returns the same token, not a new one.
	second := qr(h.GuestQR)
	assert.Equal(t, first.Nonce, second.Nonce)

	// Reissue invalidates the previous token.
	third := qr(h.ReissueGuestQR)
	assert.NotEqual(t, first.Nonce, third.Nonce)
}

func TestScan_SuccessAndDuplicate(t *testing.T) {
	h, repo, codec := newHandlers(t)
	guest := testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	payload, err := codec.Issue(context.Background(), guest)
	require.NoError(t, err)
	qrData, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]string{"qr_data": string(qrData)})
	require.NoError(t, err)

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/scan", strings.NewReader(string(body)))
	require.NoError(t, h.Scan(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alice")

	// Successful admissions are audit-logged.
	entries, err := repo.ListAuditEntries(context.Background(), "attendance", "create")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	c, rec = testutil.NewEchoContext(e, http.MethodPost, "/api/scan", strings.NewReader(string(body)))
	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "previous_check_in")
}

func TestScan_InvalidToken(t *testing.T) {
	h, _, _ := newHandlers(t)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/scan",
		strings.NewReader(`{"qr_data":"garbage"}`))
	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScan_LocalizedMessage(t *testing.T) {
	h, _, _ := newHandlers(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`{"qr_data":"garbage"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := i18n.WithLocale(req.Context(), i18n.MatchLanguage("id"))
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "tidak valid")
}

func TestManualCheckIn(t *testing.T) {
	h, repo, _ := newHandlers(t)
	guest := testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	body := `{"guest_id":` + strconv.FormatInt(guest.ID, 10) + `,"source":"Front desk"}`
	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/api/attendance", strings.NewReader(body))
	require.NoError(t, h.CreateManualCheckIn(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Same day again conflicts.
	c, rec = testutil.NewEchoContext(e, http.MethodPost, "/api/attendance", strings.NewReader(body))
	require.NoError(t, h.CreateManualCheckIn(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = testutil.NewEchoContext(e, http.MethodPost, "/api/attendance",
		strings.NewReader(`{"guest_id":999}`))
	require.NoError(t, h.CreateManualCheckIn(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCorrectAttendanceStatus_WritesAudit(t *testing.T) {
	h, repo, _ := newHandlers(t)
	guest := testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	att, _, err := repo.CreateCheckIn(context.Background(), guest.ID, "2025-06-14", time.Now().UTC(), "Manual", "")
	require.NoError(t, err)

	c, rec := testutil.NewEchoContext(e, http.MethodPatch, "/",
		strings.NewReader(`{"status":"not_present"}`))
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(att.ID, 10))
	require.NoError(t, h.CorrectAttendanceStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := repo.ListAuditEntries(context.Background(), "attendance", "status_correction")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Invalid status values are rejected.
	c, rec = testutil.NewEchoContext(e, http.MethodPatch, "/",
		strings.NewReader(`{"status":"maybe"}`))
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(att.ID, 10))
	require.NoError(t, h.CorrectAttendanceStatus(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryOutbox(t *testing.T) {
	h, repo, _ := newHandlers(t)
	guest := testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	msg, err := repo.EnqueueOutbox(context.Background(), &models.OutboxMessage{
		GuestID: guest.ID, Channel: models.ChannelMessenger, Address: "081234", Message: "hi",
	})
	require.NoError(t, err)

	// Pending entries cannot be requeued.
	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(msg.ID, 10))
	require.NoError(t, h.RetryOutbox(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, repo.MarkOutboxFailed(context.Background(), msg.ID, "boom"))

	c, rec = testutil.NewEchoContext(e, http.MethodPost, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(msg.ID, 10))
	require.NoError(t, h.RetryOutbox(c))
	require.Equal(t, http.StatusOK, rec.Code)

	requeued, err := repo.GetOutboxByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxPending, requeued.Status)
}

func TestTemplateToggle(t *testing.T) {
	h, repo, _ := newHandlers(t)
	e := echo.New()

	tmpl, err := repo.CreateTemplate(context.Background(), &models.MessageTemplate{
		Name: "Short", Body: "Thanks {nama}!", IsEnabled: false,
	})
	require.NoError(t, err)

	c, rec := testutil.NewEchoContext(e, http.MethodPatch, "/",
		strings.NewReader(`{"is_enabled":true}`))
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(tmpl.ID, 10))
	require.NoError(t, h.ToggleTemplate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	current, err := repo.EnabledTemplate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, current.ID)
}

func TestMessagingStatus_Unconfigured(t *testing.T) {
	h, _, _ := newHandlers(t)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodGet, "/api/messaging/status", nil)
	require.NoError(t, h.MessagingStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"configured":false`)

	c, rec = testutil.NewEchoContext(e, http.MethodPost, "/api/messaging/initialize", nil)
	require.NoError(t, h.InitializeMessaging(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c, rec = testutil.NewEchoContext(e, http.MethodGet, "/api/messaging/pairing-code", nil)
	require.NoError(t, h.MessagingPairingCode(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSendGuestMessage_Enqueues(t *testing.T) {
	h, repo, _ := newHandlers(t)
	guest := testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/",
		strings.NewReader(`{"message":"see you soon"}`))
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(guest.ID, 10))
	require.NoError(t, h.SendGuestMessage(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	pending, err := repo.LeasePendingOutbox(context.Background(), models.ChannelMessenger, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "see you soon", pending[0].Message)
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook(t *testing.T) {
	h, repo, _ := newHandlers(t)
	testutil.NewTestGuest(t, repo, "Alice", "081234")
	e := echo.New()

	body := []byte(`{"phone":"081234"}`)

	webhook := func(payload []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/checkin", strings.NewReader(string(payload)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if signature != "" {
			req.Header.Set("X-Webhook-Signature", signature)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, h.Webhook(e.NewContext(req, rec)))
		return rec
	}

	// Missing or wrong signature is rejected before any processing.
	assert.Equal(t, http.StatusUnauthorized, webhook(body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, webhook(body, "deadbeef").Code)

	// A correctly signed request checks the guest in.
	rec := webhook(body, signWebhook(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alice")

	// Unknown phone without a name is rejected; with a name it creates a
	// walk-in guest.
	unknown := []byte(`{"phone":"089999"}`)
	assert.Equal(t, http.StatusNotFound, webhook(unknown, signWebhook(unknown)).Code)

	walkIn := []byte(`{"phone":"089999","name":"Walk In"}`)
	assert.Equal(t, http.StatusOK, webhook(walkIn, signWebhook(walkIn)).Code)
}
