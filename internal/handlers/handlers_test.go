package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chatstore/internal/channel"
	"chatstore/internal/config"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/handlers"
	"chatstore/internal/jobs"
	"chatstore/internal/middleware"
	"chatstore/internal/models"
	"chatstore/internal/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	opsSecret   = "ops-secret"
	appSecret   = "app-secret"
	verifyToken = "verify-me"
)

const textPayload = `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[
	{"id":"wamid.1","from":"27825550101","type":"text","text":{"body":"hi"}},
	{"id":"wamid.2","from":"27825550101","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"shop:orders"}}}
]}}]}]}`

type MockOps struct {
	mock.Mock
}

func (m *MockOps) MarkPaid(ctx context.Context, orderID string) (*models.Order, bool, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Bool(1), args.Error(2)
}

func (m *MockOps) Sweep(ctx context.Context) (jobs.SweepReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(jobs.SweepReport), args.Error(1)
}

func (m *MockOps) Broadcast(ctx context.Context, merchantID, message string) (jobs.BroadcastResult, error) {
	args := m.Called(ctx, merchantID, message)
	return args.Get(0).(jobs.BroadcastResult), args.Error(1)
}

type collector struct {
	mu     sync.Mutex
	events []channel.InboundEvent
	err    error
}

func (c *collector) Accept(_ context.Context, ev channel.InboundEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func newApp(t *testing.T, sink handlers.EventSink, ops *MockOps, secret string, checks map[string]handlers.Check) *fiber.App {
	t.Helper()
	app := fiber.New()
	routes.SetupRoutes(app, routes.Handlers{
		Webhook:      handlers.NewWebhookHandler(config.WhatsAppConfig{VerifyToken: verifyToken, AppSecret: appSecret}, sink),
		Health:       handlers.NewHealthHandler(checks),
		Ops:          handlers.NewOpsHandler(ops, ops, ops),
		OpsJWTSecret: secret,
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	} else {
		body["raw"] = string(raw)
	}
	return resp.StatusCode, body
}

func opsRequest(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	token, err := middleware.MintOpsToken(opsSecret, "alice", time.Hour, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWebhook_Verify(t *testing.T) {
	app := newApp(t, &collector{}, &MockOps{}, opsSecret, nil)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "42", body["raw"])

	status, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", nil))
	assert.Equal(t, http.StatusForbidden, status)
}

func TestWebhook_ReceiveHandsEventsToSink(t *testing.T) {
	sink := &collector{}
	app := newApp(t, sink, &MockOps{}, opsSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload))
	req.Header.Set("X-Hub-Signature-256", channel.Sign(appSecret, []byte(textPayload)))
	status, _ := do(t, app, req)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, sink.events, 2)
	assert.Equal(t, "hi", sink.events[0].Input())
	assert.Equal(t, "shop:orders", sink.events[1].Input())
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	sink := &collector{}
	app := newApp(t, sink, &MockOps{}, opsSecret, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload))
	req.Header.Set("X-Hub-Signature-256", channel.Sign("other", []byte(textPayload)))
	status, _ := do(t, app, req)

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Empty(t, sink.events)
}

func TestWebhook_MalformedBodyAndSinkFailure(t *testing.T) {
	sink := &collector{}
	app := newApp(t, sink, &MockOps{}, opsSecret, nil)

	bad := `{"entry":`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(bad))
	req.Header.Set("X-Hub-Signature-256", channel.Sign(appSecret, []byte(bad)))
	status, _ := do(t, app, req)
	assert.Equal(t, http.StatusBadRequest, status)

	sink.err = errors.New("broker down")
	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload))
	req.Header.Set("X-Hub-Signature-256", channel.Sign(appSecret, []byte(textPayload)))
	status, _ = do(t, app, req)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestInbox_RoutesOffTheRequest(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	inbox := handlers.NewInbox(context.Background(), func(_ context.Context, ev channel.InboundEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.MessageID)
	})

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, inbox.Accept(context.Background(), channel.InboundEvent{MessageID: id}))
	}
	inbox.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	app := newApp(t, &collector{}, &MockOps{}, opsSecret, map[string]handlers.Check{"database": ok})
	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	app = newApp(t, &collector{}, &MockOps{}, opsSecret, map[string]handlers.Check{"database": ok, "redis": down})
	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "down", body["services"].(map[string]any)["redis"])
}

func TestOps_RequiresToken(t *testing.T) {
	ops := &MockOps{}
	app := newApp(t, &collector{}, ops, opsSecret, nil)

	status, _ := do(t, app, httptest.NewRequest(http.MethodPost, "/api/ops/sweeps/stale-orders", nil))
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodPost, "/api/ops/sweeps/stale-orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	status, _ = do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)

	disabled := newApp(t, &collector{}, ops, "", nil)
	status, _ = do(t, disabled, opsRequest(t, http.MethodPost, "/api/ops/sweeps/stale-orders", ""))
	assert.Equal(t, http.StatusServiceUnavailable, status)

	ops.AssertNotCalled(t, "Sweep", mock.Anything)
}

func TestOps_MarkPaid(t *testing.T) {
	ops := &MockOps{}
	order := &models.Order{ID: "o1", Ref: "A1B2C3", MerchantID: "m1", Status: models.OrderPaid, Total: 85}
	ops.On("MarkPaid", mock.Anything, "o1").Return(order, true, nil).Once()
	ops.On("MarkPaid", mock.Anything, "missing").Return(nil, false, apperrors.NotFound("ORDER_NOT_FOUND", "We couldn't find that order.")).Once()
	app := newApp(t, &collector{}, ops, opsSecret, nil)

	status, body := do(t, app, opsRequest(t, http.MethodPost, "/api/ops/orders/o1/paid", ""))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Order marked paid", body["message"])
	assert.Equal(t, "PAID", body["data"].(map[string]any)["status"])

	status, body = do(t, app, opsRequest(t, http.MethodPost, "/api/ops/orders/missing/paid", ""))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "We couldn't find that order.", body["error"])

	ops.AssertExpectations(t)
}

func TestOps_Sweep(t *testing.T) {
	ops := &MockOps{}
	ops.On("Sweep", mock.Anything).Return(jobs.SweepReport{Checked: 3, Alerted: 2, Failed: 1}, nil)
	app := newApp(t, &collector{}, ops, opsSecret, nil)

	status, body := do(t, app, opsRequest(t, http.MethodPost, "/api/ops/sweeps/stale-orders", ""))

	assert.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(3), data["checked"])
	assert.Equal(t, float64(2), data["alerted"])
	assert.Equal(t, float64(1), data["failed"])
}

func TestOps_SweepWhileScheduledRunIsActive(t *testing.T) {
	ops := &MockOps{}
	ops.On("Sweep", mock.Anything).Return(jobs.SweepReport{}, jobs.ErrJobRunning)
	app := newApp(t, &collector{}, ops, opsSecret, nil)

	status, body := do(t, app, opsRequest(t, http.MethodPost, "/api/ops/sweeps/stale-orders", ""))

	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "already running")
}

func TestOps_Broadcast(t *testing.T) {
	ops := &MockOps{}
	ops.On("Broadcast", mock.Anything, "m1", "Fresh bread today").Return(jobs.BroadcastResult{Sent: 4, Skipped: 1}, nil).Once()
	ops.On("Broadcast", mock.Anything, "m2", "Again").Return(jobs.BroadcastResult{}, jobs.ErrBroadcastRunning).Once()
	app := newApp(t, &collector{}, ops, opsSecret, nil)

	status, body := do(t, app, opsRequest(t, http.MethodPost, "/api/ops/merchants/m1/broadcasts", `{"message":"  Fresh bread today "}`))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), body["data"].(map[string]any)["sent"])

	status, _ = do(t, app, opsRequest(t, http.MethodPost, "/api/ops/merchants/m2/broadcasts", `{"message":"Again"}`))
	assert.Equal(t, http.StatusConflict, status)

	status, _ = do(t, app, opsRequest(t, http.MethodPost, "/api/ops/merchants/m1/broadcasts", `{"message":""}`))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, opsRequest(t, http.MethodPost, "/api/ops/merchants/m1/broadcasts", `{"message":"`+strings.Repeat("x", 901)+`"}`))
	assert.Equal(t, http.StatusBadRequest, status)

	ops.AssertExpectations(t)
}
