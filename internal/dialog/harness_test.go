package dialog

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatstore/internal/channel"
	"chatstore/internal/channel/channeltest"
	"chatstore/internal/config"
	"chatstore/internal/locker"
	"chatstore/internal/models"
	"chatstore/internal/orders"
	"chatstore/internal/repositories"
	"chatstore/internal/repositories/memory"
	"chatstore/internal/session"

	"github.com/stretchr/testify/require"
)

const (
	adminKey    = "27830009999"
	ownerKey    = "27820001111"
	customerKey = "27825550101"
	strangerKey = "27840004444"
)

// 2026-10-14 is a Wednesday.
var wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

type startCall struct {
	merchantID  string
	requestedBy string
	message     string
}

type fakeStarter struct {
	mu    sync.Mutex
	calls []startCall
	err   error
}

func (f *fakeStarter) Start(ctx context.Context, merchant *models.Merchant, requestedBy, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, startCall{merchant.ID, requestedBy, message})
	return nil
}

type harness struct {
	t       *testing.T
	store   *repositories.Store
	rec     *channeltest.Recorder
	starter *fakeStarter
	router  *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	starter := &fakeStarter{}
	clock := func() time.Time { return wednesday }
	platform := config.PlatformConfig{
		Name:          "ChatStore",
		AdminNumbers:  []string{"+27 83 000 9999"},
		FeePercent:    7,
		PayoutDay:     "Friday",
		DefaultLocale: "en",
	}
	om := orders.NewManager(store, rec, platform).WithClock(clock)
	router := NewRouter(store, session.NewStore(store.Sessions, nil), locker.NewLocal(), rec, om, starter, platform).WithClock(clock)
	return &harness{t: t, store: store, rec: rec, starter: starter, router: router}
}

func (h *harness) route(ev channel.InboundEvent) channeltest.Message {
	h.t.Helper()
	h.router.Route(context.Background(), ev)
	msg, ok := h.rec.Last(ev.From)
	require.True(h.t, ok, "no reply to %s", ev.From)
	return msg
}

// send delivers a text message and returns the reply.
func (h *harness) send(from, text string) channeltest.Message {
	h.t.Helper()
	return h.route(channel.InboundEvent{MessageID: "wamid." + text, From: from, Type: channel.TypeText, Text: text})
}

// tap delivers a button press and returns the reply.
func (h *harness) tap(from, id string) channeltest.Message {
	h.t.Helper()
	return h.route(channel.InboundEvent{From: from, Type: channel.TypeInteractive, ButtonReplyID: id})
}

func (h *harness) session(key string) *models.Session {
	h.t.Helper()
	s, err := h.store.Sessions.Get(context.Background(), key)
	require.NoError(h.t, err)
	return s
}

// activeStore seeds a live store owned by ownerKey with one product.
func (h *harness) activeStore() (*models.Merchant, *models.Product) {
	h.t.Helper()
	ctx := context.Background()
	m := &models.Merchant{
		OwnerKey:           ownerKey,
		TradingName:        "Joe's Grill",
		LegalName:          "Joe's Grill (Pty) Ltd",
		RegistrationNumber: "2020/123456/07",
		BankName:           "FNB",
		BankAccount:        "62012345678",
		Status:             models.MerchantActive,
		Handle:             "joesgrill",
		AdminHandle:        "joesgrill_admin",
	}
	m.ApplyDefaultHours()
	require.NoError(h.t, h.store.Merchants.Create(ctx, m))
	require.NoError(h.t, h.store.Owners.Activate(ctx, m.ID, ownerKey))

	p := &models.Product{MerchantID: m.ID, Name: "Burger", Price: 42.50, InStock: true, Status: models.ProductActive}
	require.NoError(h.t, h.store.Products.Create(ctx, p))
	return m, p
}
