package jobs

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
	"chatstore/internal/repositories"
	"chatstore/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	ownerKey  = "27820001111"
	secondKey = "27820002222"
)

var wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

type sleeps struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func (s *sleeps) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.calls...)
}

func seedStore(t *testing.T, store *repositories.Store) *models.Merchant {
	t.Helper()
	ctx := context.Background()
	m := &models.Merchant{
		OwnerKey:    ownerKey,
		TradingName: "Joe's Grill",
		Status:      models.MerchantActive,
		Handle:      "joesgrill",
		AdminHandle: "joesgrill_admin",
	}
	m.ApplyDefaultHours()
	require.NoError(t, store.Merchants.Create(ctx, m))
	require.NoError(t, store.Owners.Activate(ctx, m.ID, ownerKey))
	return m
}

func staleOrder(t *testing.T, store *repositories.Store, m *models.Merchant, status models.OrderStatus, age time.Duration, alerts int) *models.Order {
	t.Helper()
	o := &models.Order{MerchantID: m.ID, CustomerKey: "27825550101", Total: 50, Status: status, AlertCount: alerts}
	require.NoError(t, store.Orders.Create(context.Background(), o))
	store.Orders.(*memory.Orders).SetCreatedAt(o.ID, wednesday.Add(-age))
	return o
}

var ordersCfg = config.OrdersConfig{
	StaleThreshold: 10 * time.Minute,
	MaxAlerts:      2,
	AlertDelay:     500 * time.Millisecond,
}

func TestScheduler_SkipsWhileLocked(t *testing.T) {
	ctx := context.Background()
	lk := locker.NewLocal()
	s := NewScheduler(lk)

	unlock, ok, err := lk.TryLock(ctx, "job:stale-orders")
	require.NoError(t, err)
	require.True(t, ok)

	calls := 0
	fn := func(context.Context) error { calls++; return nil }
	assert.False(t, s.run(ctx, "stale-orders", fn))

	unlock()
	assert.True(t, s.run(ctx, "stale-orders", fn))
	assert.Equal(t, 1, calls)
}

func TestScheduler_EveryStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(locker.NewLocal())

	ran := make(chan struct{}, 1)
	s.Every(ctx, "tick", time.Millisecond, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	cancel()
	s.Wait()
}

func TestGuardedSweeper_SharesTheScheduledLock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	m := seedStore(t, store)
	staleOrder(t, store, m, models.OrderPending, 25*time.Minute, 0)

	lk := locker.NewLocal()
	monitor := NewStaleOrderMonitor(store, rec, ordersCfg).
		WithClock(func() time.Time { return wednesday }).
		WithSleep((&sleeps{}).sleep)
	sweeper := NewGuardedSweeper(NewScheduler(lk), monitor)

	unlock, ok, err := lk.TryLock(ctx, "job:"+StaleSweepJob)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = sweeper.Sweep(ctx)
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.Empty(t, rec.To(ownerKey), "no alert while a scheduled sweep holds the lock")

	unlock()
	report, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 1, Alerted: 1}, report)
	assert.Len(t, rec.To(ownerKey), 1)
}

func TestSweep_AlertsStaleOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	m := seedStore(t, store)

	old := staleOrder(t, store, m, models.OrderPending, 25*time.Minute, 0)
	paid := staleOrder(t, store, m, models.OrderPaid, 12*time.Minute, 1)
	staleOrder(t, store, m, models.OrderPending, 5*time.Minute, 0)
	staleOrder(t, store, m, models.OrderReady, time.Hour, 0)
	staleOrder(t, store, m, models.OrderPending, time.Hour, 2)

	sl := &sleeps{}
	monitor := NewStaleOrderMonitor(store, rec, ordersCfg).
		WithClock(func() time.Time { return wednesday }).
		WithSleep(sl.sleep)

	report, err := monitor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 2, Alerted: 2, Failed: 0}, report)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, sl.recorded())

	msgs := rec.To(ownerKey)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, "#"+old.Ref)
	assert.Contains(t, msgs[0].Text, "25 min")
	assert.Equal(t, []string{"kitchen:view:" + old.ID, "kitchen:ready:" + old.ID}, msgs[0].ButtonIDs())
	assert.Contains(t, msgs[1].Text, "Reminder")

	got, err := store.Orders.Get(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AlertCount)

	report, err = monitor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked, "only the order below max alerts is checked again")
}

func TestSweep_FailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	m := seedStore(t, store)

	other := &models.Merchant{OwnerKey: secondKey, Status: models.MerchantActive, Handle: "bbq", AdminHandle: "bbq_admin"}
	require.NoError(t, store.Merchants.Create(ctx, other))
	require.NoError(t, store.Owners.Activate(ctx, other.ID, secondKey))
	rec.FailFor(secondKey)

	failing := staleOrder(t, store, other, models.OrderPending, 40*time.Minute, 0)
	ok := staleOrder(t, store, m, models.OrderPending, 20*time.Minute, 0)

	monitor := NewStaleOrderMonitor(store, rec, ordersCfg).
		WithClock(func() time.Time { return wednesday }).
		WithSleep((&sleeps{}).sleep)

	report, err := monitor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 2, Alerted: 1, Failed: 1}, report)

	got, err := store.Orders.Get(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AlertCount, "a failed alert is retried on the next sweep")

	got, err = store.Orders.Get(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AlertCount)
}

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) SendText(ctx context.Context, to, text string) error {
	return m.Called(to, text).Error(0)
}

func (m *mockChannel) SendButtons(ctx context.Context, to, text string, buttons []channel.Button) error {
	return m.Called(to, text, buttons).Error(0)
}

func (m *mockChannel) SendList(ctx context.Context, to, text, label string, sections []channel.Section) error {
	return m.Called(to, text, label, sections).Error(0)
}

func (m *mockChannel) MarkRead(ctx context.Context, messageID string) error {
	return m.Called(messageID).Error(0)
}

func TestSweep_AlertsEveryActiveOwner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := seedStore(t, store)
	require.NoError(t, store.Owners.Activate(ctx, m.ID, secondKey))
	staleOrder(t, store, m, models.OrderPending, 15*time.Minute, 0)

	ch := new(mockChannel)
	ch.On("SendButtons", ownerKey, mock.Anything, mock.Anything).Return(channeltest.ErrDeliveryFailed).Once()
	ch.On("SendButtons", secondKey, mock.Anything, mock.Anything).Return(nil).Once()

	monitor := NewStaleOrderMonitor(store, ch, ordersCfg).WithClock(func() time.Time { return wednesday })
	report, err := monitor.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Alerted, "one delivered owner alert is enough")
	ch.AssertExpectations(t)
}

func seedCustomers(t *testing.T, store *repositories.Store, m *models.Merchant, n int) []string {
	t.Helper()
	customers := store.Customers.(*memory.Customers)
	var keys []string
	for i := 0; i < n; i++ {
		key := "2782555" + string(rune('0'+i/10)) + string(rune('0'+i%10)) + "00"
		customers.Put(models.MerchantCustomer{
			MerchantID:        m.ID,
			CustomerKey:       key,
			OptIn:             true,
			LastInteractionAt: wednesday.Add(-time.Duration(i) * time.Hour),
		})
		keys = append(keys, key)
	}
	return keys
}

var broadcastCfg = config.BroadcastConfig{
	BatchSize:    2,
	MessageDelay: time.Second,
	BatchDelay:   30 * time.Second,
}

func TestBroadcast_CountsAndPacing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	m := seedStore(t, store)

	keys := seedCustomers(t, store, m, 5)
	customers := store.Customers.(*memory.Customers)
	customers.Put(models.MerchantCustomer{MerchantID: m.ID, CustomerKey: "1234", OptIn: true, LastInteractionAt: wednesday.Add(-48 * time.Hour)})
	customers.Put(models.MerchantCustomer{MerchantID: m.ID, CustomerKey: "27825559999", OptIn: false, LastInteractionAt: wednesday})
	rec.FailFor(keys[3])

	sl := &sleeps{}
	d := NewBroadcastDispatcher(store, rec, locker.NewLocal(), broadcastCfg).
		WithClock(func() time.Time { return wednesday }).
		WithSleep(sl.sleep)

	res, err := d.Broadcast(ctx, m.ID, "Half price burgers today!")
	require.NoError(t, err)
	assert.Equal(t, BroadcastResult{Sent: 4, Skipped: 1, Failed: 1}, res)
	assert.Equal(t, 6, res.Total())

	assert.Equal(t, []time.Duration{time.Second, 30 * time.Second, time.Second, 30 * time.Second}, sl.recorded())

	first, ok := rec.Last(keys[0])
	require.True(t, ok)
	assert.Contains(t, first.Text, "Half price burgers today!")
	assert.Contains(t, first.Text, "Reply STOP to stop receiving messages from Joe's Grill.")
	assert.Empty(t, rec.To("27825559999"))

	opted, err := store.Customers.ListOptedIn(ctx, m.ID)
	require.NoError(t, err)
	for _, c := range opted {
		switch c.CustomerKey {
		case keys[3], "1234":
			assert.Nil(t, c.LastBroadcastAt)
		default:
			require.NotNil(t, c.LastBroadcastAt)
			assert.Equal(t, wednesday, *c.LastBroadcastAt)
		}
	}
}

func TestBroadcast_NoFailures(t *testing.T) {
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	m := seedStore(t, store)
	seedCustomers(t, store, m, 3)

	d := NewBroadcastDispatcher(store, rec, locker.NewLocal(), broadcastCfg).WithSleep((&sleeps{}).sleep)
	res, err := d.Broadcast(context.Background(), m.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, BroadcastResult{Sent: 3}, res)
}

func TestBroadcast_SingleFlightPerStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := seedStore(t, store)
	lk := locker.NewLocal()

	unlock, ok, err := lk.TryLock(ctx, lockKey(m.ID))
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	d := NewBroadcastDispatcher(store, channeltest.NewRecorder(), lk, broadcastCfg)
	_, err = d.Broadcast(ctx, m.ID, "hello")
	assert.ErrorIs(t, err, ErrBroadcastRunning)
	assert.ErrorIs(t, d.Start(ctx, m, ownerKey, "hello"), ErrBroadcastRunning)
}

func TestBroadcast_StartReportsToRequester(t *testing.T) {
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	m := seedStore(t, store)
	seedCustomers(t, store, m, 2)

	d := NewBroadcastDispatcher(store, rec, locker.NewLocal(), broadcastCfg).WithSleep((&sleeps{}).sleep)
	require.NoError(t, d.Start(context.Background(), m, ownerKey, "hello"))
	d.Wait()

	report, ok := rec.Last(ownerKey)
	require.True(t, ok)
	assert.Contains(t, report.Text, "Sent: 2")
	assert.Contains(t, report.Text, "Failed: 0")
}

func TestBroadcast_CancelledCountsRemainderAsFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.NewStore()
	rec := channeltest.NewRecorder()
	m := seedStore(t, store)
	seedCustomers(t, store, m, 4)

	stopAfterFirst := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	d := NewBroadcastDispatcher(store, rec, locker.NewLocal(), broadcastCfg).WithSleep(stopAfterFirst)
	res, err := d.Broadcast(ctx, m.ID, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BroadcastResult{Sent: 1, Failed: 3}, res)
}
