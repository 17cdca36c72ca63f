package dialog

import (
	"context"
	"strings"
	"testing"

	"chatstore/internal/channel"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/jobs"
	"chatstore/internal/models"
	"chatstore/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buttonWith(t *testing.T, ids []string, prefix string) string {
	t.Helper()
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			return id
		}
	}
	t.Fatalf("no button with prefix %q in %v", prefix, ids)
	return ""
}

func TestAdminInvite_OnboardingToLive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reply := h.send(adminKey, "admin")
	assert.Equal(t, []string{"admin:invite", "admin:revoke", "admin:stores"}, reply.ButtonIDs())

	h.tap(adminKey, "admin:invite")
	reply = h.send(adminKey, "Joe's Grill")
	assert.Contains(t, reply.Text, "phone number for Joe's Grill")

	reply = h.send(adminKey, "12")
	assert.Equal(t, validation.ErrInvalidPhone.Message, reply.Text)
	assert.Equal(t, models.StepInvitePhone, h.session(adminKey).Step.Kind)

	reply = h.send(adminKey, "+27 82 000 1111")
	assert.Contains(t, reply.Text, "Created @joesgrill for +27820001111")
	assert.Contains(t, reply.Text, "@joesgrill_admin")
	assert.True(t, h.session(adminKey).Step.IsIdle())

	invite, ok := h.rec.Last(ownerKey)
	require.True(t, ok)
	accept := buttonWith(t, invite.ButtonIDs(), "invite:accept:")

	reply = h.tap(ownerKey, accept)
	assert.Contains(t, reply.Text, "You now manage @joesgrill.")
	assert.Contains(t, reply.Text, "Store setup (1 of 5)")

	reply = h.send(ownerKey, "Joe's Grill")
	assert.Contains(t, reply.Text, "Store setup (2 of 5)")
	assert.Contains(t, reply.Text, "legal name")

	h.send(ownerKey, "Joe's Grill (Pty) Ltd")
	h.send(ownerKey, "2020/123456/07")
	reply = h.send(ownerKey, "FNB")
	assert.Contains(t, reply.Text, "bank account number")

	reply = h.send(ownerKey, "acc 123456")
	assert.Equal(t, ErrInvalidAccount.Message, reply.Text)

	reply = h.send(ownerKey, "6201 2345 678")
	assert.Contains(t, reply.Text, "Joe's Grill is live! Customers can find you at @joesgrill.")
	assert.True(t, h.session(ownerKey).Step.IsIdle())

	m, err := h.store.Merchants.GetByHandle(ctx, "joesgrill")
	require.NoError(t, err)
	assert.Equal(t, models.MerchantActive, m.Status)
	assert.Equal(t, "62012345678", m.BankAccount)
	assert.Equal(t, "08:00", m.WeekdayOpen)
}

func TestAdminInvite_InterruptedOnboardingResumes(t *testing.T) {
	h := newHarness(t)
	h.tap(adminKey, "admin:invite")
	h.send(adminKey, "Joe's Grill")
	h.send(adminKey, "27820001111")
	invite, _ := h.rec.Last(ownerKey)
	h.tap(ownerKey, buttonWith(t, invite.ButtonIDs(), "invite:accept:"))
	h.send(ownerKey, "Joe's Grill")

	reply := h.tap(ownerKey, "inventory:add")
	assert.Contains(t, reply.Text, "Store setup (2 of 5)")
	assert.Equal(t, models.StepOnboardingField, h.session(ownerKey).Step.Kind)
}

func TestAdminInvite_HandleCollision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Merchants.Create(ctx, &models.Merchant{
		OwnerKey: strangerKey, Status: models.MerchantActive, Handle: "bbqplace", AdminHandle: "bbqplace_admin",
	}))

	h.tap(adminKey, "admin:invite")
	h.send(adminKey, "BBQ Place")
	reply := h.send(adminKey, "27820001111")
	assert.Contains(t, reply.Text, "Created @bbqplace2")

	m, err := h.store.Merchants.GetByHandle(ctx, "bbqplace2")
	require.NoError(t, err)
	assert.Equal(t, "bbqplace2_admin", m.AdminHandle)
	assert.Equal(t, models.MerchantOnboarding, m.Status)
	assert.Equal(t, "27820001111", m.OwnerKey)
}

func TestAdminInvite_ExplicitHandleAndReuse(t *testing.T) {
	h := newHarness(t)
	h.tap(adminKey, "admin:invite")
	h.send(adminKey, "Joe's Grill | @grill")
	reply := h.send(adminKey, "27820001111")
	assert.Contains(t, reply.Text, "Created @grill")

	h.tap(adminKey, "admin:invite")
	h.send(adminKey, "Something Else")
	reply = h.send(adminKey, "27820001111")
	assert.Contains(t, reply.Text, "already has a store waiting: @grill")
}

func TestAdmin_NonAdminIsDenied(t *testing.T) {
	h := newHarness(t)
	reply := h.send(strangerKey, "admin")
	assert.Equal(t, denialText, reply.Text)

	reply = h.tap(strangerKey, "admin:invite")
	assert.Equal(t, denialText, reply.Text)
	assert.True(t, h.session(strangerKey).Step.IsIdle())
}

func TestAdmin_Revoke(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, _ := h.activeStore()
	_, err := h.store.Invites.Refresh(ctx, m.ID, strangerKey, ownerKey)
	require.NoError(t, err)

	h.tap(adminKey, "admin:revoke")
	reply := h.send(adminKey, "@nobody_admin")
	assert.Equal(t, ErrUnknownAdminName.Message, reply.Text)

	reply = h.send(adminKey, "@joesgrill_admin")
	assert.Contains(t, reply.Text, "Revoked @joesgrill: 1 owners removed, 1 invites withdrawn.")

	owners, err := h.store.Owners.ListActiveByMerchant(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestInvite_OnlyForInvitedPhone(t *testing.T) {
	h := newHarness(t)
	m, _ := h.activeStore()
	inv, err := h.store.Invites.Refresh(context.Background(), m.ID, customerKey, ownerKey)
	require.NoError(t, err)

	reply := h.tap(strangerKey, "invite:accept:"+inv.ID)
	assert.Equal(t, denialText, reply.Text)

	h.tap(customerKey, "invite:decline:"+inv.ID)
	reply = h.tap(customerKey, "invite:accept:"+inv.ID)
	assert.Equal(t, ErrInviteUsed.Message, reply.Text)
}

func TestInventory_AddProductWizard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, _ := h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "inventory:add")
	reply := h.send(ownerKey, "Chips")
	assert.Contains(t, reply.Text, "How much does Chips cost?")
	draftID := h.session(ownerKey).Step.Ref
	require.NotEmpty(t, draftID)

	reply = h.send(ownerKey, "abc")
	assert.Equal(t, validation.ErrInvalidPrice.Message, reply.Text)
	assert.Equal(t, []string{"nav:cancel"}, reply.ButtonIDs())
	assert.Equal(t, models.AwaitingPrice(draftID), h.session(ownerKey).Step)

	h.send(ownerKey, "45.50")
	assert.Equal(t, models.AwaitingImage(draftID), h.session(ownerKey).Step)

	reply = h.route(channel.InboundEvent{From: ownerKey, Type: channel.TypeImage, Image: &channel.Attachment{ID: "media-1", MimeType: "image/jpeg"}})
	assert.Contains(t, reply.Text, "Preview")
	assert.Equal(t, []string{"inventory:publish:" + draftID, "nav:cancel"}, reply.ButtonIDs())

	reply = h.send(ownerKey, "looks good")
	assert.Equal(t, ErrChooseAction.Message, reply.Text)

	reply = h.tap(ownerKey, "inventory:publish:"+draftID)
	assert.Contains(t, reply.Text, "Chips is live")
	assert.True(t, h.session(ownerKey).Step.IsIdle())

	p, err := h.store.Products.Get(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductActive, p.Status)
	assert.Equal(t, 45.50, p.Price)
	assert.Equal(t, "media-1", p.ImageRef)
	assert.Equal(t, m.ID, p.MerchantID)
}

func TestInventory_CancelDeletesDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "inventory:add")
	h.send(ownerKey, "Chips")
	draftID := h.session(ownerKey).Step.Ref
	h.send(ownerKey, "20")
	h.send(ownerKey, "skip")
	assert.Equal(t, models.ConfirmPreview(draftID), h.session(ownerKey).Step)

	reply := h.send(ownerKey, "cancel")
	assert.Contains(t, reply.Text, "Cancelled.")
	assert.True(t, h.session(ownerKey).Step.IsIdle())

	_, err := h.store.Products.Get(ctx, draftID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestInventory_EditPriceOfDeletedProductClearsStep(t *testing.T) {
	h := newHarness(t)
	_, p := h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "inventory:price:"+p.ID)
	require.NoError(t, h.store.Products.Delete(context.Background(), p.ID))

	reply := h.send(ownerKey, "50")
	assert.Contains(t, reply.Text, ErrStepTargetGone.Message)
	assert.True(t, h.session(ownerKey).Step.IsIdle())
}

func TestInventory_StepOnAnotherStoresProductIsCleared(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, p := h.activeStore()
	h.send(ownerKey, "sell")
	h.tap(ownerKey, "inventory:price:"+p.ID)
	require.Equal(t, models.EditingPrice(p.ID), h.session(ownerKey).Step)

	second := &models.Merchant{
		OwnerKey:    ownerKey,
		TradingName: "Bob's BBQ",
		Status:      models.MerchantActive,
		Handle:      "bobsbbq",
		AdminHandle: "bobsbbq_admin",
	}
	second.ApplyDefaultHours()
	require.NoError(t, h.store.Merchants.Create(ctx, second))
	require.NoError(t, h.store.Owners.Activate(ctx, second.ID, ownerKey))

	// removed from the first store, the owner now manages only the second
	_, err := h.store.Owners.Deactivate(ctx, first.ID, ownerKey)
	require.NoError(t, err)

	reply := h.send(ownerKey, "50")
	assert.Equal(t, denialText, reply.Text)
	assert.True(t, h.session(ownerKey).Step.IsIdle())

	got, err := h.store.Products.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 42.50, got.Price)
}

func TestInventory_VariantAndStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, p := h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "inventory:variant:"+p.ID)
	reply := h.send(ownerKey, "Large / Red | 55.00")
	assert.Contains(t, reply.Text, "Added Large / Red")

	reply = h.tap(ownerKey, "inventory:stock:"+p.ID)
	assert.Contains(t, reply.Text, "out of stock")

	got, err := h.store.Products.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, 55.0, got.Variants[0].Price)
	assert.False(t, got.InStock)
}

func TestInventory_OtherStoresProductIsForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.activeStore()
	other := &models.Merchant{OwnerKey: strangerKey, Status: models.MerchantActive, Handle: "bbq", AdminHandle: "bbq_admin"}
	require.NoError(t, h.store.Merchants.Create(ctx, other))
	theirs := &models.Product{MerchantID: other.ID, Name: "Ribs", Price: 90, Status: models.ProductActive, InStock: true}
	require.NoError(t, h.store.Products.Create(ctx, theirs))
	h.send(ownerKey, "sell")

	reply := h.tap(ownerKey, "inventory:delete:"+theirs.ID)
	assert.Equal(t, denialText, reply.Text)
	reply = h.tap(ownerKey, "inventory:view:"+theirs.ID)
	assert.Equal(t, denialText, reply.Text)

	_, err := h.store.Products.Get(ctx, theirs.ID)
	assert.NoError(t, err)
}

func TestShop_OrderAndKitchenFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, p := h.activeStore()

	h.send(customerKey, "@joesgrill")
	reply := h.tap(customerKey, "shop:buy:"+p.ID)
	assert.Contains(t, reply.Text, "How many Burger")

	reply = h.send(customerKey, "99")
	assert.Equal(t, validation.ErrInvalidQuantity.Message, reply.Text)

	reply = h.send(customerKey, "2")
	assert.Contains(t, reply.Text, "placed at Joe's Grill. Total R85.00")
	assert.True(t, h.session(customerKey).Step.IsIdle())

	placed, err := h.store.Orders.ListByCustomer(ctx, customerKey, 1)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	order := placed[0]
	assert.Equal(t, m.ID, order.MerchantID)

	alert, ok := h.rec.Last(ownerKey)
	require.True(t, ok)
	assert.Equal(t, []string{"kitchen:view:" + order.ID, "kitchen:ready:" + order.ID}, alert.ButtonIDs())

	h.send(ownerKey, "sell")
	reply = h.tap(ownerKey, "kitchen:ready:"+order.ID)
	assert.Contains(t, reply.Text, "Order #"+order.Ref+" is ready")
	ready, _ := h.rec.Last(customerKey)
	assert.Contains(t, ready.Text, "is ready for pickup")

	reply = h.tap(ownerKey, "kitchen:ready:"+order.ID)
	assert.Contains(t, reply.Text, "already marked ready")

	reply = h.tap(ownerKey, "kitchen:collected:"+order.ID)
	assert.Contains(t, reply.Text, "Platform fee: R5.95")
	assert.Contains(t, reply.Text, "You earn: R79.05 (paid out on Friday)")

	notice, ok := h.rec.Last(adminKey)
	require.True(t, ok)
	assert.Contains(t, notice.Text, "Merchant earnings: R79.05")
}

func TestShop_VariantOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, p := h.activeStore()
	v := &models.ProductVariant{ProductID: p.ID, Size: "Large", Price: 55}
	require.NoError(t, h.store.Products.AddVariant(ctx, v))

	h.send(customerKey, "@joesgrill")
	reply := h.tap(customerKey, "shop:product:"+p.ID)
	assert.Equal(t, []string{"shop:buy:" + p.ID + ":" + v.ID}, reply.ButtonIDs())

	h.tap(customerKey, "shop:buy:"+p.ID+":"+v.ID)
	reply = h.send(customerKey, "1")
	assert.Contains(t, reply.Text, "Total R55.00")
}

func TestShop_QuantityWithoutStoreClearsStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, p := h.activeStore()

	h.send(customerKey, "@joesgrill")
	h.tap(customerKey, "shop:buy:"+p.ID)
	s := h.session(customerKey)
	s.Payload = nil
	require.NoError(t, h.store.Sessions.Save(ctx, s))

	h.send(customerKey, "2")
	assert.True(t, h.session(customerKey).Step.IsIdle())
}

func TestKitchen_OtherStoreIsForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, _ := h.activeStore()
	order := &models.Order{MerchantID: m.ID, CustomerKey: customerKey, Total: 10}
	require.NoError(t, h.store.Orders.Create(ctx, order))

	other := &models.Merchant{OwnerKey: strangerKey, Status: models.MerchantActive, Handle: "bbq", AdminHandle: "bbq_admin"}
	require.NoError(t, h.store.Merchants.Create(ctx, other))
	require.NoError(t, h.store.Owners.Activate(ctx, other.ID, strangerKey))
	h.send(strangerKey, "sell")

	reply := h.tap(strangerKey, "kitchen:ready:"+order.ID)
	assert.Equal(t, denialText, reply.Text)

	got, err := h.store.Orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
}

func TestSettings_HoursWizard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, _ := h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "settings:hours")
	reply := h.send(ownerKey, "9am till late")
	assert.Equal(t, validation.ErrInvalidHours.Message, reply.Text)

	h.send(ownerKey, "07:30 - 18:00")
	reply = h.send(ownerKey, "closed")
	assert.Equal(t, []string{"settings:sunday:open", "settings:sunday:closed", "nav:cancel"}, reply.ButtonIDs())

	reply = h.send(ownerKey, "maybe")
	assert.Equal(t, ErrInvalidSunday.Message, reply.Text)

	reply = h.tap(ownerKey, "settings:sunday:open")
	assert.Contains(t, reply.Text, "Trading hours updated.")
	assert.True(t, h.session(ownerKey).Step.IsIdle())

	got, err := h.store.Merchants.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "07:30", got.WeekdayOpen)
	assert.Equal(t, "18:00", got.WeekdayClose)
	assert.Empty(t, got.SaturdayOpen)
	assert.True(t, got.SundayOpen)
}

func TestSettings_HoursCancelKeepsOldHours(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, _ := h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "settings:hours")
	h.send(ownerKey, "07:30 - 18:00")
	h.tap(ownerKey, "nav:cancel")

	got, err := h.store.Merchants.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "08:00", got.WeekdayOpen)
}

func TestSettings_ToggleAndLocale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, p := h.activeStore()
	h.send(ownerKey, "sell")

	reply := h.tap(ownerKey, "settings:toggle")
	assert.Contains(t, reply.Text, "Store closed")
	reply = h.tap(ownerKey, "settings:locale:af")
	assert.Contains(t, reply.Text, "Afrikaans")
	reply = h.tap(ownerKey, "settings:locale:fr")
	assert.Equal(t, ErrUnknownLocale.Message, reply.Text)

	got, err := h.store.Merchants.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.ManualClosed)
	assert.Equal(t, "af", got.Locale)

	h.send(customerKey, "@joesgrill")
	h.tap(customerKey, "shop:buy:"+p.ID)
	reply = h.send(customerKey, "1")
	assert.Contains(t, reply.Text, "closed right now")
	assert.True(t, h.session(customerKey).Step.IsIdle())
}

func TestSettings_Owners(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m, _ := h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "settings:add_owner")
	reply := h.send(ownerKey, "+27 84 000 4444")
	assert.Contains(t, reply.Text, "Invite sent to +27840004444")

	invite, ok := h.rec.Last(strangerKey)
	require.True(t, ok)
	h.tap(strangerKey, buttonWith(t, invite.ButtonIDs(), "invite:accept:"))
	owners, err := h.store.Owners.ListActiveByMerchant(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, owners, 2)

	reply = h.tap(ownerKey, "settings:remove_owner:"+ownerKey)
	assert.Equal(t, ErrRemoveSelf.Message, reply.Text)

	reply = h.tap(ownerKey, "settings:remove_owner:"+strangerKey)
	assert.Contains(t, reply.Text, "can no longer manage")
	owners, err = h.store.Owners.ListActiveByMerchant(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, owners, 1)
}

func TestBroadcast_ComposePreviewSend(t *testing.T) {
	h := newHarness(t)
	m, _ := h.activeStore()
	h.send(customerKey, "@joesgrill")
	h.send(ownerKey, "sell")

	reply := h.tap(ownerKey, "broadcast:send")
	assert.Equal(t, ErrNothingToSend.Message, reply.Text)

	h.tap(ownerKey, "broadcast:compose")
	reply = h.send(ownerKey, "Half price burgers today!")
	assert.Contains(t, reply.Text, "Preview (1 customers)")
	assert.Equal(t, []string{"broadcast:send", "broadcast:cancel"}, reply.ButtonIDs())

	reply = h.tap(ownerKey, "broadcast:send")
	assert.Contains(t, reply.Text, "Broadcast started")
	assert.True(t, h.session(ownerKey).Step.IsIdle())
	require.Len(t, h.starter.calls, 1)
	assert.Equal(t, startCall{m.ID, ownerKey, "Half price burgers today!"}, h.starter.calls[0])
}

func TestBroadcast_TypedCommandShapeIsMessageBody(t *testing.T) {
	h := newHarness(t)
	h.activeStore()
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "broadcast:compose")
	reply := h.send(ownerKey, "shop:now")

	assert.Contains(t, reply.Text, "shop:now")
	assert.Contains(t, reply.Text, "Preview")
	assert.Equal(t, models.StepBroadcastConfirm, h.session(ownerKey).Step.Kind)
}

func TestBroadcast_AlreadyRunning(t *testing.T) {
	h := newHarness(t)
	h.activeStore()
	h.starter.err = jobs.ErrBroadcastRunning
	h.send(ownerKey, "sell")

	h.tap(ownerKey, "broadcast:compose")
	h.send(ownerKey, "hello")
	reply := h.tap(ownerKey, "broadcast:send")
	assert.Equal(t, jobs.ErrBroadcastRunning.Message, reply.Text)
	assert.Equal(t, models.StepBroadcastConfirm, h.session(ownerKey).Step.Kind)
}
