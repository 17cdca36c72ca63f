// Package dialog turns inbound chat messages into domain actions. The
// Router owns the session: it loads it, hands the event to exactly one
// flow, draws the screen the flow asks for and saves the session.
package dialog

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"chatstore/internal/channel"
	"chatstore/internal/config"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/identity"
	"chatstore/internal/locker"
	"chatstore/internal/models"
	"chatstore/internal/orders"
	"chatstore/internal/repositories"
	"chatstore/internal/session"
)

// BroadcastStarter launches a broadcast in the background.
type BroadcastStarter interface {
	Start(ctx context.Context, merchant *models.Merchant, requestedBy, message string) error
}

// Turn is the state of one inbound event while it is being handled.
type Turn struct {
	Key     string
	Event   channel.InboundEvent
	Input   string
	Session *models.Session
	// Merchant is the managed store in merchant mode.
	Merchant *models.Merchant
	// Store is the store being browsed in customer mode.
	Store *models.Merchant
	Now   time.Time
}

// flow handles one command namespace and the steps that carry its name.
type flow interface {
	command(ctx context.Context, t *Turn, verb, id string) (Screen, error)
	step(ctx context.Context, t *Turn) (Screen, error)
	// cancel discards whatever the current step was building.
	cancel(ctx context.Context, t *Turn) error
}

// Namespaces that need a managed store.
var merchantNamespaces = map[string]bool{
	"onboarding": true,
	"inventory":  true,
	"kitchen":    true,
	"settings":   true,
	"broadcast":  true,
}

var (
	commandPattern = regexp.MustCompile(`^([a-z]+):([a-z_]+)(?::(.+))?$`)
	handlePattern  = regexp.MustCompile(`^@([a-z0-9_]+)$`)
	refPattern     = regexp.MustCompile(`^#([A-Z0-9]{6})$`)
)

type Router struct {
	store      *repositories.Store
	sessions   *session.Store
	locker     locker.Locker
	channel    channel.Channel
	orders     *orders.Manager
	broadcasts BroadcastStarter
	platform   config.PlatformConfig
	now        func() time.Time
	flows      map[string]flow
}

func NewRouter(
	store *repositories.Store,
	sessions *session.Store,
	lk locker.Locker,
	ch channel.Channel,
	om *orders.Manager,
	bc BroadcastStarter,
	platform config.PlatformConfig,
) *Router {
	r := &Router{
		store:      store,
		sessions:   sessions,
		locker:     lk,
		channel:    ch,
		orders:     om,
		broadcasts: bc,
		platform:   platform,
		now:        time.Now,
	}
	r.flows = map[string]flow{
		"onboarding": &onboardingFlow{r},
		"inventory":  &inventoryFlow{r},
		"kitchen":    &kitchenFlow{r},
		"settings":   &settingsFlow{r},
		"admin":      &adminFlow{r},
		"broadcast":  &broadcastFlow{r},
		"shop":       &shopFlow{r},
		"invite":     &inviteFlow{r},
	}
	return r
}

// WithClock replaces the time source.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// Route handles one inbound event. It never returns an error: failures
// end as a message to the user and a log line.
func (r *Router) Route(ctx context.Context, ev channel.InboundEvent) {
	key := identity.Normalize(ev.From)
	if key == "" {
		log.Printf("router: dropping event %s without sender", ev.MessageID)
		return
	}

	unlock, err := r.locker.Lock(ctx, key)
	if err != nil {
		log.Printf("router: lock %s: %v", key, err)
		return
	}
	defer unlock()

	defer func() {
		if p := recover(); p != nil {
			log.Printf("router: panic while handling %s: %v", key, p)
			r.apologize(ctx, key)
		}
	}()

	if ev.MessageID != "" {
		if err := r.channel.MarkRead(ctx, ev.MessageID); err != nil {
			log.Printf("router: mark read %s: %v", ev.MessageID, err)
		}
	}

	sess, err := r.sessions.Load(ctx, key)
	if err != nil {
		log.Printf("router: %s: %v", key, err)
		r.apologize(ctx, key)
		return
	}

	t := &Turn{
		Key:     key,
		Event:   ev,
		Input:   ev.Input(),
		Session: sess,
		Now:     r.now(),
	}

	screen, err := r.handle(ctx, t)
	if err != nil {
		screen = r.recover(t, err)
	}
	if err := r.render(ctx, t, screen); err != nil {
		// building the screen can hit a vanished or foreign record
		if err := r.render(ctx, t, r.recover(t, err)); err != nil {
			log.Printf("router: render for %s: %v", key, err)
			t.Session.ClearStep()
		}
	}
	if err := r.sessions.Save(ctx, t.Session); err != nil {
		log.Printf("router: %s: %v", key, err)
	}
}

func (r *Router) apologize(ctx context.Context, key string) {
	if err := r.channel.SendText(ctx, key, apologyText); err != nil {
		log.Printf("router: apology to %s: %v", key, err)
	}
}

// recover maps an error to what the user sees.
func (r *Router) recover(t *Turn, err error) Screen {
	msg := apperrors.MessageOf(err)
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		if !t.Session.Step.IsIdle() {
			return ask(msg, cancelButton)
		}
		return say(msg)
	case apperrors.KindNotFound:
		if apperrors.Is(err, ErrStepTargetGone) {
			t.Session.ClearStep()
			return show(screenHome, "").with(msg)
		}
		return ask(msg, menuButton)
	case apperrors.KindForbidden:
		return say(denialText)
	}
	log.Printf("router: %s at step %q: %v", t.Key, t.Session.Step.Kind, err)
	t.Session.ClearStep()
	return say(apologyText)
}

func (r *Router) handle(ctx context.Context, t *Turn) (Screen, error) {
	if err := r.loadContext(ctx, t); err != nil {
		return Screen{}, err
	}
	return r.dispatch(ctx, t)
}

// loadContext resolves the managed store in merchant mode and the
// browsed store in customer mode.
func (r *Router) loadContext(ctx context.Context, t *Turn) error {
	storeID := t.Session.Get(models.PayloadStore)

	if t.Session.Mode == models.ModeMerchant {
		m, err := r.managedStore(ctx, t.Key, storeID)
		if err != nil {
			return err
		}
		if m == nil {
			// access was revoked since the last message
			t.Session.Mode = models.ModeCustomer
			t.Session.ClearStep()
			t.Session.Payload = nil
			return nil
		}
		t.Merchant = m
		t.Session.Set(models.PayloadStore, m.ID)
		return nil
	}

	if storeID == "" {
		return nil
	}
	m, err := r.store.Merchants.GetByID(ctx, storeID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		t.Session.Payload = nil
		return nil
	}
	if err != nil {
		return apperrors.Dependency("load store", err)
	}
	t.Store = m
	if _, err := r.store.Customers.Touch(ctx, m.ID, t.Key, t.Now); err != nil {
		return apperrors.Dependency("touch customer", err)
	}
	return nil
}

// managedStore returns the store the user manages, preferring the one
// already selected. nil means the user owns nothing.
func (r *Router) managedStore(ctx context.Context, key, preferred string) (*models.Merchant, error) {
	owned, err := r.store.Owners.ListActiveByUser(ctx, key)
	if err != nil {
		return nil, apperrors.Dependency("list owned stores", err)
	}
	if len(owned) == 0 {
		return nil, nil
	}
	id := owned[0].MerchantID
	for _, o := range owned {
		if o.MerchantID == preferred {
			id = preferred
		}
	}
	m, err := r.store.Merchants.GetByID(ctx, id)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Dependency("load managed store", err)
	}
	return m, nil
}

// dispatch resolves the input to one handler. Fixed commands win over
// any step in progress; free text goes to the flow owning the step.
func (r *Router) dispatch(ctx context.Context, t *Turn) (Screen, error) {
	in := t.Input
	switch strings.ToLower(in) {
	case "menu", "hi", "hello":
		return r.nav(ctx, t, "menu")
	case "cancel":
		return r.nav(ctx, t, "cancel")
	case "sell":
		return r.nav(ctx, t, "sell")
	case "shop":
		return r.nav(ctx, t, "shop")
	case "stop":
		return r.setOptIn(ctx, t, false)
	case "start":
		return r.setOptIn(ctx, t, true)
	case "admin":
		return r.flows["admin"].command(ctx, t, "home", "")
	}

	// the revoke step takes an admin handle as its answer
	if m := handlePattern.FindStringSubmatch(strings.ToLower(in)); m != nil && t.Session.Step.Kind != models.StepRevokeHandle {
		return r.visitStore(ctx, t, m[1])
	}
	if m := refPattern.FindStringSubmatch(strings.ToUpper(in)); m != nil {
		return r.findOrder(ctx, t, m[1])
	}

	// typed text shaped like a command id is still step input
	if m := commandPattern.FindStringSubmatch(t.Event.ReplyID()); m != nil {
		ns, verb, id := m[1], m[2], m[3]
		if ns == "nav" {
			return r.nav(ctx, t, verb)
		}
		if f, ok := r.flows[ns]; ok {
			if merchantNamespaces[ns] {
				if t.Merchant == nil {
					return Screen{}, ErrNeedStore
				}
				if t.Merchant.Status == models.MerchantOnboarding && ns != "onboarding" {
					return r.flows["onboarding"].command(ctx, t, "resume", "")
				}
			}
			return f.command(ctx, t, verb, id)
		}
	}

	if !t.Session.Step.IsIdle() {
		ns := t.Session.Step.Flow()
		f, ok := r.flows[ns]
		if ok && (!merchantNamespaces[ns] || t.Merchant != nil) {
			return f.step(ctx, t)
		}
		t.Session.ClearStep()
	}

	if t.Merchant != nil && t.Merchant.Status == models.MerchantOnboarding {
		return r.flows["onboarding"].step(ctx, t)
	}
	if t.Store != nil {
		return show(screenStore, t.Store.ID), nil
	}
	return show(screenHome, ""), nil
}

func (r *Router) nav(ctx context.Context, t *Turn, verb string) (Screen, error) {
	switch verb {
	case "cancel":
		if t.Session.Step.IsIdle() {
			return show(screenHome, "").with("Nothing to cancel."), nil
		}
		if f, ok := r.flows[t.Session.Step.Flow()]; ok {
			if err := f.cancel(ctx, t); err != nil {
				return Screen{}, err
			}
		}
		t.Session.ClearStep()
		return show(screenHome, "").with("Cancelled."), nil
	case "sell":
		m, err := r.managedStore(ctx, t.Key, "")
		if err != nil {
			return Screen{}, err
		}
		if m == nil {
			return Screen{}, ErrNoStore
		}
		t.Session.ClearStep()
		t.Session.Mode = models.ModeMerchant
		t.Session.Payload = models.JSON{models.PayloadStore: m.ID}
		t.Merchant, t.Store = m, nil
		return show(screenHome, ""), nil
	case "shop":
		t.Session.ClearStep()
		t.Session.Mode = models.ModeCustomer
		t.Session.Payload = nil
		t.Merchant, t.Store = nil, nil
		return show(screenHome, ""), nil
	}
	t.Session.ClearStep()
	return show(screenHome, ""), nil
}

// visitStore switches to customer mode on the store behind @handle.
func (r *Router) visitStore(ctx context.Context, t *Turn, handle string) (Screen, error) {
	m, err := r.store.Merchants.GetByHandle(ctx, handle)
	if apperrors.Is(err, apperrors.ErrNotFound) || (err == nil && m.Status != models.MerchantActive) {
		return Screen{}, ErrStoreNotFound
	}
	if err != nil {
		return Screen{}, apperrors.Dependency("find store", err)
	}
	if _, err := r.store.Customers.Touch(ctx, m.ID, t.Key, t.Now); err != nil {
		return Screen{}, apperrors.Dependency("touch customer", err)
	}
	t.Session.ClearStep()
	t.Session.Mode = models.ModeCustomer
	t.Session.Payload = models.JSON{models.PayloadStore: m.ID}
	t.Merchant, t.Store = nil, m
	return show(screenStore, m.ID), nil
}

// findOrder opens #REF: the kitchen view for merchants, a status line
// for the customer who placed it.
func (r *Router) findOrder(ctx context.Context, t *Turn, ref string) (Screen, error) {
	if t.Merchant != nil {
		o, err := r.store.Orders.GetByRef(ctx, t.Merchant.ID, ref)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return Screen{}, ErrOrderNotFound
		}
		if err != nil {
			return Screen{}, apperrors.Dependency("find order", err)
		}
		return show(screenOrder, o.ID), nil
	}
	mine, err := r.store.Orders.ListByCustomer(ctx, t.Key, 0)
	if err != nil {
		return Screen{}, apperrors.Dependency("list orders", err)
	}
	for _, o := range mine {
		if o.Ref == ref {
			return say(customerOrderLine(&o)), nil
		}
	}
	return Screen{}, ErrOrderNotFound
}

func (r *Router) setOptIn(ctx context.Context, t *Turn, optIn bool) (Screen, error) {
	if _, err := r.store.Customers.SetOptInAll(ctx, t.Key, optIn); err != nil {
		return Screen{}, apperrors.Dependency("update opt-in", err)
	}
	if optIn {
		return say("✅ You'll receive store updates again. Send STOP at any time to opt out."), nil
	}
	return say("You won't receive store updates any more. Send START to opt back in."), nil
}

func (r *Router) isAdmin(key string) bool {
	return identity.Contains(r.platform.AdminNumbers, key)
}
