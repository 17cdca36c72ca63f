package dialog

import (
	"context"
	"fmt"
	"log"
	"strings"

	"chatstore/internal/channel"
	apperrors "chatstore/internal/errors"
	"chatstore/internal/models"
	"chatstore/internal/templates"
	"chatstore/internal/validation"
)

// Hours wizard positions, kept in Step.Field.
const (
	hoursWeekday  = "weekday"
	hoursSaturday = "saturday"
	hoursSunday   = "sunday"
)

// Payload keys for hours collected before the last answer.
const (
	payloadWeekdayHours  = "hours_weekday"
	payloadSaturdayHours = "hours_saturday"
)

var locales = map[string]string{
	"en": "English",
	"af": "Afrikaans",
}

type settingsFlow struct{ r *Router }

func (f *settingsFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	m := t.Merchant
	switch verb {
	case "home":
		return show(screenSettings, ""), nil
	case "profile":
		return ask(profileText(m), channel.Button{ID: "settings:home", Title: "Back"}), nil
	case "toggle":
		m.ManualClosed = !m.ManualClosed
		if err := f.r.store.Merchants.Update(ctx, m); err != nil {
			return Screen{}, apperrors.Dependency("toggle store", err)
		}
		notice := "🔴 Store closed. Customers can browse but can't order."
		if !m.ManualClosed {
			notice = "🟢 Store reopened for your trading hours."
		}
		return show(screenSettings, "").with(notice), nil
	case "hours":
		t.Session.Enter(models.AwaitingHours(hoursWeekday))
		return ask("🕒 Weekday hours (Mon-Fri)? e.g. 08:00 - 17:00, or 'closed'.\n\nCurrently:\n"+hoursSummary(m), cancelButton), nil
	case "sunday":
		if t.Session.Step.Kind != models.StepHours || t.Session.Step.Field != hoursSunday {
			return show(screenSettings, ""), nil
		}
		return f.finishHours(ctx, t, id)
	case "owners":
		return show(screenOwners, ""), nil
	case "add_owner":
		t.Session.Enter(models.AwaitingOwnerPhone())
		return ask("Send the phone number of the new owner, with country code.", cancelButton), nil
	case "remove_owner":
		return f.removeOwner(ctx, t, id)
	case "locale":
		if id == "" {
			return ask("Which language should customer messages use?",
				channel.Button{ID: "settings:locale:en", Title: "English"},
				channel.Button{ID: "settings:locale:af", Title: "Afrikaans"},
			), nil
		}
		if _, ok := locales[id]; !ok || !templates.Supported(id) {
			return Screen{}, ErrUnknownLocale
		}
		m.Locale = id
		if err := f.r.store.Merchants.Update(ctx, m); err != nil {
			return Screen{}, apperrors.Dependency("save locale", err)
		}
		return show(screenSettings, "").with(fmt.Sprintf("✅ Customer messages will be sent in %s.", locales[id])), nil
	}
	return show(screenSettings, ""), nil
}

func (f *settingsFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	switch t.Session.Step.Kind {
	case models.StepHours:
		return f.hoursStep(ctx, t)
	case models.StepOwnerPhone:
		phone, err := validation.ParsePhone(t.Input)
		if err != nil {
			return Screen{}, err
		}
		return f.inviteOwner(ctx, t, phone)
	}
	t.Session.ClearStep()
	return show(screenSettings, ""), nil
}

func (f *settingsFlow) hoursStep(ctx context.Context, t *Turn) (Screen, error) {
	switch t.Session.Step.Field {
	case hoursWeekday:
		h, err := validation.ParseHours(t.Input)
		if err != nil {
			return Screen{}, err
		}
		t.Session.Set(payloadWeekdayHours, encodeHours(h))
		t.Session.Enter(models.AwaitingHours(hoursSaturday))
		return ask("Saturday hours? e.g. 09:00 - 13:00, or 'closed'.", cancelButton), nil
	case hoursSaturday:
		h, err := validation.ParseHours(t.Input)
		if err != nil {
			return Screen{}, err
		}
		t.Session.Set(payloadSaturdayHours, encodeHours(h))
		t.Session.Enter(models.AwaitingHours(hoursSunday))
		return ask("Open on Sundays? Sunday uses your Saturday hours.",
			channel.Button{ID: "settings:sunday:open", Title: "Open"},
			channel.Button{ID: "settings:sunday:closed", Title: "Closed"},
			cancelButton,
		), nil
	case hoursSunday:
		return f.finishHours(ctx, t, strings.ToLower(t.Input))
	}
	t.Session.ClearStep()
	return show(screenSettings, ""), nil
}

// finishHours writes all three answers to the store at once, so a
// cancelled wizard leaves the old hours untouched.
func (f *settingsFlow) finishHours(ctx context.Context, t *Turn, answer string) (Screen, error) {
	var sunday bool
	switch answer {
	case "open", "yes":
		sunday = true
	case "closed", "no":
	default:
		return Screen{}, ErrInvalidSunday
	}
	m := t.Merchant
	m.WeekdayOpen, m.WeekdayClose = decodeHours(t.Session.Get(payloadWeekdayHours), m.WeekdayOpen, m.WeekdayClose)
	m.SaturdayOpen, m.SaturdayClose = decodeHours(t.Session.Get(payloadSaturdayHours), m.SaturdayOpen, m.SaturdayClose)
	m.SundayOpen = sunday
	if err := f.r.store.Merchants.Update(ctx, m); err != nil {
		return Screen{}, apperrors.Dependency("save hours", err)
	}
	t.Session.ClearStep()
	return show(screenSettings, "").with("✅ Trading hours updated."), nil
}

func encodeHours(h validation.Hours) string {
	if h.Closed {
		return "closed"
	}
	return h.Open + "-" + h.Close
}

// decodeHours falls back to the current values when the payload lost
// the answer.
func decodeHours(v, open, close string) (string, string) {
	if v == "" {
		return open, close
	}
	if v == "closed" {
		return "", ""
	}
	o, c, ok := strings.Cut(v, "-")
	if !ok {
		return open, close
	}
	return o, c
}

func (f *settingsFlow) inviteOwner(ctx context.Context, t *Turn, phone string) (Screen, error) {
	m := t.Merchant
	owners, err := f.r.store.Owners.ListActiveByMerchant(ctx, m.ID)
	if err != nil {
		return Screen{}, apperrors.Dependency("list owners", err)
	}
	for _, o := range owners {
		if o.UserKey == phone {
			t.Session.ClearStep()
			return show(screenOwners, "").with(fmt.Sprintf("+%s already manages %s.", phone, m.DisplayName())), nil
		}
	}
	inv, err := f.r.store.Invites.Refresh(ctx, m.ID, phone, t.Key)
	if err != nil {
		return Screen{}, apperrors.Dependency("create invite", err)
	}
	t.Session.ClearStep()

	text := fmt.Sprintf("👋 You've been invited to help manage %s (@%s).", m.DisplayName(), m.Handle)
	if err := f.r.sendInvite(ctx, inv, text); err != nil {
		log.Printf("router: invite to %s: %v", phone, err)
		return show(screenOwners, "").with(fmt.Sprintf("Invite saved, but we couldn't message +%s. They can still accept later.", phone)), nil
	}
	return show(screenOwners, "").with(fmt.Sprintf("📨 Invite sent to +%s.", phone)), nil
}

func (f *settingsFlow) removeOwner(ctx context.Context, t *Turn, key string) (Screen, error) {
	if key == t.Key {
		return Screen{}, ErrRemoveSelf
	}
	removed, err := f.r.store.Owners.Deactivate(ctx, t.Merchant.ID, key)
	if err != nil {
		return Screen{}, apperrors.Dependency("remove owner", err)
	}
	if !removed {
		return show(screenOwners, "").with(fmt.Sprintf("+%s isn't an owner of this store.", key)), nil
	}
	return show(screenOwners, "").with(fmt.Sprintf("+%s can no longer manage this store.", key)), nil
}

func (f *settingsFlow) cancel(ctx context.Context, t *Turn) error { return nil }

func profileText(m *models.Merchant) string {
	return fmt.Sprintf("🏪 %s (@%s)\nLegal name: %s\nRegistration: %s\nBank: %s, account ending %s\nLanguage: %s",
		m.DisplayName(), m.Handle, m.LegalName, m.RegistrationNumber, m.BankName, lastDigits(m.BankAccount, 4), locales[m.Locale])
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// sendInvite offers the invite to its phone with accept/decline buttons.
func (r *Router) sendInvite(ctx context.Context, inv *models.OwnerInvite, text string) error {
	return r.channel.SendButtons(ctx, inv.Phone, text, []channel.Button{
		{ID: "invite:accept:" + inv.ID, Title: "Accept"},
		{ID: "invite:decline:" + inv.ID, Title: "Decline"},
	})
}
