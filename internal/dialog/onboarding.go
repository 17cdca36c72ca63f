package dialog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	apperrors "chatstore/internal/errors"
	"chatstore/internal/identity"
	"chatstore/internal/models"
	"chatstore/internal/validation"
)

// onboardingFlow asks for the first unset merchant field. It keys off
// the record, not the step, so an interrupted signup resumes where the
// data left off.
type onboardingFlow struct{ r *Router }

var fieldPrompts = map[string]string{
	models.FieldTradingName:  "What's your store's trading name? This is the name customers see.",
	models.FieldLegalName:    "What's the registered legal name of the business?",
	models.FieldRegistration: "What's the company registration or ID number?",
	models.FieldBankName:     "Which bank should payouts go to?",
	models.FieldBankAccount:  "What's the bank account number for payouts?",
}

func onboardingPrompt(m *models.Merchant) Prompt {
	field := m.MissingField()
	n := 1
	for i, f := range models.OnboardingFields {
		if f == field {
			n = i + 1
		}
	}
	return Prompt{Text: fmt.Sprintf("📝 Store setup (%d of %d)\n%s", n, len(models.OnboardingFields), fieldPrompts[field])}
}

func (f *onboardingFlow) command(ctx context.Context, t *Turn, verb, id string) (Screen, error) {
	m := t.Merchant
	if m.Status != models.MerchantOnboarding {
		return show(screenHome, ""), nil
	}
	t.Session.Enter(models.AwaitingField(m.MissingField()))
	return Screen{Prompt: ptr(onboardingPrompt(m))}, nil
}

func (f *onboardingFlow) step(ctx context.Context, t *Turn) (Screen, error) {
	m := t.Merchant
	if m.Status != models.MerchantOnboarding {
		t.Session.ClearStep()
		return show(screenHome, ""), nil
	}
	field := m.MissingField()
	value, err := parseField(field, t.Input)
	if err != nil {
		return Screen{}, err
	}
	m.SetField(field, value)

	next := m.MissingField()
	if next == "" {
		m.Status = models.MerchantActive
		m.ApplyDefaultHours()
	}
	if err := f.r.store.Merchants.Update(ctx, m); err != nil {
		return Screen{}, apperrors.Dependency("save onboarding field", err)
	}

	if next == "" {
		t.Session.ClearStep()
		return show(screenHome, "").with(fmt.Sprintf("🎉 %s is live! Customers can find you at @%s.", m.DisplayName(), m.Handle)), nil
	}
	t.Session.Enter(models.AwaitingField(next))
	return Screen{Prompt: ptr(onboardingPrompt(m))}, nil
}

func (f *onboardingFlow) cancel(ctx context.Context, t *Turn) error {
	return nil
}

func parseField(field, input string) (string, error) {
	if field == models.FieldBankAccount {
		digits := identity.Normalize(input)
		if len(digits) < 6 || len(digits) > 20 || strings.IndexFunc(input, unicode.IsLetter) >= 0 {
			return "", ErrInvalidAccount
		}
		return digits, nil
	}
	return validation.ParseName(input)
}

func ptr[T any](v T) *T { return &v }
