// Package templates holds the customer notification copy for the two
// supported locales.
package templates

import (
	"fmt"

	"golang.org/x/text/language"
)

type Templates struct {
	Tag            language.Tag
	orderPlaced    string
	orderReady     string
	orderComplete  string
	orderCancelled string
	optOutFooter   string
}

var english = &Templates{
	Tag:            language.English,
	orderPlaced:    "✅ Order #%s placed at %s. Total R%.2f. We'll let you know when it's ready.",
	orderReady:     "🛍️ Your order #%s from %s is ready for pickup!",
	orderComplete:  "🎉 Order #%s complete. Thanks for shopping with %s!",
	orderCancelled: "❌ Order #%s from %s was cancelled.",
	optOutFooter:   "Reply STOP to stop receiving messages from %s.",
}

var afrikaans = &Templates{
	Tag:            language.Afrikaans,
	orderPlaced:    "✅ Bestelling #%s geplaas by %s. Totaal R%.2f. Ons laat weet jou wanneer dit gereed is.",
	orderReady:     "🛍️ Jou bestelling #%s van %s is gereed om af te haal!",
	orderComplete:  "🎉 Bestelling #%s voltooi. Dankie dat jy by %s koop!",
	orderCancelled: "❌ Bestelling #%s van %s is gekanselleer.",
	optOutFooter:   "Antwoord STOP om nie meer boodskappe van %s te ontvang nie.",
}

var (
	supported = []*Templates{english, afrikaans}
	matcher   = language.NewMatcher([]language.Tag{english.Tag, afrikaans.Tag})
)

// For picks the closest supported locale, defaulting to English.
func For(locale string) *Templates {
	tag, err := language.Parse(locale)
	if err != nil {
		return english
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return english
	}
	return supported[idx]
}

// Supported reports whether locale maps to its own template set.
func Supported(locale string) bool {
	tag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	_, _, conf := matcher.Match(tag)
	return conf >= language.High
}

func (t *Templates) OrderPlaced(ref, store string, total float64) string {
	return fmt.Sprintf(t.orderPlaced, ref, store, total)
}

func (t *Templates) OrderReady(ref, store string) string {
	return fmt.Sprintf(t.orderReady, ref, store)
}

func (t *Templates) OrderComplete(ref, store string) string {
	return fmt.Sprintf(t.orderComplete, ref, store)
}

func (t *Templates) OrderCancelled(ref, store string) string {
	return fmt.Sprintf(t.orderCancelled, ref, store)
}

// WithOptOut appends the unsubscribe footer to a broadcast body.
func (t *Templates) WithOptOut(message, store string) string {
	return message + "\n\n" + fmt.Sprintf(t.optOutFooter, store)
}

// Money formats an amount in rand.
func Money(v float64) string {
	return fmt.Sprintf("R%.2f", v)
}
