package notify

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

// Ключи каталога - английские шаблоны.
const (
	subjectPaid     = "Order %s has been paid"
	subjectFailed   = "Payment for order %s failed"
	subjectRejected = "Order %s has been rejected"
	subjectShipped  = "Order %s has been shipped"
	subjectManager  = "Payment failed for order %s (%s)"
)

var supported = []language.Tag{language.English, language.Dutch, language.German}

var (
	matcher  = language.NewMatcher(supported)
	messages = newCatalog()
)

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		// Ошибка возможна только при некорректном шаблоне.
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}

	for _, key := range []string{subjectPaid, subjectFailed, subjectRejected, subjectShipped, subjectManager} {
		set(language.English, key, key)
	}

	set(language.Dutch, subjectPaid, "Bestelling %s is betaald")
	set(language.Dutch, subjectFailed, "Betaling voor bestelling %s is mislukt")
	set(language.Dutch, subjectRejected, "Bestelling %s is afgewezen")
	set(language.Dutch, subjectShipped, "Bestelling %s is verzonden")

	set(language.German, subjectPaid, "Bestellung %s wurde bezahlt")
	set(language.German, subjectFailed, "Zahlung für Bestellung %s fehlgeschlagen")
	set(language.German, subjectRejected, "Bestellung %s wurde abgelehnt")
	set(language.German, subjectShipped, "Bestellung %s wurde versandt")
	return b
}

// MatchLanguage подбирает поддерживаемый язык по предпочтению клиента
// (тег BCP 47 или Accept-Language). Неизвестное - английский.
func MatchLanguage(preference string) language.Tag {
	preference = strings.TrimSpace(preference)
	if preference == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(preference)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supported[idx]
}

// Subject возвращает локализованную тему письма.
func Subject(tag language.Tag, kind domain.NotificationKind, orderNumber string) string {
	key, ok := subjectKeys[kind]
	if !ok {
		return orderNumber
	}
	return message.NewPrinter(tag, message.Catalog(messages)).Sprintf(key, orderNumber)
}

// ManagerSubject — тема письма менеджерам о неудачной оплате. Всегда на английском.
func ManagerSubject(orderNumber, customerEmail string) string {
	return message.NewPrinter(language.English, message.Catalog(messages)).Sprintf(subjectManager, orderNumber, customerEmail)
}

var subjectKeys = map[domain.NotificationKind]string{
	domain.NotificationOrderPaid:     subjectPaid,
	domain.NotificationOrderFailed:   subjectFailed,
	domain.NotificationOrderRejected: subjectRejected,
	domain.NotificationOrderShipped:  subjectShipped,
}
