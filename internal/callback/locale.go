package callback

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// supportedLocales are matched against Accept-Language; the first is the default.
var supportedLocales = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.BrazilianPortuguese,
	language.Japanese,
}

var timeLayouts = map[language.Tag]string{
	language.AmericanEnglish:     "Jan 2, 2006, 3:04 PM",
	language.BritishEnglish:      "2 Jan 2006, 15:04",
	language.German:              "02.01.2006, 15:04",
	language.French:              "02/01/2006 15:04",
	language.Spanish:             "2/1/2006, 15:04",
	language.BrazilianPortuguese: "02/01/2006, 15:04",
	language.Japanese:            "2006/01/02 15:04",
}

var localeMatcher = language.NewMatcher(supportedLocales)

// Locale formats values for one request's language.
type Locale struct {
	Tag     language.Tag
	printer *message.Printer
	layout  string
	loc     *time.Location
}

// ResolveLocale picks the best supported locale from the Accept-Language header.
func ResolveLocale(r *http.Request) Locale {
	tag := supportedLocales[0]
	if r != nil {
		if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
			if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
				_, idx, conf := localeMatcher.Match(tags...)
				if conf != language.No {
					tag = supportedLocales[idx]
				}
			}
		}
	}
	return NewLocale(tag)
}

// NewLocale builds a locale for a supported tag. Times render in UTC.
func NewLocale(tag language.Tag) Locale {
	layout, ok := timeLayouts[tag]
	if !ok {
		tag = supportedLocales[0]
		layout = timeLayouts[tag]
	}
	return Locale{Tag: tag, printer: message.NewPrinter(tag), layout: layout, loc: time.UTC}
}

// FormatTime renders t in the locale's layout, or "" for the zero time.
func (l Locale) FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(l.loc).Format(l.layout) + " UTC"
}

// Count renders n with the locale's digit grouping.
func (l Locale) Count(n int) string {
	return l.printer.Sprintf("%d", n)
}
