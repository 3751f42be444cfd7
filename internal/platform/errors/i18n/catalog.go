// Package i18n renders localized user-facing messages for error codes.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/dragondice/internal/platform/i18n/catalog"
)

// Code mirrors errors.Code; the errors package imports this one.
type Code = string

// Catalog holds the parsed error templates of one locale.
type Catalog struct {
	locale string
	raw    map[Code]string
	parsed map[Code]*template.Template
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
)

// GetCatalog returns the catalog for locale, built from the embedded
// "errors" namespace on first use. Unknown locales share the base catalog.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}

	catalogsMu.RLock()
	c, ok := catalogs[requested]
	catalogsMu.RUnlock()
	if ok {
		return c
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, "errors")

	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[resolved]; ok {
		catalogs[requested] = existing
		return existing
	}
	built := NewCatalog(resolved, messages)
	catalogs[resolved] = built
	catalogs[requested] = built
	return built
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders code's message with metadata as template data. Unknown
// codes render as the code itself; templates that fail render raw.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	t, ok := c.parsed[code]
	if !ok {
		if raw, ok := c.raw[code]; ok {
			return raw
		}
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return c.raw[code]
	}
	return buf.String()
}

// RegisterCatalog installs cat for locale, replacing any existing catalog.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog parses messages for locale. Messages that do not parse are
// kept and rendered verbatim.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	c := &Catalog{
		locale: locale,
		raw:    make(map[Code]string, len(messages)),
		parsed: make(map[Code]*template.Template, len(messages)),
	}
	for code, text := range messages {
		c.raw[code] = text
		if t, err := template.New(code).Parse(text); err == nil {
			c.parsed[code] = t
		}
	}
	return c
}
