// Package catalog loads the embedded locale message files and registers
// them with golang.org/x/text/message.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// Bundle holds every locale's messages grouped by namespace.
type Bundle struct {
	// locale -> namespace -> key -> template
	locales map[string]map[string]map[string]string
}

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

var defaultBundle = mustLoadEmbedded()

// Default returns the process-wide embedded catalog bundle.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded loads catalog files embedded in this package.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads every locales/<locale>/<namespace>.yaml file in fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{locales: map[string]map[string]map[string]string{}}
	seen := map[string]map[string]bool{}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		file, err := parseFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		wantLocale := path.Base(path.Dir(p))
		wantNamespace := strings.TrimSuffix(path.Base(p), ".yaml")
		if file.locale != wantLocale {
			return nil, fmt.Errorf("catalog %s: locale %q must match path locale %q", p, file.locale, wantLocale)
		}
		if file.namespace != wantNamespace {
			return nil, fmt.Errorf("catalog %s: namespace %q must match filename %q", p, file.namespace, wantNamespace)
		}

		namespaces, ok := b.locales[file.locale]
		if !ok {
			namespaces = map[string]map[string]string{}
			b.locales[file.locale] = namespaces
			seen[file.locale] = map[string]bool{}
		}
		for key := range file.messages {
			if seen[file.locale][key] {
				return nil, fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, key, file.locale)
			}
			seen[file.locale][key] = true
		}
		namespaces[file.namespace] = file.messages
	}

	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return b, nil
}

// Register registers all catalog messages with x/text/message.
func (b *Bundle) Register() error {
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		for _, messages := range b.locales[locale] {
			for key, msg := range messages {
				if err := message.SetString(tag, key, msg); err != nil {
					return fmt.Errorf("register %s/%s: %w", locale, key, err)
				}
			}
		}
	}
	return nil
}

// Locales returns all available locale identifiers.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(locale string) bool {
	_, ok := b.locales[strings.TrimSpace(locale)]
	return ok
}

// NamespaceMessages returns a copy of one namespace for an exact locale.
func (b *Bundle) NamespaceMessages(locale, namespace string) map[string]string {
	src := b.locales[strings.TrimSpace(locale)][strings.TrimSpace(namespace)]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// NamespaceMessagesWithFallback returns namespace messages and the locale that satisfied the lookup.
func (b *Bundle) NamespaceMessagesWithFallback(locale, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	if messages := b.NamespaceMessages(locale, namespace); len(messages) > 0 {
		return locale, messages
	}
	return BaseLocale, b.NamespaceMessages(BaseLocale, namespace)
}

// Printer returns an x/text printer for locale, falling back to the base locale.
func (b *Bundle) Printer(locale string) *message.Printer {
	if !b.HasLocale(locale) {
		locale = BaseLocale
	}
	return message.NewPrinter(language.MustParse(locale))
}

func mustLoadEmbedded() *Bundle {
	b, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	if err := b.Register(); err != nil {
		panic(err)
	}
	return b
}

type file struct {
	locale    string
	namespace string
	messages  map[string]string
}

// parseFile reads the flat subset of YAML the locale files use:
// quoted locale and namespace scalars plus one messages map of quoted pairs.
func parseFile(data []byte) (file, error) {
	out := file{messages: map[string]string{}}
	inMessages := false
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "locale:"):
			v, err := strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "locale:")))
			if err != nil {
				return file{}, fmt.Errorf("parse locale: %w", err)
			}
			out.locale = v
		case strings.HasPrefix(line, "namespace:"):
			v, err := strconv.Unquote(strings.TrimSpace(strings.TrimPrefix(line, "namespace:")))
			if err != nil {
				return file{}, fmt.Errorf("parse namespace: %w", err)
			}
			out.namespace = v
		case line == "messages:":
			inMessages = true
		default:
			if !inMessages {
				return file{}, fmt.Errorf("unexpected line %q", line)
			}
			key, value, err := parseEntry(line)
			if err != nil {
				return file{}, fmt.Errorf("parse message entry %q: %w", line, err)
			}
			out.messages[key] = value
		}
	}
	switch {
	case out.locale == "":
		return file{}, fmt.Errorf("missing locale")
	case out.namespace == "":
		return file{}, fmt.Errorf("missing namespace")
	case len(out.messages) == 0:
		return file{}, fmt.Errorf("missing messages")
	}
	return out, nil
}

func parseEntry(line string) (string, string, error) {
	end := closingQuote(line)
	if end < 0 {
		return "", "", fmt.Errorf("expected quoted key")
	}
	key, err := strconv.Unquote(line[:end+1])
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}
	rest := strings.TrimSpace(line[end+1:])
	if !strings.HasPrefix(rest, ":") {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	value, err := strconv.Unquote(strings.TrimSpace(rest[1:]))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return strings.TrimSpace(key), value, nil
}

func closingQuote(s string) int {
	if !strings.HasPrefix(s, "\"") {
		return -1
	}
	escaped := false
	for i := 1; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			return i
		}
	}
	return -1
}
