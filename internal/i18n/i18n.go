// Package i18n holds the English and Serbian user-facing messages.
package i18n

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/MeKo-Tech/wallplan/internal/errs"
)

// Supported languages; the first one is the fallback.
var Supported = []language.Tag{language.English, language.Serbian}

// Serbian messages are written in Latin script, while the bare sr tag
// implies Cyrillic. Both resolve to language.Serbian.
var serbianLatin = language.MustParse("sr-Latn")

var (
	matcher  = language.NewMatcher(append(append([]language.Tag{}, Supported...), serbianLatin))
	known    = map[language.Tag]map[string]bool{}
	printers = map[language.Tag]*message.Printer{}
)

func init() {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		known[tag] = make(map[string]bool, len(msgs))
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
			known[tag][key] = true
		}
	}
	for _, tag := range Supported {
		printers[tag] = message.NewPrinter(tag, message.Catalog(b))
	}
}

// Match resolves a language name ("EN", "sr", "sr-Latn-RS") or an
// Accept-Language header to a supported tag. Anything unknown is English.
func Match(lang string) language.Tag {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	if idx >= len(Supported) {
		return language.Serbian
	}
	return Supported[idx]
}

// T returns the message for key in lang, formatted with args. Keys missing
// in lang fall back to English, and unknown keys are returned as is.
func T(lang, key string, args ...any) string {
	tag := Match(lang)
	if !known[tag][key] {
		tag = language.English
		if !known[tag][key] {
			return key
		}
	}
	return printers[tag].Sprintf(key, args...)
}

// Has reports whether key has an English message.
func Has(key string) bool { return known[language.English][key] }

// ErrorKey returns the message key for an error code.
func ErrorKey(code errs.Code) string {
	switch code {
	case errs.CodeUnsupportedFormat:
		return "unsupported_format"
	case errs.CodeDecodeError:
		return "decode_error"
	case errs.CodeEmptyDocument:
		return "empty_document"
	case errs.CodeNoStructureDetected:
		return "no_wall_found"
	case errs.CodeOutOfBounds:
		return "out_of_bounds"
	case errs.CodeInvalidDimensions:
		return "invalid_dimensions"
	case errs.CodeInvalidInput:
		return "invalid_input"
	case errs.CodeNoBackend:
		return "no_backend"
	default:
		return "internal_error"
	}
}

// Error localizes err: the message for its code, followed by the detail
// for out-of-bounds entries.
func Error(lang string, err error) string {
	if err == nil {
		return ""
	}
	var oob *errs.OutOfBoundsError
	if errors.As(err, &oob) {
		kind := oob.Kind
		if kind == "" {
			kind = "opening"
		}
		return T(lang, "out_of_bounds_detail", T(lang, kind), oob.Index, T(lang, "side_"+oob.Side), oob.Excess)
	}
	return T(lang, ErrorKey(errs.GetCode(err)))
}
