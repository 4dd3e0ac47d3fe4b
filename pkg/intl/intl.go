package intl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

type SupportedLanguage struct {
	Code        string
	VerboseName string
	Tag         language.Tag
}

var (
	// allSupportedLanguages is the master list of all languages the SDK supports
	allSupportedLanguages = []SupportedLanguage{
		{
			Code:        "en",
			VerboseName: "English",
			Tag:         language.English,
		},
		{
			Code:        "zh",
			VerboseName: "中文",
			Tag:         language.Chinese,
		},
	}

	// SupportedLanguages is the default list (all languages supported by the runtime).
	SupportedLanguages = allSupportedLanguages
)

// GetSupportedLanguages returns a filtered list of supported languages based on the whitelist.
// If whitelist is nil or empty, returns all supported languages.
// If whitelist is provided, only languages with codes in the whitelist are returned.
func GetSupportedLanguages(whitelist []string) []SupportedLanguage {
	// If no whitelist provided, return all languages (backward compatible)
	if len(whitelist) == 0 {
		return allSupportedLanguages
	}

	// Create a map for fast lookup
	whitelistMap := make(map[string]bool)
	for _, code := range whitelist {
		whitelistMap[code] = true
	}

	// Filter languages based on whitelist
	filtered := make([]SupportedLanguage, 0, len(whitelist))
	for _, lang := range allSupportedLanguages {
		if whitelistMap[lang.Code] {
			filtered = append(filtered, lang)
		}
	}

	return filtered
}

type localizerKey struct{}
type localeKey struct{}

var ErrNoLocalizer = errors.New("localizer not found in context")

// LoadBundle creates a bundle that falls back to English and understands JSON
// and TOML message files.
func LoadBundle() *i18n.Bundle {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	return bundle
}

// RegisterLocaleFiles parses every file of fsys into bundle; the language is
// taken from the file name (en.json, zh.toml).
func RegisterLocaleFiles(bundle *i18n.Bundle, fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		buf, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		if _, err := bundle.ParseMessageFileBytes(buf, filepath.Base(path)); err != nil {
			return fmt.Errorf("parse locale file %q: %w", path, err)
		}
		return nil
	})
}

func WithLocalizer(ctx context.Context, l *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, l)
}

func UseLocalizer(ctx context.Context) (*i18n.Localizer, bool) {
	l, ok := ctx.Value(localizerKey{}).(*i18n.Localizer)
	return l, ok && l != nil
}

func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, localeKey{}, tag)
}

func UseLocale(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}

// Plural localizes a message whose variant depends on count. The count is
// available to the template as {{.Count}}.
func Plural(l *i18n.Localizer, messageID string, count int) (string, error) {
	return l.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		PluralCount:  count,
		TemplateData: map[string]interface{}{"Count": count},
	})
}
