package intl

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestPlural(t *testing.T) {
	bundle := LoadBundle()
	require.NoError(t, RegisterLocaleFiles(bundle, fstest.MapFS{
		"en.json": {Data: []byte(`{"Items": {"one": "{{.Count}} item", "other": "{{.Count}} items"}}`)},
		"zh.toml": {Data: []byte("[Items]\nother = \"{{.Count}} 项\"\n")},
	}))

	en := i18n.NewLocalizer(bundle, "en")
	one, err := Plural(en, "Items", 1)
	require.NoError(t, err)
	require.Equal(t, "1 item", one)

	many, err := Plural(en, "Items", 11)
	require.NoError(t, err)
	require.Equal(t, "11 items", many)

	zh := i18n.NewLocalizer(bundle, "zh")
	out, err := Plural(zh, "Items", 1)
	require.NoError(t, err)
	require.Equal(t, "1 项", out)
}

func TestGetSupportedLanguages(t *testing.T) {
	require.Len(t, GetSupportedLanguages(nil), 2)
	langs := GetSupportedLanguages([]string{"zh"})
	require.Len(t, langs, 1)
	require.Equal(t, language.Chinese, langs[0].Tag)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := UseLocalizer(ctx)
	require.False(t, ok)
	require.Equal(t, language.English, UseLocale(ctx))

	l := i18n.NewLocalizer(LoadBundle(), "en")
	ctx = WithLocale(WithLocalizer(ctx, l), language.Chinese)
	got, ok := UseLocalizer(ctx)
	require.True(t, ok)
	require.Same(t, l, got)
	require.Equal(t, language.Chinese, UseLocale(ctx))
}
