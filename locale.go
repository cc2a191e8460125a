package arbors

import (
	"embed"

	"github.com/kaptinlin/go-i18n"
)

//go:embed locales/*.json
var localesFS embed.FS

// Locales returns an i18n bundle with the engine's built-in error-message
// translations loaded, English and Simplified Chinese (mirrors the
// teacher's GetI18n()). Callers derive a *i18n.Localizer from it via
// NewLocalizer and pass that to any error's Localize method.
func Locales() (*i18n.I18n, error) {
	bundle := i18n.NewBundle(
		i18n.WithDefaultLocale("en"),
		i18n.WithLocales("en", "zh-Hans"),
	)
	if err := bundle.LoadFS(localesFS, "locales/*.json"); err != nil {
		return nil, err
	}
	return bundle, nil
}

// localizable is implemented by every exported error type in this package
// that carries a locale message code and substitution parameters.
type localizable interface {
	error
	Code() string
	Params() map[string]any
}

// localize renders e via loc, or falls back to e.Error() when loc is nil
// (no localizer configured — the common case for internal/CLI use).
func localize(e localizable, loc *i18n.Localizer) string {
	if loc == nil {
		return e.Error()
	}
	return loc.Get(e.Code(), i18n.Vars(e.Params()))
}
