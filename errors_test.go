package arbors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalizeFallsBackToErrorWithNilLocalizer(t *testing.T) {
	e := &MissingRequiredFieldError{Field: "age", SchemaPath: "#", DataPath: "#"}
	require.Equal(t, e.Error(), e.Localize(nil))
}

func TestLocalesLoadsEnglishAndChinese(t *testing.T) {
	bundle, err := Locales()
	require.NoError(t, err)

	en := bundle.NewLocalizer("en")
	e := &TypeMismatchError{Expected: "string", Got: "number", SchemaPath: "#/properties/name", DataPath: "#/name"}
	require.Equal(t, "expected string, got number", e.Localize(en))

	zh := bundle.NewLocalizer("zh-Hans")
	require.Contains(t, e.Localize(zh), "期望")
}

func TestTupleOverflowParamsAreStringified(t *testing.T) {
	e := &TupleOverflowError{Expected: 2, Got: 3}
	require.Equal(t, map[string]any{"Expected": "2", "Got": "3"}, e.Params())
}
