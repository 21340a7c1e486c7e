// Package translation rewrites informal health text into clinical language
// and translates replies into the user's language.
package translation

import (
	"context"
	"errors"
)

// ErrUnsupported is returned for an empty or unknown language pair.
var ErrUnsupported = errors.New("translation: unsupported language pair")

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}
