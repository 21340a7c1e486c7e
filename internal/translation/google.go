package translation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"
)

// GoogleTranslator calls the Cloud Translation v2 API.
type GoogleTranslator struct {
	svc *translate.Service
}

// NewGoogleTranslator creates a translator authenticated with an API key.
func NewGoogleTranslator(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GoogleTranslator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("translation: google api key is required")
	}
	svc, err := translate.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("translation: failed to create google client: %w", err)
	}
	return &GoogleTranslator{svc: svc}, nil
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return "", ErrUnsupported
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	call := g.svc.Translations.List([]string{text}, target).Format("text").Context(ctx)
	if src := strings.ToLower(strings.TrimSpace(source)); src != "" && src != "auto" {
		call = call.Source(src)
	}
	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("translation: google translate failed: %w", err)
	}
	if resp == nil || len(resp.Translations) == 0 {
		return "", errors.New("translation: google returned no translations")
	}
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}
