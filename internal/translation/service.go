package translation

import (
	"context"
	"errors"
	"time"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// Result is the output of RefineAndTranslate.
type Result struct {
	OriginalText   string `json:"original_text"`
	RefinedText    string `json:"refined_text"`
	TranslatedText string `json:"translated_text"`
}

// Service refines text and then translates it.
type Service struct {
	refiner    *Refiner
	translator Translator
	timeout    time.Duration
	logger     *logging.Logger
}

func NewService(refiner *Refiner, translator Translator, timeout time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{refiner: refiner, translator: translator, timeout: timeout, logger: logger}
}

// RefineAndTranslate rewrites text into clinical language, then translates
// the rewrite. Refinement never fails; translation errors are returned.
func (s *Service) RefineAndTranslate(ctx context.Context, text, source, target string) (Result, error) {
	res := Result{OriginalText: text, RefinedText: s.refiner.Refine(ctx, text)}
	if s.translator == nil {
		return res, errors.New("translation: no translator configured")
	}
	if source != "" && source == target {
		res.TranslatedText = res.RefinedText
		return res, nil
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	translated, err := s.translator.Translate(tctx, res.RefinedText, source, target)
	if err != nil {
		s.logger.Warn("translation failed", "source", source, "target", target, "error", err)
		return res, err
	}
	res.TranslatedText = translated
	return res, nil
}
