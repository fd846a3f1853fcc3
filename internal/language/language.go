// Package language implements the language service (§4.4): deterministic
// detection, non-fatal translation, and the supported-language catalog.
package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/obernety/mindweave/internal/apperr"
)

// DetectionFloor is the confidence below which detection degrades to
// English, per §4.4.
const DetectionFloor = 0.5

// SupportedLanguage is one entry of the enumerated supported-language set.
type SupportedLanguage struct {
	Code string
	Name string
	Flag string
}

var flags = map[string]string{
	"en": "🇬🇧", "hi": "🇮🇳", "es": "🇪🇸", "fr": "🇫🇷", "de": "🇩🇪",
	"pt": "🇵🇹", "it": "🇮🇹", "ru": "🇷🇺", "ar": "🇸🇦", "zh": "🇨🇳",
	"ja": "🇯🇵", "ko": "🇰🇷", "th": "🇹🇭",
}

var supportedCodes = []string{"en", "hi", "es", "fr", "de", "pt", "it", "ru", "ar", "zh", "ja", "ko", "th"}

// Supported returns the enumerated supported-language catalog, sourced
// from golang.org/x/text/language's tag registry for display names rather
// than a hand-maintained code→name map, so the catalog cannot drift from
// the codes the detector itself recognizes.
func Supported() []SupportedLanguage {
	out := make([]SupportedLanguage, 0, len(supportedCodes))
	for _, code := range supportedCodes {
		out = append(out, SupportedLanguage{
			Code: code,
			Name: displayName(code),
			Flag: flags[code],
		})
	}
	return out
}

func displayName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return strings.ToUpper(code)
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// scriptRanges maps a Unicode script to the language it is treated as
// when text is dominated by that script, per §4.4's detection method.
var scriptRanges = []struct {
	table *unicode.RangeTable
	code  string
}{
	{unicode.Devanagari, "hi"},
	{unicode.Han, "zh"},
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Arabic, "ar"},
	{unicode.Cyrillic, "ru"},
	{unicode.Thai, "th"},
}

var stopwordsByLang = map[string][]string{
	"en": {"the", "and", "is", "are", "of", "to", "in", "for", "that", "this"},
	"es": {"el", "la", "de", "que", "y", "en", "los", "las", "por", "con"},
	"fr": {"le", "la", "de", "et", "les", "des", "en", "un", "une", "pour"},
	"de": {"der", "die", "das", "und", "ist", "in", "zu", "den", "von", "mit"},
	"pt": {"o", "a", "de", "que", "e", "do", "da", "em", "um", "para"},
	"it": {"il", "la", "di", "che", "e", "un", "una", "per", "con", "non"},
}

// Detect classifies text's language and a confidence in [0,1]. Confidence
// below DetectionFloor is reported as-is; callers that want §4.4's "treat
// as English" rule apply that themselves at the boundary so Detect's
// return value is always the detector's honest best guess.
func Detect(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return "en", 0
	}

	scriptCode, scriptConfidence := detectByScript(text)
	if scriptCode != "" {
		return scriptCode, scriptConfidence
	}

	return detectByStopwords(text)
}

func detectByScript(text string) (string, float64) {
	counts := make(map[string]int)
	total := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		for _, sr := range scriptRanges {
			if unicode.Is(sr.table, r) {
				counts[sr.code]++
			}
		}
	}
	if total == 0 {
		return "", 0
	}
	bestCode := ""
	bestCount := 0
	for code, count := range counts {
		if count > bestCount {
			bestCount, bestCode = count, code
		}
	}
	if bestCode == "" {
		return "", 0
	}
	fraction := float64(bestCount) / float64(total)
	if fraction < 0.5 {
		return "", 0
	}
	return bestCode, fraction
}

func detectByStopwords(text string) (string, float64) {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(words) == 0 {
		return "en", 0
	}

	type score struct {
		code  string
		count int
	}
	var scores []score
	for code, stopwords := range stopwordsByLang {
		set := make(map[string]bool, len(stopwords))
		for _, w := range stopwords {
			set[w] = true
		}
		count := 0
		for _, w := range words {
			if set[w] {
				count++
			}
		}
		scores = append(scores, score{code: code, count: count})
	}

	best := score{code: "en", count: 0}
	second := 0
	for _, s := range scores {
		if s.count > best.count {
			second = best.count
			best = s
		} else if s.count > second {
			second = s.count
		}
	}
	if best.count == 0 {
		return "en", 0.3
	}
	margin := float64(best.count-second) / float64(len(words))
	confidence := 0.5 + margin
	if confidence > 1 {
		confidence = 1
	}
	return best.code, confidence
}

// Translator is the from-scratch REST client contract, implemented by
// restTranslator and satisfied by any configured HTTP translation
// endpoint, mirroring the no-SDK provider pattern in internal/llm.
type Translator interface {
	Translate(text, src, dst string) (string, error)
}

// Service bundles detection and translation behind the operations §4.4
// specifies. Translation failure is reported via apperr.TranslationFailure
// but is never fatal to a caller that chooses to proceed with the
// original text.
type Service struct {
	translator Translator
	enabled    bool
}

// New builds a Service. When enabled is false, Translate always returns
// the original text unchanged with no network call.
func New(translator Translator, enabled bool) *Service {
	return &Service{translator: translator, enabled: enabled}
}

// Detect exposes the package-level detector as a method for symmetry with
// Translate, and to allow a future per-instance override.
func (s *Service) Detect(text string) (string, float64) {
	return Detect(text)
}

// Translate converts text from src to dst. If translation is disabled or
// src equals dst, it returns the original text and a nil error. If the
// translator fails, it returns the original text alongside a non-nil
// *apperr.TranslationFailure so the caller can record a warning and
// proceed — translation failure is never returned as the sole error.
func (s *Service) Translate(text, src, dst string) (string, error) {
	if !s.enabled || src == dst {
		return text, nil
	}
	translated, err := s.translator.Translate(text, src, dst)
	if err != nil {
		return text, &apperr.TranslationFailure{SourceLang: src, TargetLang: dst, Cause: err}
	}
	return translated, nil
}
