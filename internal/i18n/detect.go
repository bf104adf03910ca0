package i18n

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.German).
			Build()
	})
	return detector
}

// minDetectRunes is the shortest body text worth running detection on
const minDetectRunes = 20

// Detect picks a language for a page with no configured language: the
// document's lang attribute first, then statistical detection on its text.
func Detect(htmlLang, text string) string {
	if lang := strings.TrimSpace(htmlLang); lang != "" {
		return strings.ToLower(lang)
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) < minDetectRunes {
		return DefaultLanguage
	}
	lang, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return DefaultLanguage
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
