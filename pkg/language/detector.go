package language

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// MinDetectionLength is the number of cleaned characters below which
// detection is not attempted.
const MinDetectionLength = 50

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+\s*(cups?|tbsp|tsp|oz|lbs?|kg|g|ml|l)\b`),
	regexp.MustCompile(`(?i)\d+\s*°[CF]`),
	regexp.MustCompile(`(?i)\d+\s*(minutes?|mins?|hours?|hrs?|servings?)`),
	regexp.MustCompile(`[^\p{L}\s]`),
}

// CleanForDetection strips measurements, times and punctuation that skew detection.
func CleanForDetection(text string) string {
	for _, re := range noisePatterns {
		text = re.ReplaceAllString(text, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// LinguaDetector implements core.Detector with an n-gram model restricted to
// a fixed set of languages.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector for the given ISO 639-1 codes.
func NewLinguaDetector(codes []string) (*LinguaDetector, error) {
	langs := make([]lingua.Language, 0, len(codes))
	seen := make(map[lingua.Language]bool, len(codes))
	for _, code := range codes {
		iso := lingua.GetIsoCode639_1FromValue(strings.ToLower(strings.TrimSpace(code)))
		lang := lingua.GetLanguageFromIsoCode639_1(iso)
		if lang == lingua.Unknown {
			return nil, fmt.Errorf("language: unsupported language code %q", code)
		}
		if !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("language: at least two languages are required, got %d", len(langs))
	}

	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().FromLanguages(langs...).Build(),
	}, nil
}

// Detect returns the most likely language code and its confidence.
func (d *LinguaDetector) Detect(text string) (string, float64, bool) {
	clean := CleanForDetection(text)
	if len([]rune(clean)) < MinDetectionLength {
		return "", 0, false
	}
	lang, ok := d.detector.DetectLanguageOf(clean)
	if !ok {
		return "", 0, false
	}
	conf := d.detector.ComputeLanguageConfidence(clean, lang)
	return strings.ToLower(lang.IsoCode639_1().String()), conf, true
}
