package prompt

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// constraints are the fixed ambient production directives appended to every
// prompt regardless of what the mood inference returns.
const constraints = "slow ambient tempo 60-80 bpm, soft evolving texture, no vocals, minimal percussion"

// defaultMood is the guaranteed non-empty mood entry.
const defaultMood = "calm atmosphere, warm ambient pads"

// LanguageService is the external text model consulted during enrichment.
// Both calls are best-effort; Enrich substitutes local fallbacks on error.
type LanguageService interface {
	Translate(ctx context.Context, text string) (string, error)
	Mood(ctx context.Context, description string) (string, error)
}

// Enricher builds provider-agnostic generation prompts from raw descriptions.
type Enricher struct {
	lang   LanguageService // nil disables external calls entirely
	maxLen int
}

// NewEnricher creates an Enricher. lang may be nil.
func NewEnricher(lang LanguageService, maxLen int) *Enricher {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &Enricher{lang: lang, maxLen: maxLen}
}

// Enrich turns a raw description into the normalized, translated,
// mood-annotated prompt handed to generation providers. It never fails and
// never returns empty text: the worst case is the folded raw text wrapped in
// the fixed template.
func (e *Enricher) Enrich(ctx context.Context, description, styleHint string) string {
	text := Fold(strings.TrimSpace(description))
	if text == "" {
		text = "an evocative place"
	}

	if e.lang != nil {
		translated, err := e.lang.Translate(ctx, text)
		if err != nil {
			log.Debug().Err(err).Msg("Translation unavailable, keeping folded text")
		} else if translated != "" {
			text = Fold(translated)
		}
	}

	mood := ""
	if e.lang != nil {
		inferred, err := e.lang.Mood(ctx, text)
		if err != nil {
			log.Debug().Err(err).Msg("Mood inference unavailable, using keyword table")
		} else {
			mood = Fold(inferred)
		}
	}
	if mood == "" {
		mood = KeywordMood(text)
	}

	var b strings.Builder
	b.WriteString("Music inspired by: ")
	b.WriteString(text)
	b.WriteString(". Mood: ")
	b.WriteString(mood)
	if styleHint = Fold(strings.TrimSpace(styleHint)); styleHint != "" {
		b.WriteString(". Style: ")
		b.WriteString(styleHint)
	}
	b.WriteString(". ")
	b.WriteString(constraints)

	return TruncateAtWord(b.String(), e.maxLen)
}

// foldTable maps locale-specific diacritics to an ASCII-safe form so keyword
// matching and foreign APIs behave the same whether or not translation ran.
var foldTable = map[rune]string{
	'ă': "a", 'â': "a", 'î': "i", 'ș': "s", 'ş': "s", 'ț': "t", 'ţ': "t",
	'Ă': "A", 'Â': "A", 'Î': "I", 'Ș': "S", 'Ş': "S", 'Ț': "T", 'Ţ': "T",
	'á': "a", 'à': "a", 'ä': "a", 'å': "a", 'ã': "a",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'í': "i", 'ì': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'ö': "o", 'õ': "o", 'ő': "o",
	'ú': "u", 'ù': "u", 'û': "u", 'ü': "u", 'ű': "u",
	'ç': "c", 'ñ': "n", 'ß': "ss",
	'Á': "A", 'À': "A", 'Ä': "A", 'É': "E", 'È': "E", 'Ê': "E",
	'Í': "I", 'Ó': "O", 'Ö': "O", 'Ő': "O", 'Ú': "U", 'Ü': "U", 'Ű': "U",
	'Ç': "C", 'Ñ': "N",
}

// Fold replaces diacritics with their ASCII equivalents.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := foldTable[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// moodKeywords maps domain vocabulary to instrumentation tags. Checked in
// order so more specific entries win over generic nature terms.
var moodKeywords = []struct {
	words []string
	mood  string
}{
	{[]string{"fortress", "citadel", "castle", "rampart"}, "solemn medieval strings and low choir"},
	{[]string{"church", "cathedral", "monastery", "basilica", "chapel"}, "quiet organ and distant choir"},
	{[]string{"palace", "mansion", "villa"}, "grand piano and chamber orchestra"},
	{[]string{"tower", "bastion", "gate"}, "mysterious wooden flute over a low drone"},
	{[]string{"ruin", "ancient", "roman", "archaeological"}, "sparse lyre and wind through stone"},
	{[]string{"forest", "mountain", "river", "lake", "park", "garden", "hill"}, "field-recording textures and soft pads"},
	{[]string{"museum", "theatre", "theater", "opera", "gallery"}, "elegant string quartet, hushed hall ambience"},
	{[]string{"bridge", "harbor", "harbour", "port"}, "slow brass swells and water ambience"},
	{[]string{"square", "market", "plaza", "street"}, "gentle accordion and distant crowd murmur"},
}

// KeywordMood returns an instrumentation tag for the description via the local
// keyword table. Always non-empty; unknown vocabulary gets the generic entry.
func KeywordMood(description string) string {
	lower := strings.ToLower(Fold(description))
	for _, entry := range moodKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.mood
			}
		}
	}
	return defaultMood
}

// TruncateAtWord truncates s to at most max bytes, cutting at the last space
// before the limit when one exists so words stay whole.
func TruncateAtWord(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	} else {
		// No word boundary in range; back up so a multi-byte rune is not split.
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
	}
	return strings.TrimRight(cut, " ,.")
}
