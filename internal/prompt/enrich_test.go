package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

// fakeLang scripts the external text model.
type fakeLang struct {
	translate    string
	translateErr error
	mood         string
	moodErr      error
}

func (f *fakeLang) Translate(ctx context.Context, text string) (string, error) {
	return f.translate, f.translateErr
}

func (f *fakeLang) Mood(ctx context.Context, description string) (string, error) {
	return f.mood, f.moodErr
}

func TestEnrichNeverEmpty(t *testing.T) {
	e := NewEnricher(nil, 1000)
	for _, in := range []string{"", "   ", "castle on a cliff"} {
		out := e.Enrich(context.Background(), in, "")
		if out == "" {
			t.Errorf("Enrich(%q) returned empty prompt", in)
		}
		if !strings.Contains(out, "Music inspired by:") || !strings.Contains(out, "Mood:") {
			t.Errorf("Enrich(%q) missing template sections: %q", in, out)
		}
		if !strings.Contains(out, "no vocals") {
			t.Errorf("Enrich(%q) missing constraints: %q", in, out)
		}
	}
}

func TestEnrichFoldsDiacritics(t *testing.T) {
	e := NewEnricher(nil, 1000)
	out := e.Enrich(context.Background(), "Cetățuia din Brașov", "")
	if strings.ContainsAny(out, "țășâî") {
		t.Errorf("diacritics survived folding: %q", out)
	}
	if !strings.Contains(out, "Cetatuia din Brasov") {
		t.Errorf("expected folded text in prompt: %q", out)
	}
}

func TestEnrichUsesTranslationAndMood(t *testing.T) {
	lang := &fakeLang{translate: "old hilltop fortress", mood: "brooding low strings"}
	e := NewEnricher(lang, 1000)

	out := e.Enrich(context.Background(), "cetate veche pe deal", "cinematic")
	if !strings.Contains(out, "old hilltop fortress") {
		t.Errorf("translation not used: %q", out)
	}
	if !strings.Contains(out, "brooding low strings") {
		t.Errorf("inferred mood not used: %q", out)
	}
	if !strings.Contains(out, "Style: cinematic") {
		t.Errorf("style hint missing: %q", out)
	}
}

func TestEnrichSurvivesModelErrors(t *testing.T) {
	lang := &fakeLang{translateErr: errors.New("quota"), moodErr: errors.New("quota")}
	e := NewEnricher(lang, 1000)

	out := e.Enrich(context.Background(), "fortress ruins", "")
	if !strings.Contains(out, "fortress ruins") {
		t.Errorf("original text lost on model failure: %q", out)
	}
	// Keyword table supplies the mood when the model is down.
	if !strings.Contains(out, "solemn medieval strings") {
		t.Errorf("keyword mood not applied: %q", out)
	}
}

func TestKeywordMood(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"an old fortress wall", "solemn medieval strings and low choir"},
		{"gothic cathedral nave", "quiet organ and distant choir"},
		{"mountain lake at dawn", "field-recording textures and soft pads"},
		{"completely unrelated text", defaultMood},
	}
	for _, c := range cases {
		if got := KeywordMood(c.in); got != c.want {
			t.Errorf("KeywordMood(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEnrichRespectsMaxLen(t *testing.T) {
	e := NewEnricher(nil, 120)
	out := e.Enrich(context.Background(), strings.Repeat("fortress ", 100), "")
	if len(out) > 120 {
		t.Errorf("prompt is %d bytes, limit 120", len(out))
	}
	if strings.HasSuffix(out, " ") {
		t.Errorf("truncation left trailing space: %q", out)
	}
}

func TestTruncateAtWord(t *testing.T) {
	if got := TruncateAtWord("short text", 100); got != "short text" {
		t.Errorf("got %q", got)
	}
	got := TruncateAtWord("alpha beta gamma", 12)
	if got != "alpha beta" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateAtWordKeepsRunesWhole(t *testing.T) {
	// No space in range, and the limit lands inside a multi-byte rune.
	got := TruncateAtWord("寺院の鐘の音", 4)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if len(got) > 4 {
		t.Errorf("got %d bytes, limit 4", len(got))
	}
}

func TestFold(t *testing.T) {
	if got := Fold("Brațul Sfântu"); got != "Bratul Sfantu" {
		t.Errorf("got %q", got)
	}
	if got := Fold("plain ascii"); got != "plain ascii" {
		t.Errorf("got %q", got)
	}
}
