package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errNoModel = errors.New("text model not configured")

// Translate translates text into the English pivot language. Callers treat
// any error as "keep the original text"; translation is always best-effort.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following landmark description to English. "+
			"Keep proper names unchanged. Answer with the translation only.\n\n%s", text)

	out, err := c.generate(ctx, "Translate", prompt)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("translate: empty model output")
	}
	return out, nil
}

// Mood infers a short mood/instrumentation descriptor for a landmark
// description. The prompt mirrors what the captioning side feeds music
// generation: mood, genre, instruments, tempo, cultural context, no props.
func (c *Client) Mood(ctx context.Context, description string) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze the following landmark description and generate a detailed music prompt "+
			"including: mood, musical style/genre, traditional instruments, tempo, "+
			"and cultural context. Do NOT include irrelevant objects like food or props. "+
			"Output in 15 words or less.\n\nDescription: %s\n\nMusic prompt:", description)

	out, err := c.generate(ctx, "Mood", prompt)
	if err != nil {
		return "", fmt.Errorf("mood inference: %w", err)
	}
	out = strings.Trim(out, `"`)
	if out == "" {
		return "", fmt.Errorf("mood inference: empty model output")
	}
	return out, nil
}
