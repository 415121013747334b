package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	unifiedgenai "google.golang.org/genai"

	"github.com/geotone-app/geotone/internal/models"
)

// Trivia generates one multiple-choice question about a landmark using the
// unified genai SDK. On any failure it returns a deterministic local question
// so the caller always has something to show.
func (c *Client) Trivia(ctx context.Context, name, description string) (*models.Trivia, error) {
	if c.unifiedClient == nil {
		return fallbackTrivia(name), nil
	}

	prompt := fmt.Sprintf(
		"Write one multiple-choice trivia question about this landmark. "+
			"Respond with JSON only: {\"question\":string,\"choices\":[4 strings],\"answer\":int}. "+
			"answer is the zero-based index of the correct choice.\n\nLandmark: %s\n%s",
		name, description)

	contents := []*unifiedgenai.Content{
		{
			Role:  "user",
			Parts: []*unifiedgenai.Part{unifiedgenai.NewPartFromText(prompt)},
		},
	}

	resp, err := c.unifiedClient.Models.GenerateContent(ctx, c.modelTrivia, contents, &unifiedgenai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		log.Warn().Err(err).Str("model", c.modelTrivia).Msg("Trivia generation failed, using fallback")
		return fallbackTrivia(name), nil
	}

	raw := resp.Text()
	logModelResponse("Trivia", raw)

	var t models.Trivia
	if err := json.Unmarshal([]byte(extractJSON(raw)), &t); err != nil {
		log.Warn().Err(err).Msg("Trivia response was not valid JSON, using fallback")
		return fallbackTrivia(name), nil
	}
	if t.Question == "" || len(t.Choices) < 2 || t.Answer < 0 || t.Answer >= len(t.Choices) {
		log.Warn().Msg("Trivia response incomplete, using fallback")
		return fallbackTrivia(name), nil
	}
	return &t, nil
}

// extractJSON strips markdown fences models sometimes wrap JSON in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

func fallbackTrivia(name string) *models.Trivia {
	subject := name
	if subject == "" {
		subject = "this landmark"
	}
	return &models.Trivia{
		Question: fmt.Sprintf("Which of these would you most likely hear near %s?", subject),
		Choices: []string{
			"A guided tour in progress",
			"A rocket launch countdown",
			"A Formula 1 pit stop",
			"A submarine sonar ping",
		},
		Answer: 0,
	}
}
