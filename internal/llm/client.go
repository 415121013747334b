package llm

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	unifiedgenai "google.golang.org/genai"
)

// maxResponseLogBytes is the max length of a model response body to log in full.
const maxResponseLogBytes = 2048

// Client wraps the Gemini API for the text side of the pipeline: translation,
// mood inference and trivia. Every method is best-effort from the caller's
// perspective; callers substitute local fallbacks on error.
type Client struct {
	modelText     string
	modelTrivia   string
	llmText       llms.Model
	unifiedClient *unifiedgenai.Client // unified genai SDK for trivia
}

// NewClient creates a new LLM client.
// apiEndpoint: optional Gemini API base URL; when set, all Gemini calls use it.
func NewClient(apiKey, modelText, modelTrivia, apiEndpoint string) *Client {
	if modelText == "" {
		modelText = "gemini-2.5-flash-lite"
	}
	if modelTrivia == "" {
		modelTrivia = modelText
	}

	var langchaingoHTTPClient *http.Client
	if apiEndpoint != "" {
		langchaingoHTTPClient = httpClientForEndpoint(apiEndpoint)
	}

	var llmText llms.Model
	if apiKey != "" {
		textOpts := []googleai.Option{googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(modelText)}
		if langchaingoHTTPClient != nil {
			textOpts = append(textOpts, googleai.WithHTTPClient(langchaingoHTTPClient))
		}
		var err error
		llmText, err = googleai.New(context.Background(), textOpts...)
		if err != nil {
			log.Error().Err(err).Str("model", modelText).Msg("Failed to initialize text model, using local fallbacks")
			llmText = nil
		}
	}

	var unifiedClient *unifiedgenai.Client
	if apiKey != "" {
		unifiedCfg := &unifiedgenai.ClientConfig{APIKey: apiKey}
		if apiEndpoint != "" {
			unifiedCfg.HTTPOptions = unifiedgenai.HTTPOptions{BaseURL: apiEndpoint}
		}
		var err error
		unifiedClient, err = unifiedgenai.NewClient(context.Background(), unifiedCfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize unified genai client for trivia")
			unifiedClient = nil
		}
	}

	log.Info().
		Str("model_text", modelText).
		Str("model_trivia", modelTrivia).
		Str("api_endpoint", apiEndpoint).
		Bool("text_model", llmText != nil).
		Bool("trivia_model", unifiedClient != nil).
		Msg("LLM client initialized")

	return &Client{
		modelText:     modelText,
		modelTrivia:   modelTrivia,
		llmText:       llmText,
		unifiedClient: unifiedClient,
	}
}

// generate runs a single-prompt completion against the text model.
func (c *Client) generate(ctx context.Context, caller, prompt string) (string, error) {
	if c.llmText == nil {
		return "", errNoModel
	}
	raw, err := llms.GenerateFromSinglePrompt(ctx, c.llmText, prompt)
	if err != nil {
		return "", err
	}
	logModelResponse(caller, raw)
	return strings.TrimSpace(raw), nil
}

// logModelResponse logs a model response, truncating if over maxResponseLogBytes.
func logModelResponse(caller, raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("caller", caller).Str("model_response", raw).Msg("Model response")
		return
	}
	log.Debug().
		Str("caller", caller).
		Str("model_response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("model_response_len", len(raw)).
		Msg("Model response")
}

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint.
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid GEMINI_API_ENDPOINT, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.URL.Path = path.Join(e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	if req.URL.RawQuery != "" {
		req2.URL.RawQuery = req.URL.RawQuery
	}
	return e.next.RoundTrip(req2)
}
