package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sosguard/server/logger"
	"sosguard/shared"
)

// FallbackAdvice is returned whenever the advisory API cannot be reached
// or answers with anything unusable. Calm, actionable & always available.
const FallbackAdvice = "Mantenha a calma. Procure um local iluminado e com movimento. " +
	"Evite áreas isoladas e tente contato visual com estabelecimentos comerciais próximos."

const (
	defaultModel           = "gemini-flash"
	defaultBaseURL         = "https://generativelanguage.googleapis.com"
	defaultMaxOutputTokens = 150
	defaultTimeout         = 8 * time.Second
)

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Client fetches short safety guidance for a location. Advise never fails:
// on any error it returns the static fallback text.
type Client struct {
	httpClient      *http.Client
	apiKey          string
	model           string
	baseURL         string
	maxOutputTokens int
	logg            *zap.SugaredLogger
}

func NewClient(config shared.AdvisoryConfig) *Client {
	client := &Client{
		apiKey:          config.ApiKey,
		model:           config.Model,
		baseURL:         strings.TrimSuffix(config.BaseURL, "/"),
		maxOutputTokens: config.MaxOutputTokens,
		logg:            logger.NewLogger(),
	}

	if client.model == "" {
		client.model = defaultModel
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.maxOutputTokens <= 0 {
		client.maxOutputTokens = defaultMaxOutputTokens
	}

	timeout := defaultTimeout
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}
	client.httpClient = &http.Client{Timeout: timeout}

	return client
}

// Advise returns short safety guidance for the given location text
func (c *Client) Advise(ctx context.Context, locationText string) string {
	if c.apiKey == "" {
		return FallbackAdvice
	}

	advice, err := c.generateContent(ctx, locationText)
	if err != nil {
		c.logg.Infof("advisory request failed, using fallback: %v", err)
		return FallbackAdvice
	}

	return advice
}

func (c *Client) generateContent(ctx context.Context, locationText string) (string, error) {
	prompt := fmt.Sprintf(
		"O usuário está em uma situação de possível perigo na localização: %v. "+
			"Forneça 3 instruções de segurança curtas, calmas e acionáveis em Português Brasileiro.",
		locationText,
	)

	body, err := json.Marshal(generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.5,
			MaxOutputTokens: c.maxOutputTokens,
		},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%v/v1beta/models/%v:generateContent?key=%v", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Add("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("advisory API returned status %v", res.StatusCode)
	}

	decoded := generateContentResponse{}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return "", err
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("advisory API returned no candidates")
	}

	advice := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if advice == "" {
		return "", fmt.Errorf("advisory API returned empty text")
	}

	return advice, nil
}
