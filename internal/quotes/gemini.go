package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/eddiefleurent/options_tracker/internal/models"
	"github.com/eddiefleurent/options_tracker/internal/util"
)

const defaultGeminiModel = "gemini-2.5-flash"

const estimatePrompt = `You are an options pricing assistant.
Estimate the current fair market price per share of this listed equity option.
Today: %s
Underlying: %s at %.2f
Contract: %s, strike %.2f, expiring %s
Reply with JSON only, in the form {"price": <number>}.`

// GeminiEstimator asks a Gemini model for an option mark.
type GeminiEstimator struct {
	apiKey string
	model  string
	now    func() time.Time

	once     sync.Once
	client   *genai.Client
	initErr  error
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewGeminiEstimator creates an estimator. The client is created on first use.
func NewGeminiEstimator(apiKey, model string, now func() time.Time) *GeminiEstimator {
	if model == "" {
		model = defaultGeminiModel
	}
	if now == nil {
		now = time.Now
	}
	g := &GeminiEstimator{apiKey: apiKey, model: model, now: now}
	g.generate = g.generateContent
	return g
}

func (g *GeminiEstimator) generateContent(ctx context.Context, prompt string) (string, error) {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.initErr != nil {
		return "", fmt.Errorf("initializing Gemini client: %w", g.initErr)
	}

	temperature := float32(0)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}

// Estimate returns the model's per-share mark rounded to the cent.
func (g *GeminiEstimator) Estimate(ctx context.Context, leg models.OptionLeg, underlying float64) (float64, error) {
	prompt := fmt.Sprintf(estimatePrompt,
		g.now().Format(models.DateLayout),
		leg.Ticker, underlying,
		strings.ToLower(string(leg.Type)), leg.Strike, leg.Expiration,
	)
	text, err := g.generate(ctx, prompt)
	if err != nil {
		return 0, err
	}
	price, err := parseEstimate(text)
	if err != nil {
		return 0, fmt.Errorf("gemini estimate for %s %.2f %s: %w", leg.Ticker, leg.Strike, leg.Type, err)
	}
	return util.RoundToTick(price, util.CentTick), nil
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseEstimate reads {"price": n}, tolerating code fences and bare numbers.
func parseEstimate(text string) (float64, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload struct {
		Price *float64 `json:"price"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err == nil && payload.Price != nil {
		return validEstimate(*payload.Price)
	}

	m := numberPattern.FindString(text)
	if m == "" {
		return 0, fmt.Errorf("no price in model response %q", text)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, err
	}
	return validEstimate(f)
}

func validEstimate(f float64) (float64, error) {
	if f < 0 {
		return 0, fmt.Errorf("negative price %v", f)
	}
	return f, nil
}

var _ OptionEstimator = (*GeminiEstimator)(nil)
