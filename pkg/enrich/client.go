// Package enrich is the optional narrative enrichment stage sitting behind
// the engine's enrichment boundary. It consumes finished LineVerdicts and
// attaches richer prose explanations; the core engine never calls into this
// package and its absence never changes a verdict.
package enrich

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/venuelogic/linecheck/internal/config"
	"github.com/venuelogic/linecheck/internal/explain"
	"github.com/venuelogic/linecheck/internal/model"
)

// Client produces an enriched explanation for a verdict. Implementations may
// fail; callers fall back to the deterministic rendering.
type Client interface {
	Enrich(ctx context.Context, v model.LineVerdict) (*model.Explanation, error)
}

// AnthropicClient enriches explanations through the Anthropic Messages API,
// leashed: responses are schema-validated and discarded when they contradict
// the engine's verdict, and calls are rate limited with a hard per-batch
// budget.
type AnthropicClient struct {
	cfg     config.EnrichConfig
	client  sdk.Client
	limiter *rate.Limiter
	budget  int
}

// NewAnthropicClient creates an enrichment client from configuration.
func NewAnthropicClient(cfg config.EnrichConfig) (*AnthropicClient, error) {
	if cfg.Key == "" {
		return nil, eris.New("enrich: missing API key")
	}
	cps := cfg.CallsPerSecond
	if cps <= 0 {
		cps = 1
	}
	return &AnthropicClient{
		cfg:     cfg,
		client:  sdk.NewClient(option.WithAPIKey(cfg.Key)),
		limiter: rate.NewLimiter(rate.Limit(cps), 1),
		budget:  cfg.MaxCalls,
	}, nil
}

// narrative is the strict response schema the model must produce.
type narrative struct {
	Headline         string                  `json:"headline"`
	Explanation      string                  `json:"explanation"`
	SuggestedActions []model.SuggestedAction `json:"suggested_actions"`
	EngineVerdict    string                  `json:"engine_verdict"`
}

// Enrich requests a narrative explanation for the verdict. It returns an
// error once the call budget is spent; the caller keeps the deterministic
// explanation in that case.
func (c *AnthropicClient) Enrich(ctx context.Context, v model.LineVerdict) (*model.Explanation, error) {
	if c.budget <= 0 {
		return nil, eris.New("enrich: call budget exhausted")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "enrich: rate limit wait")
	}
	c.budget--

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		System: []sdk.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(v))),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: messages call")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	n, err := parseNarrative(text.String())
	if err != nil {
		return nil, err
	}
	if err := validateNarrative(n, v); err != nil {
		zap.L().Warn("enrich: narrative rejected",
			zap.String("sku_id", v.SKUID),
			zap.Error(err),
		)
		return nil, err
	}

	return &model.Explanation{
		ModelID:          c.cfg.Model,
		Headline:         n.Headline,
		Text:             n.Explanation,
		SuggestedActions: n.SuggestedActions,
		EngineVerdict:    v.Verdict,
		EngineFactsHash:  explain.FactsHash(v),
		LineFingerprint:  v.LineFingerprint,
	}, nil
}

const systemPrompt = "You explain invoice pricing verdicts to hospitality reviewers. " +
	"Respond with a single JSON object: headline, explanation, suggested_actions " +
	"(array of {label, reason}, at most 3), engine_verdict. Restate the engine's " +
	"verdict exactly; never invent numbers not present in the facts."

func buildPrompt(v model.LineVerdict) string {
	facts, _ := json.Marshal(v)
	return "Engine facts:\n" + string(facts)
}

func parseNarrative(raw string) (narrative, error) {
	raw = strings.TrimSpace(raw)
	// Tolerate fenced output.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var n narrative
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &n); err != nil {
		return narrative{}, eris.Wrap(err, "enrich: parse narrative")
	}
	return n, nil
}

// validateNarrative enforces the leash: length limits, bounded actions, and a
// verdict echo that matches the engine. A narrative contradicting the engine
// is discarded, never surfaced.
func validateNarrative(n narrative, v model.LineVerdict) error {
	if n.Headline == "" || len(n.Headline) > 100 {
		return eris.New("enrich: headline missing or too long")
	}
	if n.Explanation == "" || len(n.Explanation) > 500 {
		return eris.New("enrich: explanation missing or too long")
	}
	if len(n.SuggestedActions) == 0 || len(n.SuggestedActions) > 3 {
		return eris.New("enrich: suggested_actions out of bounds")
	}
	for _, a := range n.SuggestedActions {
		if a.Label == "" || a.Reason == "" {
			return eris.New("enrich: suggested action missing label or reason")
		}
	}
	if n.EngineVerdict != string(v.Verdict) {
		return eris.Errorf("enrich: narrative verdict %q contradicts engine %q", n.EngineVerdict, v.Verdict)
	}
	return nil
}
