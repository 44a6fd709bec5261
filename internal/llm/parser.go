package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cryptobrief/refinery/internal/model"
)

// ParseEvaluation decodes a classification response in the configured format.
// JSON responses must carry a decision field; plain text must start with the
// PASS or BLOCK token. Anything else is an error the caller degrades to BLOCK.
func ParseEvaluation(content string, format model.ResponseFormat) (*model.Evaluation, error) {
	if format == model.FormatText {
		return parseTextEvaluation(content)
	}
	return parseJSONEvaluation(content)
}

func parseJSONEvaluation(content string) (*model.Evaluation, error) {
	var eval model.Evaluation
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &eval); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}

	switch eval.Decision {
	case model.DecisionPass, model.DecisionBlock:
	default:
		return nil, fmt.Errorf("unexpected decision %q", eval.Decision)
	}

	return &eval, nil
}

func parseTextEvaluation(content string) (*model.Evaluation, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("empty evaluation response")
	}

	eval := model.Evaluation{Decision: model.DecisionBlock, Reason: text}
	if strings.HasPrefix(text, model.DecisionPass) {
		eval.Decision = model.DecisionPass
	}

	return &eval, nil
}

// requiredRewriteFields must all be present in the rewrite response or the
// whole call is treated as failed and the candidate is dropped for the cycle.
var requiredRewriteFields = []string{
	"processed_headline",
	"processed_description",
	"tickers",
	"sentiment",
	"market_impact",
}

// genericTickerPlaceholder is the unhelpful tag some models emit instead of
// real tickers; it is replaced with the configured default.
const genericTickerPlaceholder = "CRYPTO"

// ParseRefinedStory decodes and validates a rewrite response. The ticker list
// is never left empty: an empty or placeholder list falls back to the default
// ticker, and anything past five entries is cut.
func ParseRefinedStory(content, defaultTicker string) (*model.RefinedStory, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, fmt.Errorf("decode rewrite: %w", err)
	}

	for _, field := range requiredRewriteFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("rewrite response missing field %q", field)
		}
	}

	var story model.RefinedStory
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &story); err != nil {
		return nil, fmt.Errorf("decode rewrite: %w", err)
	}

	story.Tickers = normalizeTickers(story.Tickers, defaultTicker)
	return &story, nil
}

func normalizeTickers(tickers []string, fallback string) []string {
	cleaned := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(t, "$")))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}

	if len(cleaned) == 0 || (len(cleaned) == 1 && cleaned[0] == genericTickerPlaceholder) {
		cleaned = []string{fallback}
	}
	if len(cleaned) > model.MaxTickers {
		cleaned = cleaned[:model.MaxTickers]
	}

	return cleaned
}

// stripCodeFence removes a markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripCodeFence(content string) string {
	text := strings.TrimSpace(content)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
