package llm

import (
	"testing"

	"github.com/cryptobrief/refinery/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluation_JSONPass(t *testing.T) {
	content := `{
		"decision": "PASS",
		"reason": "Major BTC price move",
		"relevance_score": 0.92,
		"categories": ["Bitcoin"],
		"importance": "HIGH",
		"mentioned_cryptos": ["BTC"],
		"mentioned_blockchains": ["Bitcoin"]
	}`

	eval, err := ParseEvaluation(content, model.FormatJSON)
	require.NoError(t, err)
	assert.True(t, eval.Passed())
	assert.Equal(t, "Major BTC price move", eval.Reason)
	assert.InDelta(t, 0.92, eval.RelevanceScore, 0.001)
	assert.Equal(t, "HIGH", eval.Importance)
}

func TestParseEvaluation_JSONBlock(t *testing.T) {
	eval, err := ParseEvaluation(`{"decision": "BLOCK", "reason": "No crypto angle"}`, model.FormatJSON)
	require.NoError(t, err)
	assert.False(t, eval.Passed())
}

func TestParseEvaluation_JSONUnknownDecision(t *testing.T) {
	_, err := ParseEvaluation(`{"decision": "MAYBE"}`, model.FormatJSON)
	assert.Error(t, err)
}

func TestParseEvaluation_JSONMalformed(t *testing.T) {
	_, err := ParseEvaluation(`not json at all`, model.FormatJSON)
	assert.Error(t, err)
}

func TestParseEvaluation_JSONCodeFenced(t *testing.T) {
	content := "```json\n{\"decision\": \"PASS\", \"reason\": \"ok\"}\n```"
	eval, err := ParseEvaluation(content, model.FormatJSON)
	require.NoError(t, err)
	assert.True(t, eval.Passed())
}

func TestParseEvaluation_TextPass(t *testing.T) {
	eval, err := ParseEvaluation("PASS - significant exchange hack", model.FormatText)
	require.NoError(t, err)
	assert.True(t, eval.Passed())
	assert.Contains(t, eval.Reason, "exchange hack")
}

func TestParseEvaluation_TextBlock(t *testing.T) {
	// Anything not starting with the PASS token blocks, including
	// responses that bury a PASS later in the text.
	for _, content := range []string{
		"BLOCK - routine commentary",
		"The verdict is PASS",
		"pass - lowercase does not count",
	} {
		eval, err := ParseEvaluation(content, model.FormatText)
		require.NoError(t, err)
		assert.False(t, eval.Passed(), "content: %s", content)
	}
}

func TestParseEvaluation_TextEmpty(t *testing.T) {
	_, err := ParseEvaluation("   ", model.FormatText)
	assert.Error(t, err)
}

const validRewrite = `{
	"processed_headline": "Bitcoin $BTC surges 8% to break $45,000 resistance",
	"processed_description": "BTC pushes past resistance on heavy ETF inflow speculation",
	"tickers": ["BTC"],
	"sentiment": "BULLISH",
	"market_impact": "Momentum may pull altcoins upward",
	"price_mentioned": 45000,
	"price_change_percent": 8.0,
	"volume_mentioned": null,
	"market_cap_mentioned": null
}`

func TestParseRefinedStory_Valid(t *testing.T) {
	story, err := ParseRefinedStory(validRewrite, "BTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, story.Tickers)
	assert.Equal(t, model.SentimentBullish, story.Sentiment)
	require.NotNil(t, story.Price)
	assert.InDelta(t, 45000, *story.Price, 0.001)
	assert.Nil(t, story.Volume)
}

func TestParseRefinedStory_MissingRequiredField(t *testing.T) {
	content := `{
		"processed_headline": "Bitcoin headline",
		"processed_description": "desc",
		"tickers": ["BTC"],
		"market_impact": "impact"
	}`

	_, err := ParseRefinedStory(content, "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment")
}

func TestParseRefinedStory_EmptyTickersFallBack(t *testing.T) {
	content := `{
		"processed_headline": "h",
		"processed_description": "d",
		"tickers": [],
		"sentiment": "NEUTRAL",
		"market_impact": "i"
	}`

	story, err := ParseRefinedStory(content, "BTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, story.Tickers)
}

func TestParseRefinedStory_PlaceholderTickerFallsBack(t *testing.T) {
	content := `{
		"processed_headline": "h",
		"processed_description": "d",
		"tickers": ["CRYPTO"],
		"sentiment": "NEUTRAL",
		"market_impact": "i"
	}`

	story, err := ParseRefinedStory(content, "ETH")
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH"}, story.Tickers)
}

func TestParseRefinedStory_TickersCappedAtFive(t *testing.T) {
	content := `{
		"processed_headline": "h",
		"processed_description": "d",
		"tickers": ["BTC", "ETH", "SOL", "ADA", "DOGE", "PEPE", "SHIB"],
		"sentiment": "BEARISH",
		"market_impact": "i"
	}`

	story, err := ParseRefinedStory(content, "BTC")
	require.NoError(t, err)
	assert.Len(t, story.Tickers, model.MaxTickers)
}

func TestParseRefinedStory_TickersNormalized(t *testing.T) {
	content := `{
		"processed_headline": "h",
		"processed_description": "d",
		"tickers": ["$btc", " eth ", ""],
		"sentiment": "NEUTRAL",
		"market_impact": "i"
	}`

	story, err := ParseRefinedStory(content, "BTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, story.Tickers)
}
