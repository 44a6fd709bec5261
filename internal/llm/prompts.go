package llm

import (
	"fmt"

	"github.com/cryptobrief/refinery/internal/model"
)

// System instructions for the two calls.
const (
	classifySystemPrompt = "You are a crypto news evaluator. Focus on crypto/blockchain content. Respond with valid JSON."

	classifyTextSystemPrompt = "You are a crypto news evaluator. Focus on crypto/blockchain content. Respond with plain text starting with PASS or BLOCK."

	rewriteSystemPrompt = "You are a crypto news processor. Extract ALL crypto tickers from names (Bitcoin→BTC). " +
		"Money formatting: under $1 million use commas ($750,000), at or above $1 million use words ($2.5 million). " +
		"Commas ONLY allowed in dollar amounts, nowhere else. Always respond with valid JSON."
)

const inclusiveRubric = `You are a crypto and blockchain news filter specializing in cryptocurrency content. Your job is to identify news specifically about crypto, blockchain, DeFi, and digital assets.

ALWAYS PASS news about:
- ANY crypto price movements, market cap changes, volume spikes, whale movements, liquidations, exchange flows
- Bitcoin (BTC), Ethereum (ETH), major altcoins (SOL, ADA, AVAX, DOT, MATIC), memecoins with significant movement, stablecoin developments
- DeFi: DEX volumes, staking, lending protocols, hacks or exploits, TVL changes, launches, governance votes
- NFTs, blockchain gaming, metaverse projects, play-to-earn economies
- Blockchain technology: upgrades, hard forks, Layer 2, bridges, zero-knowledge proofs, scalability
- Mining: hash rate, difficulty, profitability, bans, ASIC developments
- Institutional adoption: corporate purchases, ETFs, custody, payment integration
- Regulation: SEC actions on crypto, crypto tax policy, exchange licenses, stablecoin rules, CBDCs
- Exchanges: listings, volumes, security incidents, withdrawal issues
- Web3: DAOs, social tokens, decentralized identity, blockchain + AI, RWA tokenization

BLOCK news that is:
- General finance without crypto angle
- Traditional stock market only
- General technology without blockchain
- Macro economics without crypto impact
- Political news without crypto connection

When unsure, PASS. Also provide detailed metadata about the crypto relevance.`

const strictRubric = `You are a strict crypto news filter. Only genuinely market-moving events pass; routine coverage blocks.

PASS ONLY news about:
- A major asset (BTC, ETH, top-20 altcoin) moving more than 5% within a day
- Hacks, exploits, or thefts above $10 million
- Regulatory or legal actions with an impact above $100 million or affecting a major exchange, stablecoin, or ETF
- Bankruptcy, insolvency, or halted withdrawals at a significant exchange or protocol
- Corporate or sovereign purchases above $100 million
- Network-level incidents: chain halts, consensus failures, emergency hard forks

BLOCK everything else, including:
- Routine price commentary and technical analysis
- Minor protocol updates, partnerships, and listings
- Opinion pieces and predictions
- Small movements, small raises, small exploits

When unsure, BLOCK. Also provide detailed metadata about the crypto relevance.`

const classifyJSONContract = `Analyze this crypto news and respond with JSON:
{
    "decision": "PASS" or "BLOCK",
    "reason": "Brief explanation",
    "relevance_score": 0.0 to 1.0,
    "categories": ["DeFi", "Bitcoin", "Ethereum", "NFT", "Regulation", etc.],
    "importance": "HIGH", "MEDIUM", or "LOW",
    "mentioned_cryptos": ["BTC", "ETH", etc.],
    "mentioned_blockchains": ["Ethereum", "Solana", etc.]
}`

const classifyTextContract = `Analyze this crypto news and respond with plain text. The first word of your response must be PASS or BLOCK, followed by a brief reason.`

const rewritePrompt = `You are a crypto news processor that creates short urgent headlines for cryptocurrency news. Analyze this crypto article and create focused content.

ORIGINAL CRYPTO ARTICLE:
Headline: %s
Description: %s
Source: %s
Link: %s

IMPORTANT: If the description is missing, identical to the headline, or too brief:
1. Create a NEW crypto-focused description based on the headline
2. Use your crypto knowledge to provide relevant context
3. Include relevant metrics if known (price, percentage, volume)
4. Keep it crypto-focused and urgent

STYLE RULES:
1. Start with PERSON/ORGANIZATION/CRYPTO NAME then action
2. Use NO commas or periods in headlines EXCEPT in dollar amounts
3. MONEY FORMATTING:
   - Under $1 million: use exact amounts with commas: $750,000 (NOT $750k)
   - $1 million and above: use words: $2.5 million, $1.3 billion
   - Commas in dollar amounts are THE ONLY exception to the no-comma rule
4. ALWAYS include crypto tickers with $ prefix ($BTC $ETH $SOL)
5. Include percentages for price movements
6. Use urgent crypto trading tone with specific verbs: "pumps" "dumps" "surges" "crashes"

HEADLINE EXAMPLES:
- "Bitcoin $BTC surges 8%% to break $45,000 resistance as ETF approval nears"
- "Binance sees $2.1 billion in withdrawals following CEO resignation"
- "Solo miner strikes gold with $373,000 Bitcoin $BTC block beating millions of competitors"
- "$420 million liquidated from crypto market as Bitcoin $BTC drops below $40,000"

TICKER EXTRACTION:
Extract ALL crypto tickers mentioned by name or symbol (max 5, most important).
Map names to tickers: Bitcoin→BTC, Ethereum→ETH, Solana→SOL, Cardano→ADA, Dogecoin→DOGE, Polygon→MATIC, Chainlink→LINK, Uniswap→UNI, Aave→AAVE, Pepe→PEPE.

NUMERIC VALUES:
If the article mentions specific numbers, extract them:
- Price: "$45,000" → store actual number
- Percentage: "surged 15%%" → store 15.0
- Volume: "$2.3 billion volume" → store number
- Market cap: "$1 trillion market cap" → store number

Create the following JSON:

{
    "processed_headline": "headline (max 120 chars, commas ONLY in dollar amounts)",
    "processed_description": "crypto-focused description (max 180 chars, commas ONLY in dollar amounts)",
    "tickers": ["BTC", "ETH", etc.] max 5 tickers - NEVER empty, NEVER ["CRYPTO"],
    "sentiment": "BULLISH" or "BEARISH" or "NEUTRAL",
    "market_impact": "crypto market implications (max 200 chars)",
    "price_mentioned": null or number,
    "price_change_percent": null or number,
    "volume_mentioned": null or number,
    "market_cap_mentioned": null or number
}`

// Placeholders for missing or duplicated descriptions, one per stage.
const (
	classifyDescPlaceholder = "[No description - evaluate based on headline]"
	rewriteDescPlaceholder  = "[CREATE CRYPTO DESCRIPTION - Original missing/identical]"
)

// BuildClassifyPrompt embeds the candidate into the selected rubric.
func BuildClassifyPrompt(c model.Candidate, rubric model.Rubric, format model.ResponseFormat) string {
	body := inclusiveRubric
	if rubric == model.RubricStrict {
		body = strictRubric
	}

	contract := classifyJSONContract
	if format == model.FormatText {
		contract = classifyTextContract
	}

	return fmt.Sprintf(`%s

%s

CRYPTO NEWS:
Headline: %s
Description: %s
Source: %s`,
		body,
		contract,
		c.Headline,
		c.PromptDescription(classifyDescPlaceholder),
		sourceOrUnknown(c.SourceName))
}

// BuildRewritePrompt embeds the candidate into the rewrite style prompt.
func BuildRewritePrompt(c model.Candidate) string {
	return fmt.Sprintf(rewritePrompt,
		c.Headline,
		c.PromptDescription(rewriteDescPlaceholder),
		sourceOrUnknown(c.SourceName),
		c.Link)
}

func sourceOrUnknown(source string) string {
	if source == "" {
		return "Unknown"
	}
	return source
}
