package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cryptobrief/refinery/internal/model"
)

// Regexes for recovering figures the model left out of the optional numeric
// fields. Scale words are matched together with the number so "$2.5 billion"
// resolves to 2500000000.
var (
	dollarPattern  = regexp.MustCompile(`(?i)\$\s*([\d,]+(?:\.\d+)?)\s*(million|billion|trillion)?`)
	percentPattern = regexp.MustCompile(`([\d]+(?:\.\d+)?)\s*%`)
)

// fillNumericFallbacks recovers figures from the original text when the
// rewrite response carried null numeric fields. Dollar amounts are assigned
// by the words around them: "volume" and "market cap" claim their matches,
// the first unclaimed amount becomes the price.
func fillNumericFallbacks(story *model.RefinedStory, candidate model.Candidate) {
	text := candidate.Headline + " " + candidate.Description

	price, volume, marketCap := extractDollarAmounts(text)
	if story.Price == nil && price != nil {
		story.Price = price
	}
	if story.Volume == nil && volume != nil {
		story.Volume = volume
	}
	if story.MarketCap == nil && marketCap != nil {
		story.MarketCap = marketCap
	}
	if story.PriceChangePercent == nil {
		if v, ok := extractPercent(text); ok {
			story.PriceChangePercent = &v
		}
	}
}

// contextWindow is how far around a dollar match the classifying keywords
// ("volume", "market cap") are looked for.
const contextWindow = 20

func extractDollarAmounts(text string) (price, volume, marketCap *float64) {
	lower := strings.ToLower(text)

	for _, loc := range dollarPattern.FindAllStringSubmatchIndex(text, -1) {
		value, ok := parseDollarMatch(text, loc)
		if !ok {
			continue
		}

		start := loc[0] - contextWindow
		if start < 0 {
			start = 0
		}
		end := loc[1] + contextWindow
		if end > len(lower) {
			end = len(lower)
		}
		context := lower[start:end]

		switch {
		case strings.Contains(context, "market cap"):
			if marketCap == nil {
				v := value
				marketCap = &v
			}
		case strings.Contains(context, "volume"):
			if volume == nil {
				v := value
				volume = &v
			}
		default:
			if price == nil {
				v := value
				price = &v
			}
		}
	}

	return price, volume, marketCap
}

func parseDollarMatch(text string, loc []int) (float64, bool) {
	raw := strings.ReplaceAll(text[loc[2]:loc[3]], ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}

	scale := ""
	if loc[4] >= 0 {
		scale = strings.ToLower(text[loc[4]:loc[5]])
	}
	switch scale {
	case "million":
		value *= 1_000_000
	case "billion":
		value *= 1_000_000_000
	case "trillion":
		value *= 1_000_000_000_000
	}

	return value, true
}

func extractPercent(text string) (float64, bool) {
	match := percentPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
