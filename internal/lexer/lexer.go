// Package lexer turns AlgoScript source into positioned tokens.
//
// Lexing never fails: characters no rule accepts become single-character
// UNKNOWN tokens so that every lexical problem can be reported at once.
package lexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

type rule struct {
	pattern *regexp.Regexp
	kind    Kind
	// keyword rules only match at a word boundary on both sides.
	keyword bool
	// skip rules consume input without producing a token.
	skip bool
}

func literal(pattern string, kind Kind) rule {
	return rule{pattern: regexp.MustCompile(`^(?:` + pattern + `)`), kind: kind}
}

func keyword(pattern string, kind Kind) rule {
	return rule{pattern: regexp.MustCompile(`^(?:` + pattern + `)\b`), kind: kind, keyword: true}
}

func skip(pattern string) rule {
	return rule{pattern: regexp.MustCompile(`^(?:` + pattern + `)`), skip: true}
}

// rules are tried in order and the first match wins.
var rules = []rule{
	literal(`"[^"]*"`, KindString),
	literal(`\d+\.?\d*%`, KindPercentage),

	keyword(`DAILY`, KindDaily),
	keyword(`4H`, KindH4),
	keyword(`1H`, KindH1),
	keyword(`15M`, KindM15),
	keyword(`5M`, KindM5),

	literal(`\d+\.?\d*`, KindNumber),

	keyword(`SYMBOL`, KindSymbol),
	keyword(`TIMEFRAME`, KindTimeframe),
	keyword(`ON`, KindOn),
	keyword(`IF`, KindIf),
	keyword(`AND`, KindAnd),
	keyword(`OR`, KindOr),
	keyword(`NOT`, KindNot),
	keyword(`END`, KindEnd),
	keyword(`SET`, KindSet),
	keyword(`LOG`, KindLog),

	keyword(`NEW_CANDLE`, KindNewCandle),
	keyword(`ORDER_FILLED`, KindOrderFilled),
	keyword(`PRICE_CHANGE`, KindPriceChange),

	keyword(`PRICE`, KindPrice),
	keyword(`EMA`, KindEMA),
	keyword(`RSI`, KindRSI),
	keyword(`MACD_HISTOGRAM`, KindMACDHistogram),
	keyword(`MACD`, KindMACD),
	keyword(`VOLUME`, KindVolume),

	keyword(`BUY`, KindBuy),
	keyword(`SELL`, KindSell),
	keyword(`MARKET_ORDER`, KindMarketOrder),
	keyword(`LIMIT_ORDER`, KindLimitOrder),

	keyword(`STOP_LOSS`, KindStopLoss),
	keyword(`TAKE_PROFIT`, KindTakeProfit),
	keyword(`ENTRY_PRICE`, KindEntryPrice),
	keyword(`BALANCE`, KindBalance),
	keyword(`POSITION`, KindPosition),

	keyword(`CROSSES`, KindCrosses),
	keyword(`UPWARDS`, KindUpwards),
	keyword(`DOWNWARDS`, KindDownwards),
	keyword(`IS`, KindIs),
	keyword(`POSITIVE`, KindPositive),
	keyword(`NEGATIVE`, KindNegative),
	keyword(`LESS(?:[ \t]+|_)THAN`, KindLessThan),
	keyword(`GREATER(?:[ \t]+|_)THAN`, KindGreaterThan),
	keyword(`AT`, KindAt),
	keyword(`OF`, KindOf),
	keyword(`WITH`, KindWith),
	keyword(`ABOVE`, KindAbove),
	keyword(`BELOW`, KindBelow),

	literal(`:`, KindColon),
	literal(`,`, KindComma),
	literal(`\(`, KindLParen),
	literal(`\)`, KindRParen),

	skip(`[ \t\r]+`),
	skip(`#.*`),
}

// Tokenize converts source into tokens. Every line except a trailing blank one
// ends with a NEWLINE token and the stream always ends with a single EOF token.
func Tokenize(source string) []Token {
	lines := strings.Split(source, "\n")
	tokens := make([]Token, 0, len(source)/3+2)

	for i, line := range lines {
		lineNum := i + 1
		tokens = append(tokens, tokenizeLine(line, lineNum)...)

		if lineNum < len(lines) || strings.TrimSpace(line) != "" {
			tokens = append(tokens, Token{
				Kind:   KindNewline,
				Text:   "\n",
				Line:   lineNum,
				Column: utf8.RuneCountInString(line) + 1,
			})
		}
	}

	tokens = append(tokens, Token{Kind: KindEOF, Text: "", Line: len(lines), Column: 1})

	return tokens
}

func tokenizeLine(line string, lineNum int) []Token {
	var tokens []Token

	pos := 0
	column := 1

	for pos < len(line) {
		rest := line[pos:]
		matched := false

		for _, r := range rules {
			if r.keyword && pos > 0 && isWordByte(line[pos-1]) {
				continue
			}

			text := r.pattern.FindString(rest)
			if text == "" {
				continue
			}

			if !r.skip {
				value := text
				if r.kind == KindString {
					value = text[1 : len(text)-1]
				}

				tokens = append(tokens, Token{Kind: r.kind, Text: value, Line: lineNum, Column: column})
			}

			pos += len(text)
			column += utf8.RuneCountInString(text)
			matched = true

			break
		}

		if !matched {
			ch, size := utf8.DecodeRuneInString(rest)
			tokens = append(tokens, Token{Kind: KindUnknown, Text: string(ch), Line: lineNum, Column: column})
			pos += size
			column++
		}
	}

	return tokens
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ValidateTokens returns one message per UNKNOWN token, in stream order.
func ValidateTokens(tokens []Token) []string {
	errs := []string{}

	for _, t := range tokens {
		if t.Kind == KindUnknown {
			errs = append(errs, fmt.Sprintf("Unknown token '%s' at line %d, column %d", t.Text, t.Line, t.Column))
		}
	}

	return errs
}
