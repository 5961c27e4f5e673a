package lexer

import "fmt"

// Kind identifies the lexical class of a token.
type Kind string

const (
	// Literals
	KindString     Kind = "STRING"
	KindNumber     Kind = "NUMBER"
	KindPercentage Kind = "PERCENTAGE"

	// Declarations and control keywords
	KindSymbol    Kind = "SYMBOL"
	KindTimeframe Kind = "TIMEFRAME"
	KindOn        Kind = "ON"
	KindIf        Kind = "IF"
	KindAnd       Kind = "AND"
	KindOr        Kind = "OR"
	KindNot       Kind = "NOT"
	KindEnd       Kind = "END"
	KindSet       Kind = "SET"
	KindLog       Kind = "LOG"

	// Events
	KindNewCandle   Kind = "NEW_CANDLE"
	KindOrderFilled Kind = "ORDER_FILLED"
	KindPriceChange Kind = "PRICE_CHANGE"

	// Indicators and market values
	KindPrice         Kind = "PRICE"
	KindEMA           Kind = "EMA"
	KindRSI           Kind = "RSI"
	KindMACD          Kind = "MACD"
	KindMACDHistogram Kind = "MACD_HISTOGRAM"
	KindVolume        Kind = "VOLUME"

	// Actions
	KindBuy         Kind = "BUY"
	KindSell        Kind = "SELL"
	KindMarketOrder Kind = "MARKET_ORDER"
	KindLimitOrder  Kind = "LIMIT_ORDER"

	// Position management
	KindStopLoss   Kind = "STOP_LOSS"
	KindTakeProfit Kind = "TAKE_PROFIT"
	KindEntryPrice Kind = "ENTRY_PRICE"
	KindBalance    Kind = "BALANCE"
	KindPosition   Kind = "POSITION"

	// Operators
	KindCrosses     Kind = "CROSSES"
	KindUpwards     Kind = "UPWARDS"
	KindDownwards   Kind = "DOWNWARDS"
	KindIs          Kind = "IS"
	KindPositive    Kind = "POSITIVE"
	KindNegative    Kind = "NEGATIVE"
	KindLessThan    Kind = "LESS_THAN"
	KindGreaterThan Kind = "GREATER_THAN"
	KindAt          Kind = "AT"
	KindOf          Kind = "OF"
	KindWith        Kind = "WITH"
	KindAbove       Kind = "ABOVE"
	KindBelow       Kind = "BELOW"

	// Timeframe literals
	KindDaily Kind = "DAILY"
	KindH4    Kind = "4H"
	KindH1    Kind = "1H"
	KindM15   Kind = "15M"
	KindM5    Kind = "5M"

	// Punctuation
	KindColon   Kind = "COLON"
	KindComma   Kind = "COMMA"
	KindLParen  Kind = "LPAREN"
	KindRParen  Kind = "RPAREN"
	KindNewline Kind = "NEWLINE"

	KindEOF     Kind = "EOF"
	KindUnknown Kind = "UNKNOWN"
)

// IsTimeframe reports whether k is one of the timeframe literals.
func (k Kind) IsTimeframe() bool {
	switch k {
	case KindDaily, KindH4, KindH1, KindM15, KindM5:
		return true
	}

	return false
}

// IsEvent reports whether k names a handler event.
func (k Kind) IsEvent() bool {
	return k == KindNewCandle || k == KindOrderFilled || k == KindPriceChange
}

// IsIndicator reports whether k names a parameterizable indicator.
func (k Kind) IsIndicator() bool {
	switch k {
	case KindEMA, KindRSI, KindMACD, KindMACDHistogram:
		return true
	}

	return false
}

// IsAction reports whether k starts an action statement.
func (k Kind) IsAction() bool {
	switch k {
	case KindBuy, KindSell, KindSet, KindLog:
		return true
	}

	return false
}

// Token is one positioned lexeme. Line and Column are 1-based.
type Token struct {
	Kind   Kind   `json:"type"`
	Text   string `json:"value"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Kind, t.Text, t.Line, t.Column)
}
