package types

type IndicatorType string

const (
	IndicatorTypeEMA           IndicatorType = "EMA"
	IndicatorTypeRSI           IndicatorType = "RSI"
	IndicatorTypeMACD          IndicatorType = "MACD"
	IndicatorTypeMACDHistogram IndicatorType = "MACD_HISTOGRAM"
	IndicatorTypeVolume        IndicatorType = "VOLUME"
)

// MACDValue holds the three lines of a MACD reading.
type MACDValue struct {
	MACD      float64 `json:"macd" yaml:"macd"`
	Signal    float64 `json:"signal" yaml:"signal"`
	Histogram float64 `json:"histogram" yaml:"histogram"`
}

// CrossDirection is the side a price crosses a level from.
type CrossDirection string

const (
	CrossUpwards   CrossDirection = "UPWARDS"
	CrossDownwards CrossDirection = "DOWNWARDS"
)

// MarketSnapshot is a point-in-time summary of one symbol's engine.
type MarketSnapshot struct {
	Symbol       string    `json:"symbol"`
	CurrentPrice float64   `json:"current_price"`
	EMA50        float64   `json:"ema_50"`
	RSI          float64   `json:"rsi"`
	MACD         MACDValue `json:"macd"`
	Volume       float64   `json:"volume"`
}
