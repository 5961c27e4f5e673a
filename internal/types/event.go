package types

import (
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// EventType is a market event a strategy handler can be bound to.
type EventType string

const (
	EventNewCandle   EventType = "NEW_CANDLE"
	EventOrderFilled EventType = "ORDER_FILLED"
	EventPriceChange EventType = "PRICE_CHANGE"
)

// EventTypes lists every event type in declaration order.
var EventTypes = []EventType{EventNewCandle, EventOrderFilled, EventPriceChange}

// ParseEventType converts a raw event name into an EventType.
func ParseEventType(s string) (EventType, error) {
	for _, e := range EventTypes {
		if string(e) == s {
			return e, nil
		}
	}

	return "", errors.Newf(errors.ErrCodeInvalidEventType, "unknown event type: %s", s)
}
