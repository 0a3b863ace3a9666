package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/interfaces"
	"github.com/tastyware/tastytrade/src/models"
)

// -----------------------------------------------------------------------------
// Pure encode/decode between the COMPACT columnar wire format and typed
// event records. No I/O, no state.
// -----------------------------------------------------------------------------

// ParseFeedData splits a FEED_DATA payload into its kind tag and flat value
// list. The payload shape is ["Kind", [v0, v1, ...]].
func ParseFeedData(raw json.RawMessage) (models.MEventType, []any, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil {
		return "", nil, helpers.NewMalformedEventError("parse feed data", err)
	}
	if len(pair) != 2 {
		return "", nil, helpers.NewMalformedEventError("parse feed data",
			fmt.Errorf("expected [kind, values] pair, got %d elements", len(pair)))
	}

	var kind string
	if err := json.Unmarshal(pair[0], &kind); err != nil {
		return "", nil, helpers.NewMalformedEventError("parse feed data", err)
	}
	var values []any
	if err := json.Unmarshal(pair[1], &values); err != nil {
		return "", nil, helpers.NewMalformedEventError("parse feed data", err)
	}
	return models.MEventType(kind), values, nil
}

// -----------------------------------------------------------------------------

// Decode converts a flat COMPACT value list into typed events. The list may
// carry several consecutive records of the same kind; its length must be a
// positive multiple of the kind's arity.
func Decode(kind models.MEventType, values []any) ([]interfaces.IEvent, error) {
	schema, ok := schemaTable[kind]
	if !ok {
		return nil, helpers.NewMalformedEventError("decode",
			fmt.Errorf("unknown event kind %q", kind))
	}

	arity := len(schema)
	if len(values) == 0 || len(values)%arity != 0 {
		return nil, helpers.NewMalformedEventError("decode "+string(kind),
			fmt.Errorf("value count %d is not a multiple of arity %d", len(values), arity))
	}

	out := make([]interfaces.IEvent, 0, len(values)/arity)
	for i := 0; i < len(values); i += arity {
		ev, err := decodeOne(kind, schema, values[i:i+arity])
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// EncodeSubscriptionDelta builds the FEED_SUBSCRIPTION frame for a delta.
// An empty delta encodes to nil; the caller must not send in that case.
func EncodeSubscriptionDelta(channel int, delta models.MSubscriptionDelta) []byte {
	if delta.IsEmpty() {
		return nil
	}
	msg := models.MFeedSubscription{
		Type:    models.FrameFeedSubscription,
		Channel: channel,
		Add:     delta.Add,
		Remove:  delta.Remove,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}

// -----------------------------------------------------------------------------

func decodeOne(kind models.MEventType, schema []eventField, vals []any) (interfaces.IEvent, error) {
	r := &row{schema: schema, vals: vals}

	var ev interfaces.IEvent
	switch kind {
	case models.EventTypeQuote:
		ev = models.MQuote{
			EventSymbol:     r.str(0),
			EventTime:       r.i64(1),
			Sequence:        r.i64(2),
			TimeNanoPart:    r.i64(3),
			BidTime:         r.i64(4),
			BidExchangeCode: r.str(5),
			BidPrice:        r.f64(6),
			AskPrice:        r.f64(7),
			BidSize:         r.f64(8),
			AskSize:         r.f64(9),
			AskTime:         r.i64(10),
			AskExchangeCode: r.str(11),
		}
	case models.EventTypeTrade:
		ev = models.MTrade{
			EventSymbol:          r.str(0),
			EventTime:            r.i64(1),
			Time:                 r.i64(2),
			TimeNanoPart:         r.i64(3),
			Sequence:             r.i64(4),
			ExchangeCode:         r.str(5),
			Price:                r.f64(6),
			Change:               r.f64(7),
			Size:                 r.f64(8),
			DayID:                r.i64(9),
			DayVolume:            r.f64(10),
			DayTurnover:          r.f64(11),
			TickDirection:        r.str(12),
			ExtendedTradingHours: r.boolean(13),
		}
	case models.EventTypeGreeks:
		ev = models.MGreeks{
			EventSymbol: r.str(0),
			EventTime:   r.i64(1),
			EventFlags:  r.flag(2),
			Index:       r.i64(3),
			Time:        r.i64(4),
			Sequence:    r.i64(5),
			Price:       r.f64(6),
			Volatility:  r.f64(7),
			Delta:       r.f64(8),
			Gamma:       r.f64(9),
			Theta:       r.f64(10),
			Rho:         r.f64(11),
			Vega:        r.f64(12),
		}
	case models.EventTypeCandle:
		ev = models.MCandle{
			EventSymbol:   r.str(0),
			EventTime:     r.i64(1),
			EventFlags:    r.flag(2),
			Index:         r.i64(3),
			Time:          r.i64(4),
			Sequence:      r.i64(5),
			Count:         r.i64(6),
			Open:          r.f64(7),
			High:          r.f64(8),
			Low:           r.f64(9),
			Close:         r.f64(10),
			Volume:        r.f64(11),
			VWAP:          r.f64(12),
			BidVolume:     r.f64(13),
			AskVolume:     r.f64(14),
			ImpVolatility: r.f64(15),
			OpenInterest:  r.f64(16),
		}
	case models.EventTypeProfile:
		ev = models.MProfile{
			EventSymbol:          r.str(0),
			EventTime:            r.i64(1),
			Description:          r.str(2),
			ShortSaleRestriction: r.str(3),
			TradingStatus:        r.str(4),
			StatusReason:         r.str(5),
			HaltStartTime:        r.i64(6),
			HaltEndTime:          r.i64(7),
			HighLimitPrice:       r.f64(8),
			LowLimitPrice:        r.f64(9),
			High52WeekPrice:      r.f64(10),
			Low52WeekPrice:       r.f64(11),
		}
	case models.EventTypeSummary:
		ev = models.MSummary{
			EventSymbol:           r.str(0),
			EventTime:             r.i64(1),
			DayID:                 r.i64(2),
			DayOpenPrice:          r.f64(3),
			DayHighPrice:          r.f64(4),
			DayLowPrice:           r.f64(5),
			DayClosePrice:         r.f64(6),
			PrevDayID:             r.i64(7),
			PrevDayClosePrice:     r.f64(8),
			PrevDayVolume:         r.f64(9),
			OpenInterest:          r.f64(10),
			DayClosePriceType:     r.str(11),
			PrevDayClosePriceType: r.str(12),
		}
	case models.EventTypeTheoPrice:
		ev = models.MTheoPrice{
			EventSymbol:     r.str(0),
			EventTime:       r.i64(1),
			EventFlags:      r.flag(2),
			Index:           r.i64(3),
			Time:            r.i64(4),
			Sequence:        r.i64(5),
			Price:           r.f64(6),
			UnderlyingPrice: r.f64(7),
			Delta:           r.f64(8),
			Gamma:           r.f64(9),
			Dividend:        r.f64(10),
			Interest:        r.f64(11),
		}
	case models.EventTypeTimeAndSale:
		ev = models.MTimeAndSale{
			EventSymbol:            r.str(0),
			EventTime:              r.i64(1),
			EventFlags:             r.flag(2),
			Index:                  r.i64(3),
			Time:                   r.i64(4),
			TimeNanoPart:           r.i64(5),
			Sequence:               r.i64(6),
			ExchangeCode:           r.str(7),
			Price:                  r.f64(8),
			Size:                   r.f64(9),
			BidPrice:               r.f64(10),
			AskPrice:               r.f64(11),
			ExchangeSaleConditions: r.str(12),
			TradeThroughExempt:     r.str(13),
			AggressorSide:          r.str(14),
			SpreadLeg:              r.boolean(15),
			ExtendedTradingHours:   r.boolean(16),
			ValidTick:              r.boolean(17),
			Type:                   r.str(18),
			Buyer:                  r.str(19),
			Seller:                 r.str(20),
		}
	case models.EventTypeUnderlying:
		ev = models.MUnderlying{
			EventSymbol:     r.str(0),
			EventTime:       r.i64(1),
			EventFlags:      r.flag(2),
			Index:           r.i64(3),
			Time:            r.i64(4),
			Sequence:        r.i64(5),
			Volatility:      r.f64(6),
			FrontVolatility: r.f64(7),
			BackVolatility:  r.f64(8),
			CallVolume:      r.f64(9),
			PutVolume:       r.f64(10),
			PutCallRatio:    r.f64(11),
		}
	}

	if r.err != nil {
		return nil, helpers.NewMalformedEventError("decode "+string(kind), r.err)
	}
	return ev, nil
}

// -----------------------------------------------------------------------------
// Positional value coercion. The feed encodes absent doubles as "NaN" and
// infinities as "Infinity"/"-Infinity"; these are preserved, not rejected.
// The first coercion failure is recorded and fails the whole record.
// -----------------------------------------------------------------------------

type row struct {
	schema []eventField
	vals   []any
	err    error
}

func (r *row) fail(i int, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: cannot coerce %T value %v", r.schema[i].name, v, v)
	}
}

func (r *row) str(i int) string {
	switch v := r.vals[i].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		r.fail(i, v)
		return ""
	}
}

func (r *row) f64(i int) float64 {
	switch v := r.vals[i].(type) {
	case nil:
		return math.NaN()
	case float64:
		return v
	case string:
		if f, err := parseWireFloat(v); err == nil {
			return f
		}
		r.fail(i, v)
		return 0
	default:
		r.fail(i, v)
		return 0
	}
}

func (r *row) i64(i int) int64 {
	switch v := r.vals[i].(type) {
	case nil:
		return 0
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		r.fail(i, v)
		return 0
	default:
		r.fail(i, v)
		return 0
	}
}

func (r *row) flag(i int) int {
	return int(r.i64(i))
}

func (r *row) boolean(i int) bool {
	switch v := r.vals[i].(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return strings.EqualFold(v, "true")
	default:
		r.fail(i, v)
		return false
	}
}

// -----------------------------------------------------------------------------

func parseWireFloat(s string) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}
