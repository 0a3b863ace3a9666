package codec

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyware/tastytrade/src/helpers"
	"github.com/tastyware/tastytrade/src/models"
)

func parse(t *testing.T, payload string) (models.MEventType, []any) {
	t.Helper()
	kind, values, err := ParseFeedData(json.RawMessage(payload))
	require.NoError(t, err)
	return kind, values
}

// -----------------------------------------------------------------------------

func TestDecodeQuoteAllFields(t *testing.T) {
	kind, values := parse(t, `["Quote",
		["AAA", 1700000000000, 5, 123, 1700000000100, "Q",
		 189.5, 189.52, 200, 300, 1700000000200, "P"]]`)

	events, err := Decode(kind, values)
	require.NoError(t, err)
	require.Len(t, events, 1)

	q, ok := events[0].(models.MQuote)
	require.True(t, ok)
	assert.Equal(t, "AAA", q.EventSymbol)
	assert.Equal(t, int64(1700000000000), q.EventTime)
	assert.Equal(t, int64(5), q.Sequence)
	assert.Equal(t, int64(123), q.TimeNanoPart)
	assert.Equal(t, int64(1700000000100), q.BidTime)
	assert.Equal(t, "Q", q.BidExchangeCode)
	assert.Equal(t, 189.5, q.BidPrice)
	assert.Equal(t, 189.52, q.AskPrice)
	assert.Equal(t, 200.0, q.BidSize)
	assert.Equal(t, 300.0, q.AskSize)
	assert.Equal(t, int64(1700000000200), q.AskTime)
	assert.Equal(t, "P", q.AskExchangeCode)
	assert.Equal(t, models.EventTypeQuote, q.Kind())
	assert.Equal(t, "AAA", q.Symbol())
}

// -----------------------------------------------------------------------------

func TestDecodeBatchedRecords(t *testing.T) {
	kind, values := parse(t, `["Quote",
		["AAA", 0, 0, 0, 0, "Q", 1.0, 1.1, 10, 20, 0, "P",
		 "BBB", 0, 0, 0, 0, "Q", 2.0, 2.1, 30, 40, 0, "P"]]`)

	events, err := Decode(kind, values)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AAA", events[0].Symbol())
	assert.Equal(t, "BBB", events[1].Symbol())
}

// -----------------------------------------------------------------------------

func TestDecodeArityMismatch(t *testing.T) {
	kind, values := parse(t, `["Quote", ["AAA", 0, 0]]`)

	events, err := Decode(kind, values)
	assert.Nil(t, events)
	require.Error(t, err)
	assert.True(t, helpers.IsMalformedEvent(err))
}

// -----------------------------------------------------------------------------

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode("Imbalance", []any{"AAA"})
	require.Error(t, err)
	assert.True(t, helpers.IsMalformedEvent(err))
}

// -----------------------------------------------------------------------------

func TestDecodeEmptyValues(t *testing.T) {
	_, err := Decode(models.EventTypeQuote, nil)
	require.Error(t, err)
	assert.True(t, helpers.IsMalformedEvent(err))
}

// -----------------------------------------------------------------------------

func TestDecodePreservesFeedSentinels(t *testing.T) {
	kind, values := parse(t, `["Trade",
		["SPY", 0, 1700000000000, 0, 1, "Q", "NaN", "Infinity", "-Infinity",
		 20000, 1000000, "NaN", "UP", true]]`)

	events, err := Decode(kind, values)
	require.NoError(t, err)
	require.Len(t, events, 1)

	tr := events[0].(models.MTrade)
	assert.True(t, math.IsNaN(tr.Price))
	assert.True(t, math.IsInf(tr.Change, 1))
	assert.True(t, math.IsInf(tr.Size, -1))
	assert.True(t, math.IsNaN(tr.DayTurnover))
	assert.True(t, tr.ExtendedTradingHours)
	assert.Equal(t, "UP", tr.TickDirection)
}

// -----------------------------------------------------------------------------

func TestDecodeNullFields(t *testing.T) {
	kind, values := parse(t, `["TimeAndSale",
		["XYZ", 0, 0, 100, 1700000000000, 0, 1, "Q", 10.5, 100, 10.4, 10.6,
		 "@", "X", "BUY", false, false, true, "REGULAR", null, null]]`)

	events, err := Decode(kind, values)
	require.NoError(t, err)

	tas := events[0].(models.MTimeAndSale)
	assert.Equal(t, "", tas.Buyer)
	assert.Equal(t, "", tas.Seller)
	assert.Equal(t, "BUY", tas.AggressorSide)
	assert.True(t, tas.ValidTick)
}

// -----------------------------------------------------------------------------

func TestDecodeCoercionFailure(t *testing.T) {
	kind, values := parse(t, `["Quote",
		["AAA", 0, 0, 0, 0, "Q", {"bad": 1}, 1.1, 10, 20, 0, "P"]]`)

	_, err := Decode(kind, values)
	require.Error(t, err)
	assert.True(t, helpers.IsMalformedEvent(err))
	assert.Contains(t, err.Error(), "bidPrice")
}

// -----------------------------------------------------------------------------

func TestDecodeGreeks(t *testing.T) {
	kind, values := parse(t, `["Greeks",
		["XYZ250117C00150000", 0, 4, 7, 1700000000000, 2,
		 5.25, 0.31, 0.55, 0.04, -0.08, 0.02, 0.12]]`)

	events, err := Decode(kind, values)
	require.NoError(t, err)

	g := events[0].(models.MGreeks)
	assert.Equal(t, models.EventFlagSnapshotBegin, g.EventFlags)
	assert.Equal(t, 0.55, g.Delta)
	assert.Equal(t, 0.12, g.Vega)
}

// -----------------------------------------------------------------------------

func TestParseFeedDataRejectsBadShapes(t *testing.T) {
	cases := []string{
		`"Quote"`,
		`["Quote"]`,
		`["Quote", [1], "Trade"]`,
		`[42, [1]]`,
		`["Quote", "notalist"]`,
	}
	for _, c := range cases {
		_, _, err := ParseFeedData(json.RawMessage(c))
		assert.Error(t, err, "payload %s", c)
		assert.True(t, helpers.IsMalformedEvent(err), "payload %s", c)
	}
}

// -----------------------------------------------------------------------------

func TestEncodeSubscriptionDelta(t *testing.T) {
	delta := models.MSubscriptionDelta{
		Add: []models.MSubscriptionEntry{
			{Type: models.EventTypeQuote, Symbol: "AAA"},
			{Type: models.EventTypeCandle, Symbol: "AAA{=5m}", FromTime: 1700000000000},
		},
		Remove: []models.MSubscriptionEntry{
			{Type: models.EventTypeQuote, Symbol: "BBB"},
		},
	}

	data := EncodeSubscriptionDelta(1, delta)
	require.NotNil(t, data)

	var msg models.MFeedSubscription
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, models.FrameFeedSubscription, msg.Type)
	assert.Equal(t, 1, msg.Channel)
	require.Len(t, msg.Add, 2)
	assert.Equal(t, "AAA", msg.Add[0].Symbol)
	assert.Equal(t, int64(1700000000000), msg.Add[1].FromTime)
	require.Len(t, msg.Remove, 1)
	assert.Equal(t, "BBB", msg.Remove[0].Symbol)
}

// -----------------------------------------------------------------------------

func TestEncodeSubscriptionDeltaEmpty(t *testing.T) {
	assert.Nil(t, EncodeSubscriptionDelta(1, models.MSubscriptionDelta{}))
}

// -----------------------------------------------------------------------------

func TestEncodeSubscriptionDeltaOmitsFromTimeWhenZero(t *testing.T) {
	data := EncodeSubscriptionDelta(1, models.MSubscriptionDelta{
		Add: []models.MSubscriptionEntry{{Type: models.EventTypeQuote, Symbol: "AAA"}},
	})
	assert.NotContains(t, string(data), "fromTime")
	assert.NotContains(t, string(data), "remove")
}

// -----------------------------------------------------------------------------

func TestSchemaArity(t *testing.T) {
	want := map[models.MEventType]int{
		models.EventTypeQuote:       12,
		models.EventTypeTrade:       14,
		models.EventTypeGreeks:      13,
		models.EventTypeCandle:      17,
		models.EventTypeProfile:     12,
		models.EventTypeSummary:     13,
		models.EventTypeTheoPrice:   12,
		models.EventTypeTimeAndSale: 21,
		models.EventTypeUnderlying:  12,
	}
	for kind, arity := range want {
		assert.Equal(t, arity, Arity(kind), "kind %s", kind)
	}
	assert.Equal(t, 0, Arity("Imbalance"))
}

// -----------------------------------------------------------------------------

func TestAcceptEventFields(t *testing.T) {
	fields := AcceptEventFields()
	require.Len(t, fields, len(models.AllEventTypes()))
	for _, kind := range models.AllEventTypes() {
		names := fields[string(kind)]
		require.NotEmpty(t, names, "kind %s", kind)
		assert.Equal(t, "eventSymbol", names[0], "kind %s", kind)
		assert.Len(t, names, Arity(kind))
	}
}
