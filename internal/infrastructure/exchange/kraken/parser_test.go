package kraken

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketrelay/internal/domain/model"
)

var utc = Decoder{Location: time.UTC}

const (
	tickerFrame = `[340,{"a":["19555.20000",0,"0.11487174"],"b":["19555.10000",0,"0.84376922"],` +
		`"c":["19556.20000","0.17710000"],"v":["9663.60340294","9980.88762714"],"p":["19113.40193","19111.15264"],` +
		`"t":[28811,30665],"l":["18487.50000","18487.50000"],"h":["19651.20000","19651.20000"],` +
		`"o":["19090.00000","19002.30000"]},"ticker","XBT/USD"]`
	spreadFrame = `[341,["19301.90000","19302.00000","1664477929.245247","4.06014894","0.00100000"],"spread","XBT/USD"]`
	ohlcFrame   = `[343,["1664478975.666711","1664479020.000000","19403.00000","19420.00000","19403.00000",` +
		`"19420.00000","19414.93677","1.98544165",52],"ohlc-1","XBT/USD"]`
	tradeFrame = `[337,[["19416.20000","0.00100000","1664479174.047114","s","m",""]],"trade","XBT/USD"]`
)

func TestDecodeTicker(t *testing.T) {
	topic, rec, err := utc.DecodeTicker([]byte(tickerFrame))
	require.NoError(t, err)
	assert.Equal(t, "Ticker - XBT/USD", topic)
	assert.Equal(t, model.Ticker{Pair: "XBT/USD", LastPrice: 19556.2}, rec)
}

func TestDecodeSpread(t *testing.T) {
	topic, rec, err := utc.DecodeSpread([]byte(spreadFrame))
	require.NoError(t, err)
	assert.Equal(t, "Spread - XBT/USD", topic)
	assert.Equal(t, model.Spread{
		Pair:      "XBT/USD",
		BidPrice:  19301.9,
		AskPrice:  19302.0,
		BidVolume: 4.06014894,
		AskVolume: 0.001,
		Timestamp: "2022-09-29 18:58:49",
	}, rec)
}

func TestDecodeCandle(t *testing.T) {
	topic, rec, err := utc.DecodeCandle([]byte(ohlcFrame), 1)
	require.NoError(t, err)
	assert.Equal(t, "OHLC - XBT/USD - Minute", topic)
	assert.Equal(t, model.Candle{
		Pair:          "XBT/USD",
		Frequency:     model.FrequencyMinute,
		IntervalStart: "2022-09-29 19:16:15",
		IntervalEnd:   "2022-09-29 19:17:00",
		Open:          19403,
		High:          19420,
		Low:           19403,
		Close:         19420,
		VWAP:          19414.93677,
		Volume:        1.98544165,
		TradeCount:    52,
	}, rec)
}

func TestDecodeCandleFrequencyFromInterval(t *testing.T) {
	cases := map[int]string{
		1:    "OHLC - XBT/USD - Minute",
		60:   "OHLC - XBT/USD - Hourly",
		1440: "OHLC - XBT/USD - Daily",
	}
	for interval, want := range cases {
		topic, _, err := utc.DecodeCandle([]byte(ohlcFrame), interval)
		require.NoError(t, err)
		assert.Equal(t, want, topic)
	}

	_, _, err := utc.DecodeCandle([]byte(ohlcFrame), 5)
	assert.ErrorIs(t, err, ErrUnsupportedInterval)
}

func TestDecodeTrade(t *testing.T) {
	topic, rec, err := utc.DecodeTrade([]byte(tradeFrame))
	require.NoError(t, err)
	assert.Equal(t, "Trade - XBT/USD", topic)
	assert.Equal(t, model.Trade{
		Pair:      "XBT/USD",
		Price:     19416.2,
		Volume:    0.001,
		Timestamp: "2022-09-29 19:19:34",
		Side:      model.SideSell,
		OrderKind: model.OrderKindMarket,
		Misc:      "",
	}, rec)
}

func TestDecodeTradeOnlyFirstOfBatch(t *testing.T) {
	raw := `[337,[["1.5","2","1664479174.0","b","l","x"],["9.9","9","1664479175.0","s","m",""]],"trade","ETH/USD"]`
	_, rec, err := utc.DecodeTrade([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1.5, rec.Price)
	assert.Equal(t, model.SideBuy, rec.Side)
	assert.Equal(t, model.OrderKindLimit, rec.OrderKind)
	assert.Equal(t, "x", rec.Misc)
}

func TestDecodeTradeUnknownCodes(t *testing.T) {
	raw := `[337,[["1.5","2","1664479174.0","?","z",""]],"trade","ETH/USD"]`
	_, rec, err := utc.DecodeTrade([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, model.SideUnknown, rec.Side)
	assert.Equal(t, model.OrderKindUnknown, rec.OrderKind)
}

func TestControlFramesAreNotData(t *testing.T) {
	frames := []string{
		`{"event":"heartbeat"}`,
		`{"connectionID":8628615390848610000,"event":"systemStatus","status":"online","version":"1.0.0"}`,
		`{"channelID":337,"channelName":"trade","event":"subscriptionStatus","pair":"XBT/USD","status":"subscribed"}`,
		``,
		`not json`,
		`[1,2]`,
		`["x",{"c":["1","1"]},"ticker","XBT/USD"]`,
	}
	for _, f := range frames {
		_, _, err := utc.DecodeTicker([]byte(f))
		assert.ErrorIs(t, err, model.ErrNotDataMessage, f)
		_, _, err = utc.DecodeSpread([]byte(f))
		assert.ErrorIs(t, err, model.ErrNotDataMessage, f)
		_, _, err = utc.DecodeCandle([]byte(f), 60)
		assert.ErrorIs(t, err, model.ErrNotDataMessage, f)
		_, _, err = utc.DecodeTrade([]byte(f))
		assert.ErrorIs(t, err, model.ErrNotDataMessage, f)
		_, err = utc.DecodeBookUpdate([]byte(f))
		assert.ErrorIs(t, err, model.ErrNotDataMessage, f)
	}
}

func TestWrongChannelIsNotData(t *testing.T) {
	_, _, err := utc.DecodeTicker([]byte(spreadFrame))
	assert.ErrorIs(t, err, model.ErrNotDataMessage)
	_, _, err = utc.DecodeTrade([]byte(ohlcFrame))
	assert.ErrorIs(t, err, model.ErrNotDataMessage)
	_, err = utc.DecodeBookUpdate([]byte(tradeFrame))
	assert.ErrorIs(t, err, model.ErrNotDataMessage)
}

func TestMalformedField(t *testing.T) {
	raw := `[341,["abc","19302.00000","1664477929.245247","4.06014894","0.00100000"],"spread","XBT/USD"]`
	_, _, err := utc.DecodeSpread([]byte(raw))
	assert.ErrorIs(t, err, model.ErrMalformedField)

	raw = `[337,[["19416.2","0.001","yesterday","s","m",""]],"trade","XBT/USD"]`
	_, _, err = utc.DecodeTrade([]byte(raw))
	assert.ErrorIs(t, err, model.ErrMalformedField)
}

func TestDecodeBookSnapshot(t *testing.T) {
	raw := `[0,{"as":[["5541.30000","2.50700000","1534614248.123678"],["5541.80000","0.33000000","1534614098.345543"]],` +
		`"bs":[["5541.20000","1.52900000","1534614248.765567"]]},"book-10","XBT/USD"]`
	u, err := utc.DecodeBookUpdate([]byte(raw))
	require.NoError(t, err)
	assert.True(t, u.Snapshot)
	assert.Equal(t, "XBT/USD", u.Pair)
	require.Len(t, u.Asks, 2)
	require.Len(t, u.Bids, 1)
	assert.Equal(t, model.LevelUpdate{Price: "5541.30000", Volume: "2.50700000", Timestamp: "1534614248.123678"}, u.Asks[0])
}

func TestDecodeBookDeltaWithRepublish(t *testing.T) {
	raw := `[1234,{"a":[["5541.30000","2.50700000","1534614248.456738"],["5542.50000","0.40100000","1534614248.456738","r"]],` +
		`"c":"974942666"},"book-10","XBT/USD"]`
	u, err := utc.DecodeBookUpdate([]byte(raw))
	require.NoError(t, err)
	assert.False(t, u.Snapshot)
	assert.Nil(t, u.Bids)
	require.Len(t, u.Asks, 2)
	assert.False(t, u.Asks[0].Republish)
	assert.True(t, u.Asks[1].Republish)
}

func TestDecodeBookDeltaBothSides(t *testing.T) {
	raw := `[1234,{"a":[["5541.30000","2.50700000","1534614248.456738"]]},` +
		`{"b":[["5541.30000","0.00000000","1534614335.345903"]],"c":"974942666"},"book-10","XBT/USD"]`
	u, err := utc.DecodeBookUpdate([]byte(raw))
	require.NoError(t, err)
	require.Len(t, u.Asks, 1)
	require.Len(t, u.Bids, 1)
	assert.Equal(t, "0.00000000", u.Bids[0].Volume)
}

func TestDecodeBookWithoutChannelName(t *testing.T) {
	raw := `[1234,{"b":[["100.0","1.0","1534614335.345903"]]},"XBT/USD"]`
	u, err := utc.DecodeBookUpdate([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "XBT/USD", u.Pair)
	require.Len(t, u.Bids, 1)
}

func TestPackageLevelDecodersUseLocalTime(t *testing.T) {
	_, rec, err := DecodeTrade([]byte(tradeFrame))
	require.NoError(t, err)
	want := time.Unix(1664479174, 0).In(time.Local).Format(model.TimeLayout)
	assert.Equal(t, want, rec.Timestamp)
}

func TestDecodeTradeInConfiguredZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	_, rec, err := Decoder{Location: berlin}.DecodeTrade([]byte(tradeFrame))
	require.NoError(t, err)
	assert.Equal(t, "2022-09-29 21:19:34", rec.Timestamp)
}

func TestDecodeBookKeepsMalformedLevelsAsRecords(t *testing.T) {
	raw := `[10,{"a":[["100.1","1.0","1534614248.1"],["100.2"],[{"p":1},"2.0"],"x",` +
		`[100.4,"4.0","1534614248.4"],["100.3","3.0","1534614248.3"]]},"book-10","XBT/USD"]`
	u, err := utc.DecodeBookUpdate([]byte(raw))
	require.NoError(t, err)
	require.Len(t, u.Asks, 6)

	assert.Equal(t, model.LevelUpdate{Price: "100.1", Volume: "1.0", Timestamp: "1534614248.1"}, u.Asks[0])
	assert.Equal(t, model.LevelUpdate{Price: "100.2"}, u.Asks[1])
	assert.Equal(t, model.LevelUpdate{Price: `{"p":1}`, Volume: "2.0"}, u.Asks[2])
	assert.Equal(t, model.LevelUpdate{Price: `"x"`}, u.Asks[3])
	assert.Equal(t, "100.4", u.Asks[4].Price, "numeric price keeps its text")
	assert.Equal(t, "100.3", u.Asks[5].Price)
}
