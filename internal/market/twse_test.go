package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twsePriceFixture = `{
  "stat": "OK",
  "fields9": ["證券代號","證券名稱","成交股數","成交筆數","成交金額","開盤價","最高價","最低價","收盤價","漲跌(+/-)","漲跌價差","最後揭示買價","最後揭示買量","最後揭示賣價","最後揭示賣量","本益比"],
  "data9": [
    ["2330","台積電","33,270,172","26,433","19,900,898,499","599.00","600.00","595.00","598.00","<p style= color:green>-</p>","6.00","598.00","617","599.00","251","15.73"],
    ["2317","鴻海","21,186,271","12,921","2,214,896,417","104.50","105.00","104.00","104.50","<p style= color:red>+</p>","1.00","104.50","945","105.00","2,742","10.80"],
    ["0050","元大台灣50","6,274,033","5,168","762,041,989","121.30","121.90","121.00","121.55","<p style= color:red>+</p>","0.80","121.50","25","121.55","22","0.00"],
    ["00701小","not a security","1","1","1","1","1","1","1","","1","1","1","1","1","1"]
  ]
}`

func TestParseTWSEPrice(t *testing.T) {
	rec, err := parseTWSEPrice("20240102", []byte(twsePriceFixture))
	require.NoError(t, err)
	require.Len(t, rec.Values, 3)

	tsmc := rec.Values["2330"]
	require.Len(t, tsmc, 9)
	assert.Equal(t, "2330", tsmc[0].S)
	assert.Equal(t, "台積電", tsmc[1].S)
	assert.Equal(t, "599.00", tsmc[2].S, "open")
	assert.Equal(t, "600.00", tsmc[3].S, "high")
	assert.Equal(t, "595.00", tsmc[4].S, "low")
	assert.Equal(t, "598.00", tsmc[5].S, "close")
	assert.Equal(t, "33270172", tsmc[6].S, "capacity loses its thousands separators")
	assert.Equal(t, "26433", tsmc[7].S, "transaction")
	assert.Equal(t, "19900898499", tsmc[8].S, "turnover")

	ch, ok := rec.Changes["2330"]
	require.True(t, ok)
	assert.Equal(t, "-6.00", ch.Amount.S, "green markup signs the delta negative")
	assert.Equal(t, "-0.99", ch.Ratio)

	ch, ok = rec.Changes["2317"]
	require.True(t, ok)
	assert.Equal(t, "+1.00", ch.Amount.S)
	assert.Equal(t, "0.97", ch.Ratio)
}

func TestParseTWSEPrice_Fields8Fallback(t *testing.T) {
	body := `{
  "stat": "OK",
  "fields8": ["證券代號","證券名稱","成交股數","成交筆數","成交金額","開盤價","最高價","最低價","收盤價","漲跌(+/-)","漲跌價差"],
  "data8": [["2330","台積電","1,000","10","598,000","598.00","598.00","598.00","598.00","","0.00"]]
}`
	rec, err := parseTWSEPrice("20090102", []byte(body))
	require.NoError(t, err)
	require.Contains(t, rec.Values, "2330")
}

func TestParseTWSEPrice_NoData(t *testing.T) {
	body := `{"stat":"很抱歉，沒有符合條件的資料!"}`
	_, err := parseTWSEPrice("20240101", []byte(body))
	require.Error(t, err)
	assert.True(t, IsNoData(err))

	var nd *NoDataError
	require.ErrorAs(t, err, &nd)
	assert.Equal(t, TWSE, nd.Source)
	assert.Equal(t, "20240101", nd.Date)
}

func TestParseTWSEPrice_MissingFieldsBlock(t *testing.T) {
	_, err := parseTWSEPrice("20240102", []byte(`{"stat":"OK"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompletePayload)
}

const twseInvestorsV1Fixture = `{
  "stat": "OK",
  "fields": ["證券代號","證券名稱","外資買進股數","外資賣出股數","外資買賣超股數","投信買進股數","投信賣出股數","投信買賣超股數","自營商買進股數","自營商賣出股數","自營商買賣超股數","三大法人買賣超股數"],
  "data": [
    ["2330","台積電","10,000","2,000","8,000","500","100","400","300","200","100","8,500"]
  ]
}`

func TestParseTWSEInvestorsV1(t *testing.T) {
	rec, err := parseTWSEInvestorsV1("20130102", []byte(twseInvestorsV1Fixture))
	require.NoError(t, err)

	vals := rec.Values["2330"]
	require.Len(t, vals, 10)
	assert.Equal(t, "10000", vals[0].S, "foreign buy")
	assert.Equal(t, "2000", vals[1].S)
	assert.Equal(t, "8000", vals[2].S)
	assert.Equal(t, "300", vals[6].S, "dealer buy")
	assert.Equal(t, "8500", vals[9].S, "grand total")
}

const twseInvestorsV2Fixture = `{
  "stat": "OK",
  "fields": ["證券代號","證券名稱","外資買進股數","外資賣出股數","外資買賣超股數","投信買進股數","投信賣出股數","投信買賣超股數","自營商買賣超股數","自營商買進股數(自行買賣)","自營商賣出股數(自行買賣)","自營商買賣超股數(自行買賣)","自營商買進股數(避險)","自營商賣出股數(避險)","自營商買賣超股數(避險)","三大法人買賣超股數"],
  "data": [
    ["2330","台積電","10,000","2,000","8,000","500","100","400","900","600","100","500","400","0","400","9,400"]
  ]
}`

func TestParseTWSEInvestorsV2_SumsDealerSplit(t *testing.T) {
	rec, err := parseTWSEInvestorsV2("20150105", []byte(twseInvestorsV2Fixture))
	require.NoError(t, err)

	vals := rec.Values["2330"]
	require.Len(t, vals, 10)
	assert.Equal(t, "1000", vals[6].S, "dealer buy = own 600 + hedge 400")
	assert.Equal(t, "100", vals[7].S, "dealer sell = own 100 + hedge 0")
	assert.Equal(t, "900", vals[8].S, "dealer net = own 500 + hedge 400")
	assert.Equal(t, "9400", vals[9].S)
}

const twseInvestorsV3Fixture = `{
  "stat": "OK",
  "fields": ["證券代號","證券名稱","外陸資買進股數(不含外資自營商)","外陸資賣出股數(不含外資自營商)","外陸資買賣超股數(不含外資自營商)","外資自營商買進股數","外資自營商賣出股數","外資自營商買賣超股數","投信買進股數","投信賣出股數","投信買賣超股數","自營商買賣超股數","自營商買進股數(自行買賣)","自營商賣出股數(自行買賣)","自營商買賣超股數(自行買賣)","自營商買進股數(避險)","自營商賣出股數(避險)","自營商買賣超股數(避險)","三大法人買賣超股數"],
  "data": [
    ["2330","台積電","35,000","1,000","34,000","1,000","0","1,000","500","100","400","100","36,000","0","36,000","0","35,900","-35,900","35,500"]
  ]
}`

func TestParseTWSEInvestorsV3_SumsBothSplits(t *testing.T) {
	rec, err := parseTWSEInvestorsV3("20171218", []byte(twseInvestorsV3Fixture))
	require.NoError(t, err)

	vals := rec.Values["2330"]
	require.Len(t, vals, 10)
	assert.Equal(t, "36000", vals[0].S, "foreign buy = ex-dealer 35000 + foreign dealer 1000")
	assert.Equal(t, "1000", vals[1].S)
	assert.Equal(t, "35000", vals[2].S)
	assert.Equal(t, "36000", vals[6].S, "dealer buy = own 36000 + hedge 0")
	assert.Equal(t, "35900", vals[7].S)
	assert.Equal(t, "100", vals[8].S, "dealer net = own 36000 + hedge -35900")
	assert.Equal(t, "35500", vals[9].S)
}

func TestParseTWSEInvestors_SchemaDrift(t *testing.T) {
	// A V2-era payload run through the V3 parser lacks the foreign split
	// columns: that is drift, never silently zero-filled.
	_, err := parseTWSEInvestorsV3("20171218", []byte(twseInvestorsV1Fixture))
	require.Error(t, err)
	assert.True(t, IsSchemaDrift(err))

	var sd *SchemaDriftError
	require.ErrorAs(t, err, &sd)
	assert.Equal(t, "外陸資買進股數(不含外資自營商)", sd.Column)
}

func TestParseTWSEInvestors_ShortRow(t *testing.T) {
	body := `{
  "stat": "OK",
  "fields": ["證券代號","證券名稱","外資買進股數","外資賣出股數","外資買賣超股數","投信買進股數","投信賣出股數","投信買賣超股數","自營商買進股數","自營商賣出股數","自營商買賣超股數","三大法人買賣超股數"],
  "data": [["2330","台積電","10,000"]]
}`
	_, err := parseTWSEInvestorsV1("20130102", []byte(body))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompletePayload)
}

const twseCreditFixture = `{
  "stat": "OK",
  "data": [
    ["2330","台積電","1,226","2,318","49","50,954","49,813","6,486,347","101","166","0","1,397","1,462","6,486,347","89","O"],
    ["2317","鴻海","5,173","4,537","66","196,271","196,841","3,465,168","668","886","0","14,489","14,707","3,465,168","255",""]
  ]
}`

func TestParseTWSECredit(t *testing.T) {
	rec, err := parseTWSECredit("20240102", []byte(twseCreditFixture))
	require.NoError(t, err)
	require.Len(t, rec.Values, 2)

	vals := rec.Values["2330"]
	require.Len(t, vals, 12)
	assert.Equal(t, "1226", vals[0].S, "margin purchase")
	assert.Equal(t, "2318", vals[1].S, "margin sales")
	assert.Equal(t, "49", vals[2].S, "cash redemption")
	assert.Equal(t, "49813", vals[3].S, "today balance skips the previous-day column")
	assert.Equal(t, "6486347", vals[4].S, "quota")
	assert.Equal(t, "89", vals[10].S, "offsetting")
	assert.Equal(t, "O", vals[11].S, "note")

	// An empty note survives as an empty string; only dashes mean null.
	note := rec.Values["2317"][11]
	assert.True(t, note.Valid)
	assert.Equal(t, "", note.S)
}

func TestParseTWSECredit_NoData(t *testing.T) {
	_, err := parseTWSECredit("20240101", []byte(`{"stat":"OK","data":[]}`))
	require.Error(t, err)
	assert.True(t, IsNoData(err))
}
