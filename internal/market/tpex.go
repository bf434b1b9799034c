package market

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/twmarket-cli/internal/dates"
	"github.com/sells-group/twmarket-cli/internal/parse"
)

const tpexBaseURL = "https://www.tpex.org.tw/"

// rocDate renders a date the way the OTC exchange's query parameters
// expect it: Republic-of-China year, slash separated.
func rocDate(date string) string {
	y, m, d := dates.ROC(date)
	return fmt.Sprintf("%d/%02d/%02d", y, m, d)
}

func tpexPriceHTMLRequest(date string) (string, url.Values) {
	return tpexBaseURL + "web/stock/aftertrading/otc_quotes_no1430B/stk_wn1430_print.php", url.Values{
		"l":          {"zh-tw"},
		"ajax":       {"true"},
		"input_date": {rocDate(date)},
		"temp_sect":  {"AL"},
	}
}

func tpexPriceRequest(date string) (string, url.Values) {
	return tpexBaseURL + "web/stock/aftertrading/otc_quotes_no1430/stk_wn1430_result.php", url.Values{
		"l":  {"zh-tw"},
		"o":  {"json"},
		"se": {"AL"},
		"d":  {rocDate(date)},
	}
}

func tpexInvestorsHTMLRequest(date string) (string, url.Values) {
	return tpexBaseURL + "web/stock/3insti/daily_trade/3itrade_print.php", url.Values{
		"l":  {"zh-tw"},
		"se": {"AL"},
		"t":  {"D"},
		"d":  {rocDate(date)},
		"s":  {"0,asc,0"},
	}
}

func tpexInvestorsRequest(date string) (string, url.Values) {
	return tpexBaseURL + "web/stock/3insti/daily_trade/3itrade_hedge_result.php", url.Values{
		"l":  {"zh-tw"},
		"o":  {"json"},
		"se": {"AL"},
		"t":  {"D"},
		"d":  {rocDate(date)},
		"s":  {"0,asc"},
	}
}

func tpexCreditRequest(date string) (string, url.Values) {
	return tpexBaseURL + "web/stock/margin_trading/margin_balance/margin_bal_result.php", url.Values{
		"l": {"zh-tw"},
		"o": {"json"},
		"d": {rocDate(date)},
		"s": {"0,asc"},
	}
}

// tpexPayload is the shape shared by every JSON-era OTC endpoint: a row
// count and an array-of-arrays data block with no field list, so each
// era's documented vocabulary drives the index.
type tpexPayload struct {
	TotalRecords int        `json:"iTotalRecords"`
	Data         [][]string `json:"aaData"`
}

func decodeTPEX(body []byte) (*tpexPayload, error) {
	var p tpexPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "tpex: decode")
	}
	return &p, nil
}

// tpexPriceFields is the daily closing quote vocabulary, identical for
// the HTML and JSON eras of the page.
var tpexPriceFields = []string{
	"代號", "名稱", "收盤", "漲跌", "開盤", "最高", "最低",
	"成交股數", "成交金額(元)", "成交筆數",
	"最後買價", "最後賣價", "發行股數", "次日漲停價", "次日跌停價",
}

// tpexPriceRow extracts one canonical price value list from a cleaned
// OTC quote row, deriving the change metadata the era reports.
func tpexPriceRow(idx headerIndex, row []parse.Value, rec *CategoryRecord) error {
	sid, err := idx.cell(row, "代號")
	if err != nil {
		return err
	}
	if !parse.ValidSecurityID(sid.S) {
		return nil
	}
	vals, err := idx.cells(row,
		"名稱", "開盤", "最高", "最低", "收盤",
		"成交股數", "成交筆數", "成交金額(元)",
	)
	if err != nil {
		return err
	}
	rec.Values[sid.S] = append([]parse.Value{sid}, vals...)

	delta, err := idx.cell(row, "漲跌")
	if err != nil {
		return err
	}
	if ch, ok := tpexPriceChange(delta, vals[4]); ok {
		rec.setChange(sid.S, ch)
	}
	return nil
}

// tpexPriceChange derives the daily change from the OTC delta column. On
// ex-dividend / ex-rights days the column carries a marker instead of a
// number: the amount is null and the ratio reports "0.00".
func tpexPriceChange(delta, close parse.Value) (parse.Change, bool) {
	if parse.ExDividend(delta) {
		return parse.Change{Amount: parse.Null(), Ratio: "0.00"}, true
	}
	if !close.Valid {
		return parse.Change{}, false
	}
	ratio, err := parse.ChangeRatio(delta, close)
	if err != nil {
		zap.L().Debug("tpex price: change ratio", zap.Error(err))
		return parse.Change{}, false
	}
	return parse.Change{Amount: delta, Ratio: ratio}, true
}

// parseTPEXPriceHTML handles the OTC daily closing quotes for the first
// half of 2007, published only as an HTML table. An absent content block
// is the page's "no data" signal.
func parseTPEXPriceHTML(date string, body []byte) (*CategoryRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "tpex price: parse html")
	}
	content := doc.Find("#contentArea")
	if content.Length() == 0 {
		return nil, &NoDataError{Source: TPEX, Category: Price, Date: date}
	}

	idx := newHeaderIndex(TPEX, Price, tpexPriceFields)
	rec := newCategoryRecord()
	var parseErr error
	content.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 || parseErr != nil { // first row is the header
			return
		}
		row := htmlCells(tr)
		if len(row) == 0 {
			return
		}
		if err := tpexPriceRow(idx, row, rec); err != nil {
			parseErr = err
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rec, nil
}

// parseTPEXPrice handles the OTC daily closing quotes JSON, published
// since 2007-07-01.
func parseTPEXPrice(date string, body []byte) (*CategoryRecord, error) {
	p, err := decodeTPEX(body)
	if err != nil {
		return nil, err
	}
	if p.TotalRecords == 0 {
		return nil, &NoDataError{Source: TPEX, Category: Price, Date: date}
	}

	idx := newHeaderIndex(TPEX, Price, tpexPriceFields)
	rec := newCategoryRecord()
	for _, raw := range p.Data {
		if err := tpexPriceRow(idx, parse.CleanAll(raw), rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// tpexInvestorsHTMLFields is the institutional-investor vocabulary of the
// HTML-era daily report (2007-04-23 to 2014-11-30).
var tpexInvestorsHTMLFields = []string{
	"代號", "名稱",
	"外資及陸資買股數", "外資及陸資賣股數", "外資及陸資淨買股數",
	"投信買進股數", "投信賣股數", "投信淨買股數",
	"自營商買股數", "自營商賣股數", "自營淨買股數",
	"三大法人買賣超股數",
}

// parseTPEXInvestorsHTML handles the HTML-era OTC institutional-investor
// daily report. An empty table body is the page's "no data" signal.
func parseTPEXInvestorsHTML(date string, body []byte) (*CategoryRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "tpex investors: parse html")
	}
	rows := doc.Find("tbody tr")
	if rows.Length() == 0 {
		return nil, &NoDataError{Source: TPEX, Category: InstitutionalInvestors, Date: date}
	}

	idx := newHeaderIndex(TPEX, InstitutionalInvestors, tpexInvestorsHTMLFields)
	rec := newCategoryRecord()
	var parseErr error
	rows.Each(func(_ int, tr *goquery.Selection) {
		if parseErr != nil {
			return
		}
		row := htmlCells(tr)
		if len(row) == 0 {
			return
		}
		sid, err := idx.cell(row, "代號")
		if err != nil {
			parseErr = err
			return
		}
		if !parse.ValidSecurityID(sid.S) {
			return
		}
		vals, err := idx.cells(row,
			"外資及陸資買股數", "外資及陸資賣股數", "外資及陸資淨買股數",
			"投信買進股數", "投信賣股數", "投信淨買股數",
			"自營商買股數", "自營商賣股數", "自營淨買股數",
			"三大法人買賣超股數",
		)
		if err != nil {
			parseErr = err
			return
		}
		rec.Values[sid.S] = vals
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rec, nil
}

// tpexInvestorsV1Fields is the first JSON-era vocabulary (2014-12-01 to
// 2018-01-14): dealer flows split into own-account and hedge columns.
var tpexInvestorsV1Fields = []string{
	"代號", "名稱",
	"外資及陸資買股數", "外資及陸資賣股數", "外資及陸資淨買股數",
	"投信買股數", "投信賣股數", "投信淨買股數",
	"自營商淨買股數",
	"自營商(自行買賣)買股數", "自營商(自行買賣)賣股數", "自營商(自行買賣)淨買股數",
	"自營商(避險)買股數", "自營商(避險)賣股數", "自營商(避險)淨買股數",
	"三大法人買賣超股數",
}

// parseTPEXInvestorsV1 sums the dealer own-account and hedge splits back
// into the canonical dealer fields.
func parseTPEXInvestorsV1(date string, body []byte) (*CategoryRecord, error) {
	p, err := decodeTPEX(body)
	if err != nil {
		return nil, err
	}
	if p.TotalRecords == 0 {
		return nil, &NoDataError{Source: TPEX, Category: InstitutionalInvestors, Date: date}
	}

	idx := newHeaderIndex(TPEX, InstitutionalInvestors, tpexInvestorsV1Fields)
	rec := newCategoryRecord()
	for _, raw := range p.Data {
		row := parse.CleanAll(raw)
		sid, err := idx.cell(row, "代號")
		if err != nil {
			return nil, err
		}
		if !parse.ValidSecurityID(sid.S) {
			continue
		}
		vals, err := idx.cells(row,
			"外資及陸資買股數", "外資及陸資賣股數", "外資及陸資淨買股數",
			"投信買股數", "投信賣股數", "投信淨買股數",
		)
		if err != nil {
			return nil, err
		}
		dealerBuy, err := idx.sum(row, "自營商(自行買賣)買股數", "自營商(避險)買股數")
		if err != nil {
			return nil, err
		}
		dealerSell, err := idx.sum(row, "自營商(自行買賣)賣股數", "自營商(避險)賣股數")
		if err != nil {
			return nil, err
		}
		dealerTotal, err := idx.sum(row, "自營商(自行買賣)淨買股數", "自營商(避險)淨買股數")
		if err != nil {
			return nil, err
		}
		total, err := idx.cell(row, "三大法人買賣超股數")
		if err != nil {
			return nil, err
		}
		rec.Values[sid.S] = append(vals, dealerBuy, dealerSell, dealerTotal, total)
	}
	return rec, nil
}

// tpexInvestorsV2Fields is the vocabulary in force since 2018-01-15. The
// payload reports the combined foreign and dealer totals itself, next to
// the splits, so no summing is needed.
var tpexInvestorsV2Fields = []string{
	"代號", "名稱",
	"外資及陸資(不含外資自營商)買進股數", "外資及陸資(不含外資自營商)賣出股數", "外資及陸資(不含外資自營商)買賣超股數",
	"外資自營商買進股數", "外資自營商賣出股數", "外資自營商買賣超股數",
	"外資及陸資買進股數", "外資及陸資賣出股數", "外資及陸資買賣超股數",
	"投信買進股數", "投信賣出股數", "投信買賣超股數",
	"自營商(自行買賣)買進股數", "自營商(自行買賣)賣出股數", "自營商(自行買賣)買賣超股數",
	"自營商(避險)買進股數", "自營商(避險)賣出股數", "自營商(避險)買賣超股數",
	"自營商買進股數", "自營商賣出股數", "自營商買賣超股數",
	"三大法人買賣超股數合計", "non",
}

func parseTPEXInvestorsV2(date string, body []byte) (*CategoryRecord, error) {
	p, err := decodeTPEX(body)
	if err != nil {
		return nil, err
	}
	if p.TotalRecords == 0 {
		return nil, &NoDataError{Source: TPEX, Category: InstitutionalInvestors, Date: date}
	}

	idx := newHeaderIndex(TPEX, InstitutionalInvestors, tpexInvestorsV2Fields)
	rec := newCategoryRecord()
	for _, raw := range p.Data {
		row := parse.CleanAll(raw)
		sid, err := idx.cell(row, "代號")
		if err != nil {
			return nil, err
		}
		if !parse.ValidSecurityID(sid.S) {
			continue
		}
		vals, err := idx.cells(row,
			"外資及陸資買進股數", "外資及陸資賣出股數", "外資及陸資買賣超股數",
			"投信買進股數", "投信賣出股數", "投信買賣超股數",
			"自營商買進股數", "自營商賣出股數", "自營商買賣超股數",
			"三大法人買賣超股數合計",
		)
		if err != nil {
			return nil, err
		}
		rec.Values[sid.S] = vals
	}
	return rec, nil
}

// tpexCreditFields is the OTC margin-balance vocabulary, stable since
// 2007-01-01.
var tpexCreditFields = []string{
	"代號", "名稱",
	"融資前資餘額(張)", "融資資買", "融資資賣", "融資現償", "融資資餘額",
	"融資資屬證金", "融資資使用率(%)", "融資資限額",
	"融券前資餘額(張)", "融券資買", "融券資賣", "融券現償", "融券資餘額",
	"融券資屬證金", "融券資使用率(%)", "融券資限額",
	"資券相抵(張)", "備註",
}

func parseTPEXCredit(date string, body []byte) (*CategoryRecord, error) {
	p, err := decodeTPEX(body)
	if err != nil {
		return nil, err
	}
	if len(p.Data) == 0 {
		return nil, &NoDataError{Source: TPEX, Category: CreditTransactions, Date: date}
	}

	idx := newHeaderIndex(TPEX, CreditTransactions, tpexCreditFields)
	rec := newCategoryRecord()
	for _, raw := range p.Data {
		row := parse.CleanAll(raw)
		sid, err := idx.cell(row, "代號")
		if err != nil {
			return nil, err
		}
		if !parse.ValidSecurityID(sid.S) {
			continue
		}
		vals, err := idx.cells(row,
			"融資資買", "融資資賣", "融資現償", "融資資餘額", "融資資限額",
			"融券資買", "融券資賣", "融券現償", "融券資餘額", "融券資限額",
			"資券相抵(張)", "備註",
		)
		if err != nil {
			return nil, err
		}
		rec.Values[sid.S] = vals
	}
	return rec, nil
}

// htmlCells returns the cleaned td texts of a table row.
func htmlCells(tr *goquery.Selection) []parse.Value {
	var row []parse.Value
	tr.Find("td").Each(func(_ int, td *goquery.Selection) {
		row = append(row, parse.Clean(td.Text()))
	})
	return row
}
