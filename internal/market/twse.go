package market

import (
	"encoding/json"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/twmarket-cli/internal/parse"
)

const twseBaseURL = "https://www.twse.com.tw/"

// twseNoDataStat is the literal the main-board endpoints return instead
// of data on non-trading days.
const twseNoDataStat = "很抱歉，沒有符合條件的資料!"

func twsePriceRequest(date string) (string, url.Values) {
	return twseBaseURL + "exchangeReport/MI_INDEX", url.Values{
		"response": {"json"},
		"date":     {date},
		"type":     {"ALL"},
	}
}

func twseInvestorsRequest(date string) (string, url.Values) {
	return twseBaseURL + "fund/T86", url.Values{
		"response":   {"json"},
		"date":       {date},
		"selectType": {"ALL"},
	}
}

func twseCreditRequest(date string) (string, url.Values) {
	return twseBaseURL + "exchangeReport/MI_MARGN", url.Values{
		"response":   {"json"},
		"date":       {date},
		"selectType": {"ALL"},
	}
}

// twseIndexPayload is the MI_INDEX daily closing quote response. The
// security table is the 8th or 9th block depending on how many index
// summary tables precede it that day.
type twseIndexPayload struct {
	Stat    string     `json:"stat"`
	Fields8 []string   `json:"fields8"`
	Data8   [][]string `json:"data8"`
	Fields9 []string   `json:"fields9"`
	Data9   [][]string `json:"data9"`
}

// parseTWSEPrice handles the main-board daily closing quotes, published
// since 2004-02-11.
func parseTWSEPrice(date string, body []byte) (*CategoryRecord, error) {
	var p twseIndexPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "twse price: decode")
	}
	if p.Stat == twseNoDataStat {
		return nil, &NoDataError{Source: TWSE, Category: Price, Date: date}
	}

	fields, data := p.Fields9, p.Data9
	if len(fields) == 0 {
		fields, data = p.Fields8, p.Data8
	}
	if len(fields) == 0 {
		return nil, eris.Wrap(ErrIncompletePayload, "twse price: no fields8/fields9 block")
	}

	idx := newHeaderIndex(TWSE, Price, fields)
	rec := newCategoryRecord()
	for _, raw := range data {
		row := parse.CleanAll(raw)
		sid, err := idx.cell(row, "證券代號")
		if err != nil {
			return nil, err
		}
		if !parse.ValidSecurityID(sid.S) {
			continue
		}
		vals, err := idx.cells(row,
			"證券名稱", "開盤價", "最高價", "最低價", "收盤價",
			"成交股數", "成交筆數", "成交金額",
		)
		if err != nil {
			return nil, err
		}
		rec.Values[sid.S] = append([]parse.Value{sid}, vals...)

		if ch, ok := twsePriceChange(idx, row, vals[4]); ok {
			rec.setChange(sid.S, ch)
		}
	}
	return rec, nil
}

// twsePriceChange derives the daily change from the sign markup the
// exchange embeds in the 漲跌(+/-) column plus the raw delta. Rows whose
// close or delta cleaned to null (untraded, ex-dividend) report nothing.
func twsePriceChange(idx headerIndex, row []parse.Value, close parse.Value) (parse.Change, bool) {
	markup, err := idx.cell(row, "漲跌(+/-)")
	if err != nil {
		return parse.Change{}, false
	}
	delta, err := idx.cell(row, "漲跌價差")
	if err != nil {
		return parse.Change{}, false
	}
	amount := parse.ChangeAmount(parse.SignFromMarkup(markup.S), delta)
	if !amount.Valid || !close.Valid {
		return parse.Change{}, false
	}
	ratio, err := parse.ChangeRatio(amount, close)
	if err != nil {
		zap.L().Debug("twse price: change ratio", zap.Error(err))
		return parse.Change{}, false
	}
	return parse.Change{Amount: amount, Ratio: ratio}, true
}

// twseFundPayload is the T86 institutional-investor daily report.
type twseFundPayload struct {
	Stat   string     `json:"stat"`
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

func decodeTWSEFund(date string, body []byte) (*twseFundPayload, error) {
	var p twseFundPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "twse investors: decode")
	}
	if p.Stat == twseNoDataStat {
		return nil, &NoDataError{Source: TWSE, Category: InstitutionalInvestors, Date: date}
	}
	if len(p.Fields) == 0 {
		return nil, eris.Wrap(ErrIncompletePayload, "twse investors: no fields block")
	}
	return &p, nil
}

// rows walks the T86 data block, cleaning and id-filtering, and calls
// emit once per tradable security.
func (p *twseFundPayload) rows(idx headerIndex, emit func(sid string, row []parse.Value) error) error {
	for _, raw := range p.Data {
		if len(raw) != len(p.Fields) {
			return eris.Wrapf(ErrIncompletePayload, "twse investors: row has %d cells, header has %d", len(raw), len(p.Fields))
		}
		row := parse.CleanAll(raw)
		sid, err := idx.cell(row, "證券代號")
		if err != nil {
			return err
		}
		if !parse.ValidSecurityID(sid.S) {
			continue
		}
		if err := emit(sid.S, row); err != nil {
			return err
		}
	}
	return nil
}

// parseTWSEInvestorsV1 handles the original T86 layout (2012-05-02 to
// 2014-11-30): one buy/sell/net triple per investor class.
func parseTWSEInvestorsV1(date string, body []byte) (*CategoryRecord, error) {
	p, err := decodeTWSEFund(date, body)
	if err != nil {
		return nil, err
	}
	idx := newHeaderIndex(TWSE, InstitutionalInvestors, p.Fields)
	rec := newCategoryRecord()
	err = p.rows(idx, func(sid string, row []parse.Value) error {
		vals, err := idx.cells(row,
			"外資買進股數", "外資賣出股數", "外資買賣超股數",
			"投信買進股數", "投信賣出股數", "投信買賣超股數",
			"自營商買進股數", "自營商賣出股數", "自營商買賣超股數",
			"三大法人買賣超股數",
		)
		if err != nil {
			return err
		}
		rec.Values[sid] = vals
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// parseTWSEInvestorsV2 handles the 2014-12-01 to 2017-12-17 layout, which
// splits dealer flows into own-account and hedge columns; the canonical
// dealer fields are the sums.
func parseTWSEInvestorsV2(date string, body []byte) (*CategoryRecord, error) {
	p, err := decodeTWSEFund(date, body)
	if err != nil {
		return nil, err
	}
	idx := newHeaderIndex(TWSE, InstitutionalInvestors, p.Fields)
	rec := newCategoryRecord()
	err = p.rows(idx, func(sid string, row []parse.Value) error {
		vals, err := idx.cells(row,
			"外資買進股數", "外資賣出股數", "外資買賣超股數",
			"投信買進股數", "投信賣出股數", "投信買賣超股數",
		)
		if err != nil {
			return err
		}
		dealerBuy, err := idx.sum(row, "自營商買進股數(自行買賣)", "自營商買進股數(避險)")
		if err != nil {
			return err
		}
		dealerSell, err := idx.sum(row, "自營商賣出股數(自行買賣)", "自營商賣出股數(避險)")
		if err != nil {
			return err
		}
		dealerTotal, err := idx.sum(row, "自營商買賣超股數(自行買賣)", "自營商買賣超股數(避險)")
		if err != nil {
			return err
		}
		total, err := idx.cell(row, "三大法人買賣超股數")
		if err != nil {
			return err
		}
		rec.Values[sid] = append(vals, dealerBuy, dealerSell, dealerTotal, total)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// parseTWSEInvestorsV3 handles the layout in force since 2017-12-18,
// which additionally splits foreign flows into ex-dealer and foreign
// dealer columns; both splits are summed back into the canonical fields.
func parseTWSEInvestorsV3(date string, body []byte) (*CategoryRecord, error) {
	p, err := decodeTWSEFund(date, body)
	if err != nil {
		return nil, err
	}
	idx := newHeaderIndex(TWSE, InstitutionalInvestors, p.Fields)
	rec := newCategoryRecord()
	err = p.rows(idx, func(sid string, row []parse.Value) error {
		foreignBuy, err := idx.sum(row, "外陸資買進股數(不含外資自營商)", "外資自營商買進股數")
		if err != nil {
			return err
		}
		foreignSell, err := idx.sum(row, "外陸資賣出股數(不含外資自營商)", "外資自營商賣出股數")
		if err != nil {
			return err
		}
		foreignTotal, err := idx.sum(row, "外陸資買賣超股數(不含外資自營商)", "外資自營商買賣超股數")
		if err != nil {
			return err
		}
		trust, err := idx.cells(row, "投信買進股數", "投信賣出股數", "投信買賣超股數")
		if err != nil {
			return err
		}
		dealerBuy, err := idx.sum(row, "自營商買進股數(自行買賣)", "自營商買進股數(避險)")
		if err != nil {
			return err
		}
		dealerSell, err := idx.sum(row, "自營商賣出股數(自行買賣)", "自營商賣出股數(避險)")
		if err != nil {
			return err
		}
		dealerTotal, err := idx.sum(row, "自營商買賣超股數(自行買賣)", "自營商買賣超股數(避險)")
		if err != nil {
			return err
		}
		total, err := idx.cell(row, "三大法人買賣超股數")
		if err != nil {
			return err
		}
		vals := []parse.Value{foreignBuy, foreignSell, foreignTotal}
		vals = append(vals, trust...)
		vals = append(vals, dealerBuy, dealerSell, dealerTotal, total)
		rec.Values[sid] = vals
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// twseMargnPayload is the MI_MARGN margin/short-sale balance response.
type twseMargnPayload struct {
	Stat string     `json:"stat"`
	Data [][]string `json:"data"`
}

// twseCreditFields is the documented MI_MARGN security-table vocabulary.
// The payload carries no per-table field list for this block, so the
// documented layout is the index source.
var twseCreditFields = []string{
	"股票代號", "股票名稱",
	"融資買進", "融資賣出", "融資現金償還", "融資前日餘額", "融資今日餘額", "融資限額",
	"融券買進", "融券賣出", "融券現券償還", "融券前日餘額", "融券今日餘額", "融券限額",
	"資券互抵", "註記",
}

// parseTWSECredit handles the main-board margin transaction balances,
// published since 2001-01-01.
func parseTWSECredit(date string, body []byte) (*CategoryRecord, error) {
	var p twseMargnPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "twse credit: decode")
	}
	if len(p.Data) == 0 {
		return nil, &NoDataError{Source: TWSE, Category: CreditTransactions, Date: date}
	}

	idx := newHeaderIndex(TWSE, CreditTransactions, twseCreditFields)
	rec := newCategoryRecord()
	for _, raw := range p.Data {
		row := parse.CleanAll(raw)
		sid, err := idx.cell(row, "股票代號")
		if err != nil {
			return nil, err
		}
		if !parse.ValidSecurityID(sid.S) {
			continue
		}
		vals, err := idx.cells(row,
			"融資買進", "融資賣出", "融資現金償還", "融資今日餘額", "融資限額",
			"融券買進", "融券賣出", "融券現券償還", "融券今日餘額", "融券限額",
			"資券互抵", "註記",
		)
		if err != nil {
			return nil, err
		}
		rec.Values[sid.S] = vals
	}
	return rec, nil
}
