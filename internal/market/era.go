package market

import "net/url"

// Era is one historical period during which a source's raw schema for a
// category is stable. Request builds the upstream query for a date inside
// the era; Parse turns the raw payload into a CategoryRecord. A nil Parse
// marks a window that is documented upstream but has no parser (the data
// exists in a format nobody has mapped), which callers must treat the same
// as a pre-availability date.
type Era struct {
	From    string // inclusive, YYYYMMDD
	To      string // inclusive; empty means open-ended
	Request func(date string) (string, url.Values)
	Parse   func(date string, body []byte) (*CategoryRecord, error)
}

type eraKey struct {
	source   Source
	category Category
}

// eraTable is the single source of truth for availability windows. The
// boundary dates are historical facts researched from the exchanges'
// publications; adding a newly discovered era means adding one entry here
// plus its parser, nothing else.
var eraTable = map[eraKey][]Era{
	{TWSE, Price}: {
		{From: "20040211", Request: twsePriceRequest, Parse: parseTWSEPrice},
	},
	{TWSE, InstitutionalInvestors}: {
		{From: "20120502", To: "20141130", Request: twseInvestorsRequest, Parse: parseTWSEInvestorsV1},
		{From: "20141201", To: "20171217", Request: twseInvestorsRequest, Parse: parseTWSEInvestorsV2},
		{From: "20171218", Request: twseInvestorsRequest, Parse: parseTWSEInvestorsV3},
	},
	{TWSE, CreditTransactions}: {
		{From: "20010101", Request: twseCreditRequest, Parse: parseTWSECredit},
	},
	{TPEX, Price}: {
		{From: "20070101", To: "20070630", Request: tpexPriceHTMLRequest, Parse: parseTPEXPriceHTML},
		{From: "20070701", Request: tpexPriceRequest, Parse: parseTPEXPrice},
	},
	{TPEX, InstitutionalInvestors}: {
		{From: "20070423", To: "20141130", Request: tpexInvestorsHTMLRequest, Parse: parseTPEXInvestorsHTML},
		{From: "20141201", To: "20180114", Request: tpexInvestorsRequest, Parse: parseTPEXInvestorsV1},
		{From: "20180115", Request: tpexInvestorsRequest, Parse: parseTPEXInvestorsV2},
	},
	{TPEX, CreditTransactions}: {
		// 2003-2006 balances exist upstream in a retired page format that
		// was never mapped; requesting them is unsupported, not a retry.
		{From: "20030801", To: "20061231"},
		{From: "20070101", Request: tpexCreditRequest, Parse: parseTPEXCredit},
	},
}

// SelectVariant picks the schema-era parser for (source, category, date).
// Dates before the category's earliest documented window, inside an
// unimplemented window, or in a gap between windows yield
// UnsupportedEraError.
func SelectVariant(source Source, category Category, date string) (*Era, error) {
	eras := eraTable[eraKey{source, category}]
	unsupported := &UnsupportedEraError{
		Source:   source,
		Category: category,
		Date:     date,
		Earliest: eras[0].From,
	}
	for i := range eras {
		e := &eras[i]
		if date < e.From {
			return nil, unsupported
		}
		if e.To != "" && date > e.To {
			continue
		}
		if e.Parse == nil {
			return nil, unsupported
		}
		return e, nil
	}
	return nil, unsupported
}
