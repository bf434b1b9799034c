package market

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parserName(e *Era) string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s-%s", e.From, e.To)
}

func TestSelectVariant_Boundaries(t *testing.T) {
	tests := []struct {
		source   Source
		category Category
		date     string
		wantFrom string
		wantErr  bool
	}{
		// TWSE price: single open-ended era since 2004-02-11.
		{TWSE, Price, "20040210", "", true},
		{TWSE, Price, "20040211", "20040211", false},
		{TWSE, Price, "20240101", "20040211", false},

		// TWSE institutional investors: three eras.
		{TWSE, InstitutionalInvestors, "20120501", "", true},
		{TWSE, InstitutionalInvestors, "20120502", "20120502", false},
		{TWSE, InstitutionalInvestors, "20141130", "20120502", false},
		{TWSE, InstitutionalInvestors, "20141201", "20141201", false},
		{TWSE, InstitutionalInvestors, "20171217", "20141201", false},
		{TWSE, InstitutionalInvestors, "20171218", "20171218", false},

		// TWSE credit: since 2001-01-01.
		{TWSE, CreditTransactions, "20001231", "", true},
		{TWSE, CreditTransactions, "20010101", "20010101", false},

		// TPEX price: HTML era flips to JSON on 2007-07-01.
		{TPEX, Price, "20061231", "", true},
		{TPEX, Price, "20070101", "20070101", false},
		{TPEX, Price, "20070630", "20070101", false},
		{TPEX, Price, "20070701", "20070701", false},

		// TPEX institutional investors.
		{TPEX, InstitutionalInvestors, "20070422", "", true},
		{TPEX, InstitutionalInvestors, "20070423", "20070423", false},
		{TPEX, InstitutionalInvestors, "20141130", "20070423", false},
		{TPEX, InstitutionalInvestors, "20141201", "20141201", false},
		{TPEX, InstitutionalInvestors, "20180114", "20141201", false},
		{TPEX, InstitutionalInvestors, "20180115", "20180115", false},

		// TPEX credit: unimplemented 2003-2006 window, supported after.
		{TPEX, CreditTransactions, "20030731", "", true},
		{TPEX, CreditTransactions, "20050601", "", true},
		{TPEX, CreditTransactions, "20070101", "20070101", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s_%s", tt.source, tt.category, tt.date), func(t *testing.T) {
			era, err := SelectVariant(tt.source, tt.category, tt.date)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsUnsupported(err), "want UnsupportedEraError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, era.From, "wrong era selected: %s", parserName(era))
		})
	}
}

func TestSelectVariant_StableWithinEra(t *testing.T) {
	// Any two dates inside the same era must resolve to the same parser.
	a, err := SelectVariant(TPEX, Price, "20070102")
	require.NoError(t, err)
	b, err := SelectVariant(TPEX, Price, "20070630")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := SelectVariant(TPEX, Price, "20070701")
	require.NoError(t, err)
	assert.NotEqual(t, a.From, c.From)
}

func TestSelectVariant_UnsupportedCarriesWindow(t *testing.T) {
	_, err := SelectVariant(TWSE, InstitutionalInvestors, "20100101")
	var ue *UnsupportedEraError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, TWSE, ue.Source)
	assert.Equal(t, InstitutionalInvestors, ue.Category)
	assert.Equal(t, "20100101", ue.Date)
	assert.Equal(t, "20120502", ue.Earliest)
}
