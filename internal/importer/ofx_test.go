package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwestin/tally/internal/model"
)

func fakeOFXTransaction(name string) ofxgo.Transaction {
	return ofxgo.Transaction{Name: ofxgo.String(name)}
}

const bankStatementOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>Info
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>987654321
<ACCTID>555000111
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-42.75
<FITID>9001
<NAME>POS PURCHASE TRADER JOES
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240112120000[0:GMT]
<TRNAMT>2500.00
<FITID>9002
<NAME>ACME CORP PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>3000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestOFXParserParse(t *testing.T) {
	parser := NewOFXParser(nil)

	transactions, err := parser.Parse(context.Background(), strings.NewReader(bankStatementOFX))
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	debit := transactions[0]
	assert.Equal(t, "9001", debit.ID)
	assert.Equal(t, model.TypeExpense, debit.Type)
	assert.Equal(t, "42.75", debit.Amount.StringFixed(2))
	assert.Equal(t, "TRADER JOES", debit.Merchant)
	assert.Equal(t, "555000111", debit.AccountID)
	assert.Equal(t, model.AccountBank, debit.AccountKind)
	assert.Equal(t, model.EnrichmentPending, debit.EnrichmentStatus)
	assert.NotEmpty(t, debit.Hash)
	assert.Equal(t, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), debit.Date.UTC())

	credit := transactions[1]
	assert.Equal(t, model.TypeIncome, credit.Type)
	assert.Equal(t, "2500.00", credit.Amount.StringFixed(2))
	assert.Equal(t, "ACME CORP PAYROLL", credit.Merchant)
}

func TestOFXParserMalformedFile(t *testing.T) {
	parser := NewOFXParser(nil)

	_, err := parser.Parse(context.Background(), strings.NewReader("this is not OFX"))
	assert.Error(t, err)
}

func TestPreprocess(t *testing.T) {
	t.Run("uppercases severity", func(t *testing.T) {
		got := preprocess("<SEVERITY>Info</SEVERITY>")
		assert.Equal(t, "<SEVERITY>INFO</SEVERITY>", got)
	})

	t.Run("repairs bare tags", func(t *testing.T) {
		got := preprocess("<OFX>\n<CURDEF\n</OFX>")
		assert.Equal(t, "<OFX>\n<CURDEF>\n</OFX>", got)
	})

	t.Run("trims leading blank lines", func(t *testing.T) {
		got := preprocess("\n\n  OFXHEADER:100")
		assert.Equal(t, "OFXHEADER:100", got)
	})
}

func TestMerchantNameCleanup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips POS prefix", "POS PURCHASE SHELL OIL", "SHELL OIL"},
		{"strips check card prefix", "CHECK CARD NETFLIX.COM", "NETFLIX.COM"},
		{"strips leading date stamp", "01/15 COSTCO WHOLESALE", "COSTCO WHOLESALE"},
		{"plain name untouched", "Whole Foods Market", "Whole Foods Market"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := fakeOFXTransaction(tt.input)
			assert.Equal(t, tt.expected, merchantName(txn))
		})
	}
}
