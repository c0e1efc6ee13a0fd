package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kwestin/tally/internal/model"
)

// OFXParser parses OFX/QFX bank and credit-card statements.
type OFXParser struct {
	logger *slog.Logger
}

// NewOFXParser creates an OFX parser.
func NewOFXParser(logger *slog.Logger) *OFXParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &OFXParser{logger: logger}
}

var (
	// Mixed-case SEVERITY values trip the strict OFX parser.
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// SGML-style exports sometimes drop the closing bracket on a bare tag.
	bareTagRe = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess repairs formatting quirks seen in real bank exports before
// handing the document to ofxgo.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	content = bareTagRe.ReplaceAllString(content, "$1>")
	return content
}

// Parse reads an OFX/QFX document and returns its transactions. Statements
// that fail to convert are logged and skipped; the file as a whole fails
// only when it cannot be parsed at all.
func (p *OFXParser) Parse(_ context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		accountID := string(stmt.BankAcctFrom.AcctID)
		for _, ofxTx := range stmt.BankTranList.Transactions {
			transactions = append(transactions, p.convert(ofxTx, accountID, model.AccountBank))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		accountID := string(stmt.CCAcctFrom.AcctID)
		for _, ofxTx := range stmt.BankTranList.Transactions {
			transactions = append(transactions, p.convert(ofxTx, accountID, model.AccountCreditCard))
		}
	}

	p.logger.Info("parsed OFX file",
		"transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

// convert maps one OFX transaction into the internal model. OFX encodes
// direction in the amount sign; the model stores a positive amount and the
// direction in Type.
func (p *OFXParser) convert(ofxTx ofxgo.Transaction, accountID string, kind model.AccountKind) model.Transaction {
	amount := decimal.NewFromBigRat(&ofxTx.TrnAmt.Rat, 2)

	txType := model.TypeIncome
	if amount.IsNegative() {
		txType = model.TypeExpense
		amount = amount.Abs()
	}

	id := string(ofxTx.FiTID)
	if id == "" {
		id = uuid.NewString()
	}

	txn := model.Transaction{
		ID:               id,
		Date:             ofxTx.DtPosted.Time,
		Description:      string(ofxTx.Name),
		Merchant:         merchantName(ofxTx),
		Amount:           amount,
		Type:             txType,
		AccountID:        accountID,
		AccountKind:      kind,
		EnrichmentStatus: model.EnrichmentPending,
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

// noisePrefixes are processor boilerplate prepended to merchant names.
var noisePrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// merchantName extracts the cleanest merchant name an OFX record offers:
// the payee aggregate when present, otherwise the name field, falling back
// to the memo when the name is processor boilerplate.
func merchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericName(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	upper := strings.ToUpper(name)
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip a leading "MM/DD " date stamp.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericName(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
