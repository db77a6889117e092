package models

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// AmountHint is a transaction whose amount is close to an invoice total.
type AmountHint struct {
	TransactionID string          `json:"transaction_id"`
	Date          civil.Date      `json:"txn_date"`
	CADAmount     decimal.Decimal `json:"cad_amount"`
	Delta         decimal.Decimal `json:"delta"`
	AccountOwner  AccountOwner    `json:"account_owner"`
	AccountName   string          `json:"account_name"`
	Description   string          `json:"description"`
}

// OwedCandidate is an invoice with no transaction settling it exactly.
type OwedCandidate struct {
	DocumentID           string          `json:"document_id"`
	Counterparty         string          `json:"counterparty"`
	IssueDate            civil.Date      `json:"issue_date"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Currency             string          `json:"currency"`
	SourceFile           string          `json:"source_file"`
	LinkedTransactionIDs []string        `json:"linked_transaction_ids"`
	LinkedSum            decimal.Decimal `json:"linked_sum"`
	SplitSettlement      bool            `json:"split_settlement"`
	NearestAmountHints   []AmountHint    `json:"nearest_amount_hints"`
}
