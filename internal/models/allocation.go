package models

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Treatment describes how an allocation is handled for tax purposes.
type Treatment string

const (
	TreatmentStandard       Treatment = "standard"
	TreatmentMeals50        Treatment = "meals_50"
	TreatmentNonDeductible  Treatment = "non_deductible"
	TreatmentShareholder    Treatment = "shareholder_loan"
	TreatmentCapitalAsset   Treatment = "capital_asset"
	TreatmentIncomeOrCredit Treatment = "income_or_credit"
)

// Allocation is the provisional tax classification of one transaction.
type Allocation struct {
	ID                   string          `json:"allocation_id"`
	TransactionID        string          `json:"transaction_id"`
	Type                 string          `json:"allocation_type"`
	AppliesTo            AccountOwner    `json:"applies_to"`
	Amount               decimal.Decimal `json:"allocated_amount"`
	GST                  decimal.Decimal `json:"allocated_gst"`
	PST                  decimal.Decimal `json:"allocated_pst"`
	Category             string          `json:"reporting_category"`
	TaxCode              string          `json:"tax_code"`
	DeductiblePercentage int             `json:"deductible_percentage"`
	DeductibleAmount     decimal.Decimal `json:"deductible_amount"`
	ITCEligibleAmount    decimal.Decimal `json:"itc_eligible_amount"`
	Treatment            Treatment       `json:"tax_treatment"`
	Rule                 string          `json:"rule"`
	Notes                Notes           `json:"notes"`
}

// Asset is a capital asset candidate awaiting manual class assignment.
type Asset struct {
	ID                  string          `json:"asset_id"`
	Description         string          `json:"description"`
	AcquisitionDate     civil.Date      `json:"acquisition_date"`
	Cost                decimal.Decimal `json:"cost"`
	Currency            string          `json:"currency"`
	Vendor              string          `json:"vendor"`
	LinkedTransactionID string          `json:"linked_transaction_id"`
	LinkedDocumentIDs   []string        `json:"linked_document_ids"`
	Notes               Notes           `json:"notes"`
}
