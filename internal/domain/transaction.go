package domain

import (
	"cloud.google.com/go/civil"
)

// Transaction is a flagged welfare payment.
//
// BeneficiaryName and Location are copied from the beneficiary when the
// transaction is created. They are independent values, not references.
type Transaction struct {
	ID              string     `json:"id"`
	Date            civil.Date `json:"date"`
	Scheme          string     `json:"scheme"`
	Amount          int64      `json:"amount"` // rupees
	BeneficiaryID   string     `json:"beneficiaryId"`
	BeneficiaryName string     `json:"beneficiaryName"`
	Location        Location   `json:"location"`
	FlagReason      string     `json:"flagReason"`
	Severity        Tier       `json:"riskSeverity"`
}

// FlagReasons enumerates why a payment was flagged for review.
var FlagReasons = []string{
	"Amount exceeds scheme limit",
	"Duplicate payment same month",
	"Bank account shared with multiple beneficiaries",
	"Unusual payment frequency",
	"Location mismatch",
	"Age eligibility concern",
	"Multiple scheme overlap same period",
	"Aadhaar verification pending",
}
