package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletTransactionType string

const (
	WalletTransactionDeposit    WalletTransactionType = "DEPOSIT"
	WalletTransactionWithdrawal WalletTransactionType = "WITHDRAWAL"
	WalletTransactionSettlement WalletTransactionType = "SETTLEMENT"
	WalletTransactionCommission WalletTransactionType = "COMMISSION"
)

type WalletTransaction struct {
	ID         string                `json:"id"`
	SupplierId string                `json:"supplier_id"`
	Type       WalletTransactionType `json:"type"`
	Amount     decimal.Decimal       `json:"amount"`
	Balance    decimal.Decimal       `json:"balance"`
	Reference  string                `json:"reference"`
	Status     string                `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
}
