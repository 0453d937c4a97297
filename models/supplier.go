package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SupplierStatus string

const (
	SupplierStatusPending   SupplierStatus = "PENDING"
	SupplierStatusApproved  SupplierStatus = "APPROVED"
	SupplierStatusRejected  SupplierStatus = "REJECTED"
	SupplierStatusSuspended SupplierStatus = "SUSPENDED"
)

type Supplier struct {
	ID           string          `json:"id"`
	Name         string          `json:"name" binding:"required"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	Status       SupplierStatus  `json:"status"`
	Address      string          `json:"address"`
	Rating       decimal.Decimal `json:"rating"`
	ReviewCount  int             `json:"review_count"`
	WalletAmount decimal.Decimal `json:"wallet_amount"`
	IsActive     *bool           `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Product struct {
	ID            string          `json:"id"`
	SupplierId    string          `json:"supplier_id"`
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Quantity      int             `json:"quantity"`
	ExpiryDate    *time.Time      `json:"expiry_date"`
	IsActive      *bool           `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Review struct {
	ID         string    `json:"id"`
	SupplierId string    `json:"supplier_id"`
	OrderId    string    `json:"order_id"`
	Author     string    `json:"author"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Reply      string    `json:"reply"`
	Hidden     bool      `json:"hidden"`
	CreatedAt  time.Time `json:"created_at"`
}
