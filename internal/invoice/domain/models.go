package domain

import (
	customerdomain "github.com/smallbiznis/invoicedesk/internal/customer/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusPaid
}

// Invoice amounts are stored in minor units (cents). Date is the calendar
// day the invoice was created and is never rewritten by updates.
type Invoice struct {
	ID         string                   `gorm:"primaryKey;size:64" json:"id"`
	CustomerID string                   `gorm:"not null;size:64;index" json:"customer_id"`
	Customer   *customerdomain.Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"-"`
	Amount     int64                    `gorm:"not null" json:"amount"`
	Status     Status                   `gorm:"not null;size:16" json:"status"`
	Date       datatypes.Date           `gorm:"not null" json:"date"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceRow is an invoice joined with the customer columns shown in the
// dashboard table.
type InvoiceRow struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customer_id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	ImageURL   string         `json:"image_url"`
	Amount     int64          `json:"amount"`
	Status     Status         `json:"status"`
	Date       datatypes.Date `json:"date"`
}
