// Package form turns a submitted invoice form into typed values.
package form

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
)

const (
	FieldCustomerID = "customerId"
	FieldAmount     = "amount"
	FieldStatus     = "status"
)

// MaxMinorUnits caps a single invoice at one trillion dollars, well inside
// int64 cents.
const MaxMinorUnits int64 = 100_000_000_000_000

var maxAmountCents = decimal.NewFromInt(MaxMinorUnits)

var fieldMessages = map[string]string{
	FieldCustomerID: "Please select a customer.",
	FieldAmount:     "Please enter an amount greater than $0.",
	FieldStatus:     "Please select an invoice status.",
}

// InvoiceInput is a validated invoice form.
type InvoiceInput struct {
	CustomerID string
	Amount     decimal.Decimal
	Status     domain.Status
}

// MinorUnits is the amount in cents.
func (in InvoiceInput) MinorUnits() int64 {
	return ToMinorUnits(in.Amount)
}

type rawInvoice struct {
	CustomerID string `form:"customerId" validate:"required"`
	Amount     string `form:"amount" validate:"positive_amount"`
	Status     string `form:"status" validate:"oneof=pending paid"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("form"), ",")
			return name
		})
		_ = v.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
			_, ok := parseAmount(fl.Field().String())
			return ok
		})
		validate = v
	})
	return validate
}

// Parse validates a flat form submission. Every invalid field gets exactly
// one message; nothing is coerced before validation.
func Parse(values map[string]string) (InvoiceInput, *ValidationError) {
	raw := rawInvoice{
		CustomerID: strings.TrimSpace(values[FieldCustomerID]),
		Amount:     strings.TrimSpace(values[FieldAmount]),
		Status:     strings.TrimSpace(values[FieldStatus]),
	}

	if err := validatorInstance().Struct(raw); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return InvoiceInput{}, &ValidationError{Message: err.Error()}
		}
		fields := domain.FieldErrors{}
		for _, fe := range verrs {
			fields[fe.Field()] = []string{fieldMessages[fe.Field()]}
		}
		return InvoiceInput{}, &ValidationError{Fields: fields}
	}

	amount, _ := parseAmount(raw.Amount)
	return InvoiceInput{
		CustomerID: raw.CustomerID,
		Amount:     amount,
		Status:     domain.Status(raw.Status),
	}, nil
}

// parseAmount accepts amounts that round to at least one cent and at most
// MaxMinorUnits cents.
func parseAmount(value string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	cents := amount.Shift(2).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxAmountCents) {
		return decimal.Zero, false
	}
	return amount, true
}

// ToMinorUnits converts a currency amount to cents, rounding half away
// from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
