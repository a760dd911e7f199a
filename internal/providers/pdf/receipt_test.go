package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func sampleRow() domain.InvoiceRow {
	return domain.InvoiceRow{
		ID:     "1765432109876543210",
		Name:   "Evil Rabbit",
		Email:  "evil@rabbit.com",
		Amount: 123456,
		Status: domain.StatusPaid,
		Date:   datatypes.Date(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
	}
}

func TestReceiptFromInvoice(t *testing.T) {
	data, err := ReceiptFromInvoice(sampleRow())
	require.NoError(t, err)

	assert.Equal(t, ReceiptData{
		Number:        "INV-20240305-543210",
		IssueDate:     "Mar 5, 2024",
		Status:        "PAID",
		CustomerName:  "Evil Rabbit",
		CustomerEmail: "evil@rabbit.com",
		Amount:        "$1,234.56",
	}, data)
}

func TestGenerateReceipt(t *testing.T) {
	data, err := ReceiptFromInvoice(sampleRow())
	require.NoError(t, err)

	doc, err := New().GenerateReceipt(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestGenerateReceiptRequiresNumber(t *testing.T) {
	_, err := New().GenerateReceipt(context.Background(), ReceiptData{})
	assert.Error(t, err)
}
