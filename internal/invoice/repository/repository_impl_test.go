package repository

import (
	"context"
	"testing"
	"time"

	customerdomain "github.com/smallbiznis/invoicedesk/internal/customer/domain"
	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/pkg/db"
	"github.com/smallbiznis/invoicedesk/pkg/db/dbtest"
	"github.com/smallbiznis/invoicedesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	conn := dbtest.New(t, &customerdomain.Customer{}, &domain.Invoice{})
	require.NoError(t, conn.Create(&[]customerdomain.Customer{
		{ID: "c1", Name: "Evil Rabbit", Email: "evil@rabbit.com"},
		{ID: "c2", Name: "Lee Robinson", Email: "lee@robinson.com"},
	}).Error)
	return conn
}

func day(s string) datatypes.Date {
	parsed, _ := time.Parse("2006-01-02", s)
	return datatypes.Date(parsed)
}

func TestInsertFindUpdateDelete(t *testing.T) {
	conn := setup(t)
	repo := Provide()
	ctx := context.Background()

	inv := &domain.Invoice{ID: "i1", CustomerID: "c1", Amount: 1999, Status: domain.StatusPending, Date: day("2024-03-05")}
	require.NoError(t, repo.Insert(ctx, conn, inv))

	row, err := repo.FindByID(ctx, conn, "i1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Evil Rabbit", row.Name)
	assert.Equal(t, int64(1999), row.Amount)
	assert.Equal(t, "2024-03-05", time.Time(row.Date).Format("2006-01-02"))

	require.NoError(t, repo.Update(ctx, conn, &domain.Invoice{ID: "i1", CustomerID: "c2", Amount: 500, Status: domain.StatusPaid}))

	row, err = repo.FindByID(ctx, conn, "i1")
	require.NoError(t, err)
	assert.Equal(t, "c2", row.CustomerID)
	assert.Equal(t, int64(500), row.Amount)
	assert.Equal(t, domain.StatusPaid, row.Status)
	assert.Equal(t, "2024-03-05", time.Time(row.Date).Format("2006-01-02"))

	require.NoError(t, repo.Delete(ctx, conn, "i1"))
	row, err = repo.FindByID(ctx, conn, "i1")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestInsertUnknownCustomer(t *testing.T) {
	conn := setup(t)
	err := Provide().Insert(context.Background(), conn, &domain.Invoice{
		ID: "i1", CustomerID: "ghost", Amount: 100, Status: domain.StatusPaid, Date: day("2024-01-01"),
	})
	require.Error(t, err)
	assert.True(t, db.IsForeignKeyErr(err))
}

func TestListSearchAndPaging(t *testing.T) {
	conn := setup(t)
	repo := Provide()
	ctx := context.Background()

	fixtures := []domain.Invoice{
		{ID: "i1", CustomerID: "c1", Amount: 100, Status: domain.StatusPaid, Date: day("2024-01-01")},
		{ID: "i2", CustomerID: "c1", Amount: 200, Status: domain.StatusPending, Date: day("2024-01-02")},
		{ID: "i3", CustomerID: "c2", Amount: 300, Status: domain.StatusPending, Date: day("2024-01-03")},
	}
	for i := range fixtures {
		require.NoError(t, repo.Insert(ctx, conn, &fixtures[i]))
	}

	rows, err := repo.List(ctx, conn, domain.ListInvoiceFilter{}, pagination.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "i3", rows[0].ID)
	assert.Equal(t, "i2", rows[1].ID)

	rows, err = repo.List(ctx, conn, domain.ListInvoiceFilter{}, pagination.Pagination{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "i1", rows[0].ID)

	filter := domain.ListInvoiceFilter{Query: "RABBIT"}
	rows, err = repo.List(ctx, conn, filter, pagination.Pagination{Page: 1, PageSize: 6})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	total, err := repo.Count(ctx, conn, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	total, err = repo.Count(ctx, conn, domain.ListInvoiceFilter{Query: "pend"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	conn := setup(t)
	require.NoError(t, conn.Create(&customerdomain.Customer{ID: "c3", Name: "100% Fresh_Co", Email: "ops@fresh.co"}).Error)
	repo := Provide()
	ctx := context.Background()

	for i, customerID := range []string{"c1", "c2", "c3"} {
		inv := &domain.Invoice{ID: "i" + customerID, CustomerID: customerID, Amount: int64(100 * (i + 1)), Status: domain.StatusPaid, Date: day("2024-01-01")}
		require.NoError(t, repo.Insert(ctx, conn, inv))
	}

	for _, query := range []string{"_", "%", "h_c", "100%"} {
		total, err := repo.Count(ctx, conn, domain.ListInvoiceFilter{Query: query})
		require.NoError(t, err, query)
		assert.Equal(t, int64(1), total, query)
	}

	total, err := repo.Count(ctx, conn, domain.ListInvoiceFilter{Query: "!"})
	require.NoError(t, err)
	assert.Zero(t, total)
}
