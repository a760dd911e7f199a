package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/pkg/db/pagination"
	"gorm.io/gorm"
)

const selectRows = `SELECT invoices.id, invoices.customer_id, customers.name, customers.email, customers.image_url,
       invoices.amount, invoices.status, invoices.date
  FROM invoices
  JOIN customers ON customers.id = invoices.customer_id`

// '!' escapes wildcards; a backslash literal is not portable to mysql.
const searchClause = ` WHERE LOWER(customers.name) LIKE ? ESCAPE '!' OR LOWER(customers.email) LIKE ? ESCAPE '!' OR LOWER(invoices.status) LIKE ? ESCAPE '!'`

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, customer_id, amount, status, date) VALUES (?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.CustomerID,
		invoice.Amount,
		invoice.Status,
		invoice.Date,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET customer_id = ?, amount = ?, status = ? WHERE id = ?`,
		invoice.CustomerID,
		invoice.Amount,
		invoice.Status,
		invoice.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.InvoiceRow, error) {
	var rows []*domain.InvoiceRow
	err := db.WithContext(ctx).Raw(selectRows+` WHERE invoices.id = ?`, id).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.InvoiceRow, error) {
	query, args := withSearch(selectRows, filter)
	query += ` ORDER BY invoices.date DESC, invoices.id DESC LIMIT ? OFFSET ?`
	args = append(args, page.PageSize, page.Offset())

	var rows []*domain.InvoiceRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter) (int64, error) {
	query, args := withSearch(`SELECT COUNT(*) FROM invoices JOIN customers ON customers.id = invoices.customer_id`, filter)

	var total int64
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func withSearch(base string, filter domain.ListInvoiceFilter) (string, []any) {
	term := strings.ToLower(strings.TrimSpace(filter.Query))
	if term == "" {
		return base, nil
	}
	like := "%" + likeEscaper.Replace(term) + "%"
	return base + searchClause, []any{like, like, like}
}
