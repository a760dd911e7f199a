package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/invoicedesk/internal/auth/domain"
	customerdomain "github.com/smallbiznis/invoicedesk/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	lockKey = "invoicedesk:seed"
	lockTTL = 2 * time.Minute
)

var ErrSeedInProgress = errors.New("seed already running on another instance")

// File is the YAML document accepted by the seed command.
type File struct {
	Customers []Customer `yaml:"customers"`
	Users     []User     `yaml:"users"`
	Invoices  []Invoice  `yaml:"invoices"`
}

type Customer struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	ImageURL string `yaml:"image_url"`
}

type User struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Invoice references its customer by email. Amount is in cents and Date is
// YYYY-MM-DD.
type Invoice struct {
	ID            string `yaml:"id"`
	CustomerEmail string `yaml:"customer_email"`
	Amount        int64  `yaml:"amount"`
	Status        string `yaml:"status"`
	Date          string `yaml:"date"`
}

// Summary counts rows written; existing rows are skipped.
type Summary struct {
	Customers int
	Users     int
	Invoices  int
}

func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	return f, nil
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Customers   customerdomain.Service
	Auth        authdomain.Service
	InvoiceRepo invoicedomain.Repository
	Locker      *ratelimit.Locker `optional:"true"`
}

type Seeder struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	customers   customerdomain.Service
	auth        authdomain.Service
	invoiceRepo invoicedomain.Repository
	locker      *ratelimit.Locker
}

func New(p Params) *Seeder {
	return &Seeder{
		db:          p.DB,
		log:         p.Log.Named("seed"),
		genID:       p.GenID,
		customers:   p.Customers,
		auth:        p.Auth,
		invoiceRepo: p.InvoiceRepo,
		locker:      p.Locker,
	}
}

// Apply writes the file contents. When redis is configured a lock keeps two
// instances from seeding at the same time.
func (s *Seeder) Apply(ctx context.Context, f File) (Summary, error) {
	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, lockKey, lockTTL)
		if err != nil {
			return Summary{}, err
		}
		if !ok {
			return Summary{}, ErrSeedInProgress
		}
		defer func() {
			if err := s.locker.Release(context.Background(), lockKey, token); err != nil {
				s.log.Warn("failed to release seed lock", zap.Error(err))
			}
		}()
	}

	var summary Summary
	for _, c := range f.Customers {
		_, err := s.customers.Create(ctx, customerdomain.CreateCustomerRequest{
			ID:       c.ID,
			Name:     c.Name,
			Email:    c.Email,
			ImageURL: c.ImageURL,
		})
		switch {
		case errors.Is(err, customerdomain.ErrDuplicate):
			continue
		case err != nil:
			return summary, fmt.Errorf("customer %s: %w", c.Email, err)
		}
		summary.Customers++
	}

	for _, u := range f.Users {
		_, err := s.auth.CreateUser(ctx, authdomain.CreateUserRequest{
			Name:     u.Name,
			Email:    u.Email,
			Password: u.Password,
			Role:     u.Role,
		})
		switch {
		case errors.Is(err, authdomain.ErrUserExists):
			continue
		case err != nil:
			return summary, fmt.Errorf("user %s: %w", u.Email, err)
		}
		summary.Users++
	}

	if len(f.Invoices) == 0 {
		return summary, nil
	}

	customers, err := s.customers.List(ctx)
	if err != nil {
		return summary, err
	}
	byEmail := make(map[string]string, len(customers))
	for _, c := range customers {
		byEmail[strings.ToLower(c.Email)] = c.ID
	}

	for i, inv := range f.Invoices {
		invoice, err := s.buildInvoice(inv, byEmail)
		if err != nil {
			return summary, fmt.Errorf("invoice %d: %w", i, err)
		}
		if inv.ID != "" {
			existing, err := s.invoiceRepo.FindByID(ctx, s.db, inv.ID)
			if err != nil {
				return summary, err
			}
			if existing != nil {
				continue
			}
		}
		if err := s.invoiceRepo.Insert(ctx, s.db, invoice); err != nil {
			return summary, fmt.Errorf("invoice %d: %w", i, err)
		}
		summary.Invoices++
	}

	s.log.Info("seed applied",
		zap.Int("customers", summary.Customers),
		zap.Int("users", summary.Users),
		zap.Int("invoices", summary.Invoices),
	)
	return summary, nil
}

func (s *Seeder) buildInvoice(inv Invoice, byEmail map[string]string) (*invoicedomain.Invoice, error) {
	customerID, ok := byEmail[strings.ToLower(strings.TrimSpace(inv.CustomerEmail))]
	if !ok {
		return nil, fmt.Errorf("unknown customer %q", inv.CustomerEmail)
	}
	status := invoicedomain.Status(inv.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", inv.Status)
	}
	if inv.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	day, err := time.Parse(time.DateOnly, inv.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", inv.Date, err)
	}

	id := inv.ID
	if id == "" {
		id = s.genID.Generate().String()
	}
	return &invoicedomain.Invoice{
		ID:         id,
		CustomerID: customerID,
		Amount:     inv.Amount,
		Status:     status,
		Date:       datatypes.Date(day),
	}, nil
}
