package domain

import (
	"context"
	"errors"
)

type CreateCustomerRequest struct {
	ID       string
	Name     string
	Email    string
	ImageURL string
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context) ([]Customer, error)
	GetByID(context.Context, string) (Customer, error)
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")
	ErrDuplicate    = errors.New("duplicate_customer")
)
