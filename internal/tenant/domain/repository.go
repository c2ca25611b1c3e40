package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrTenantNotFound = errors.New("tenant_not_found")

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Tenant, error)
}
