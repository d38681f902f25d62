package repository

import (
	"context"

	"vehicle-marketplace/backend/internal/audit/domain"
)

// Repository appends audit entries. Entries are never updated or read back by the server.
type Repository interface {
	Create(ctx context.Context, e *domain.Entry) error
}
