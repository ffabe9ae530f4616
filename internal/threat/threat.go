// Package threat serves the geolocated threat reports and their categories.
package threat

import (
	"context"
	"errors"

	threatDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/threat"
)

type (
	Category = threatDatamodel.Category
	Threat   = threatDatamodel.Threat
)

var ErrDuplicateCategory = errors.New("threat category already exists")

type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	FindByID(ctx context.Context, id int64) (*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	Create(ctx context.Context, name string) (*Category, error)
}

// ThreatRepository returns threats with their Category filled in.
type ThreatRepository interface {
	List(ctx context.Context, categoryID int64) ([]Threat, error)
	FindByID(ctx context.Context, id int64) (*Threat, error)
	Create(ctx context.Context, t *Threat) error
}
