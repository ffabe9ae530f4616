package postgres

import (
	"context"
	"errors"

	threatDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/threat"
	"github.com/frahmantamala/leaf/internal/threat"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]threatDatamodel.Category, error) {
	var categories []threatDatamodel.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*threatDatamodel.Category, error) {
	var cat threatDatamodel.Category
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*threatDatamodel.Category, error) {
	var cat threatDatamodel.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (r *CategoryRepository) Create(ctx context.Context, name string) (*threatDatamodel.Category, error) {
	existing, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, threat.ErrDuplicateCategory
	}

	cat := &threatDatamodel.Category{Name: name}
	if err := r.db.WithContext(ctx).Create(cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, threat.ErrDuplicateCategory
		}
		return nil, err
	}
	return cat, nil
}

// Ensure creates the category unless one with the name exists.
func (r *CategoryRepository) Ensure(ctx context.Context, name string) (*threatDatamodel.Category, bool, error) {
	cat, err := r.Create(ctx, name)
	if errors.Is(err, threat.ErrDuplicateCategory) {
		existing, err := r.FindByName(ctx, name)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return cat, true, nil
}

// Clear removes every category that no threat refers to.
func (r *CategoryRepository) Clear(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id NOT IN (?)", r.db.Model(&threatDatamodel.Threat{}).Select("category_id")).
		Delete(&threatDatamodel.Category{})
	return res.RowsAffected, res.Error
}
