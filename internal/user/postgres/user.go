package postgres

import (
	"context"
	"errors"
	"fmt"

	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
	"github.com/frahmantamala/leaf/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := scope(r.db.WithContext(ctx).Preload("Groups")).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ?", email)
	})
}

func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ? AND disabled = ?", email, false)
	})
}

func (r *UserRepository) Create(ctx context.Context, attrs user.CreateAttrs) (*userDatamodel.User, error) {
	existing, err := r.FindByEmail(ctx, attrs.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, user.ErrDuplicateEmail
	}

	disabled := true
	if attrs.Disabled != nil {
		disabled = *attrs.Disabled
	}
	u := &userDatamodel.User{
		Email:          attrs.Email,
		HashedPassword: attrs.HashedPassword,
		FirstName:      attrs.FirstName,
		LastName:       attrs.LastName,
		Disabled:       disabled,
		Permissions:    attrs.Permissions,
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, err
	}
	u.Groups = []userDatamodel.Group{}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, email string, attrs map[string]interface{}) (*userDatamodel.User, error) {
	if len(attrs) > 0 {
		err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("email = ?", email).Updates(attrs).Error
		if err != nil {
			return nil, err
		}
	}
	return r.FindByEmail(ctx, email)
}

// AddToGroup links the user to the named group.
func (r *UserRepository) AddToGroup(ctx context.Context, u *userDatamodel.User, groupName string) error {
	var g userDatamodel.Group
	if err := r.db.WithContext(ctx).Where("name = ?", groupName).First(&g).Error; err != nil {
		return fmt.Errorf("find group %q: %w", groupName, err)
	}
	return r.db.WithContext(ctx).Model(u).Association("Groups").Append(&g)
}

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Ensure creates the group or updates its permissions when it exists.
func (r *GroupRepository) Ensure(ctx context.Context, name string, permissions int) (*userDatamodel.Group, error) {
	var g userDatamodel.Group
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&g).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		g = userDatamodel.Group{Name: name, Permissions: permissions}
		if err := r.db.WithContext(ctx).Create(&g).Error; err != nil {
			return nil, err
		}
		return &g, nil
	case err != nil:
		return nil, err
	}
	if g.Permissions != permissions {
		if err := r.db.WithContext(ctx).Model(&g).Update("permissions", permissions).Error; err != nil {
			return nil, err
		}
		g.Permissions = permissions
	}
	return &g, nil
}

func (r *GroupRepository) List(ctx context.Context) ([]userDatamodel.Group, error) {
	var groups []userDatamodel.Group
	if err := r.db.WithContext(ctx).Order("id").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// Clear removes every membership and group.
func (r *GroupRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&userDatamodel.GroupUser{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&userDatamodel.Group{}).Error
	})
}
