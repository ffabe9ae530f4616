package user

import (
	"github.com/frahmantamala/leaf/internal/core/datamodel"
	"gorm.io/gorm"
)

type User struct {
	ID             int64   `gorm:"primaryKey"`
	Email          string  `gorm:"column:email;size:255;uniqueIndex;not null"`
	HashedPassword string  `gorm:"column:hashed_password;not null"`
	FirstName      string  `gorm:"column:first_name;size:255;not null"`
	LastName       string  `gorm:"column:last_name;size:255;not null"`
	Disabled       bool    `gorm:"column:disabled;not null"`
	ProfileImage   *string `gorm:"column:profile_image"`
	Permissions    int     `gorm:"column:permissions;not null;default:0"`
	Groups         []Group `gorm:"many2many:groups_users;"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (User) TableName() string {
	return "users"
}

// GroupMasks returns the permission masks of every group the user belongs to.
func (u *User) GroupMasks() []int {
	masks := make([]int, 0, len(u.Groups))
	for _, g := range u.Groups {
		masks = append(masks, g.Permissions)
	}
	return masks
}

type Group struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"column:name;size:255;uniqueIndex;not null"`
	Permissions int    `gorm:"column:permissions;not null;default:0"`
	Users       []User `gorm:"many2many:groups_users;"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupUser is the membership row joining users and groups.
type GroupUser struct {
	UserID  int64 `gorm:"primaryKey;column:user_id"`
	GroupID int64 `gorm:"primaryKey;column:group_id"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (GroupUser) TableName() string {
	return "groups_users"
}

// SetupJoinTables registers GroupUser as the membership model so that joins
// carry their own validity interval. Call before AutoMigrate or any association write.
func SetupJoinTables(db *gorm.DB) error {
	if err := db.SetupJoinTable(&User{}, "Groups", &GroupUser{}); err != nil {
		return err
	}
	return db.SetupJoinTable(&Group{}, "Users", &GroupUser{})
}
