package post

import (
	"github.com/frahmantamala/leaf/internal/core/datamodel"
	threatDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/threat"
	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
)

type Post struct {
	ID       int64                  `gorm:"primaryKey"`
	UserID   int64                  `gorm:"column:user_id;not null;index"`
	User     userDatamodel.User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ThreatID int64                  `gorm:"column:threat_id;not null;index"`
	Threat   threatDatamodel.Threat `gorm:"foreignKey:ThreatID"`
	Content  string                 `gorm:"column:content;not null"`
	Image    *string                `gorm:"column:image"`
	Visible  bool                   `gorm:"column:visible;not null"`
	Comments []Comment              `gorm:"foreignKey:PostID"`
	Likes    []Like                 `gorm:"foreignKey:PostID"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (Post) TableName() string {
	return "posts"
}

type Comment struct {
	ID      int64              `gorm:"primaryKey"`
	UserID  int64              `gorm:"column:user_id;not null;index"`
	User    userDatamodel.User `gorm:"foreignKey:UserID"`
	PostID  int64              `gorm:"column:post_id;not null;index"`
	Content string             `gorm:"column:content;size:255;not null"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (Comment) TableName() string {
	return "comments"
}

type Like struct {
	ID     int64              `gorm:"primaryKey"`
	UserID int64              `gorm:"column:user_id;not null;index"`
	User   userDatamodel.User `gorm:"foreignKey:UserID"`
	PostID int64              `gorm:"column:post_id;not null;index"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (Like) TableName() string {
	return "likes"
}
