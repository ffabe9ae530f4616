package threat

import "github.com/frahmantamala/leaf/internal/core/datamodel"

type Category struct {
	ID   int64  `gorm:"primaryKey" db:"id"`
	Name string `gorm:"column:name;size:255;uniqueIndex;not null" db:"name"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (Category) TableName() string {
	return "threat_categories"
}

// Threat is a reported point. Rows are read and written through sqlx,
// the gorm tags only serve AutoMigrate in tests and preloading from posts.
type Threat struct {
	ID         int64    `gorm:"primaryKey" db:"id"`
	Latitude   float64  `gorm:"column:latitude;not null" db:"latitude"`
	Longitude  float64  `gorm:"column:longitude;not null" db:"longitude"`
	CategoryID int64    `gorm:"column:category_id;not null;index" db:"category_id"`
	Category   Category `gorm:"foreignKey:CategoryID" db:"-"`

	datamodel.Timestamped `gorm:"embedded"`
}

func (Threat) TableName() string {
	return "threats"
}
