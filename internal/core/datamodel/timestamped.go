package datamodel

import "time"

// Timestamped is the validity interval embedded by every persisted entity.
// DateTo stays nil while the row is current.
type Timestamped struct {
	DateFrom time.Time  `gorm:"column:date_from;not null;autoCreateTime" db:"date_from" json:"date_from"`
	DateTo   *time.Time `gorm:"column:date_to" db:"date_to" json:"date_to,omitempty"`
}

func (t Timestamped) IsCurrent(at time.Time) bool {
	if at.Before(t.DateFrom) {
		return false
	}
	return t.DateTo == nil || at.Before(*t.DateTo)
}
