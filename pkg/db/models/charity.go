package models

import (
	"time"

	"github.com/lib/pq"
)

// Charity is one entry of the donation catalog. The reserved id
// "support-wishbee" routes to the platform tip path and is excluded from
// catalog listings.
type Charity struct {
	ID          string         `gorm:"column:id;primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description"`
	Icon        string         `gorm:"column:icon"`
	LogoURL     *string        `gorm:"column:logo_url"`
	Causes      pq.StringArray `gorm:"column:causes;type:text[]"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
