package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type SKUModel struct {
	NDC          string `gorm:"primaryKey;column:ndc"`
	Name         string `gorm:"not null;index"`
	Manufacturer string `gorm:"not null"`
	DosageForm   string
	Strength     string
	PackageSize  string
	GTIN         string `gorm:"column:gtin"`
	ImageURL     string
	Status       string    `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
	LastModified time.Time `gorm:"not null"`
	CreatedBy    string
	ReviewedBy   string
}

func (SKUModel) TableName() string { return "skus" }

type RevisionModel struct {
	ID        string         `gorm:"primaryKey"`
	NDC       string         `gorm:"not null;index;column:ndc"`
	Source    string         `gorm:"not null"`
	Actor     string
	Changes   datatypes.JSON `gorm:"type:jsonb"`
	Snapshot  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;index"`
}

func (RevisionModel) TableName() string { return "sku_revisions" }
