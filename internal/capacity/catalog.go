package capacity

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/atlasmed/casematch-backend/pkg/db/models"
)

// Catalog resolves disease codes to treating specializations from the shared
// reference table. Implements matching.SpecializationCatalog.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog binds the catalog to the provided GORM connection.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// SpecializationsForDisease returns the specializations able to treat the
// given disease code.
func (c *Catalog) SpecializationsForDisease(ctx context.Context, code string) ([]string, error) {
	var specs []string
	err := c.db.WithContext(ctx).
		Model(&models.DiseaseSpecialization{}).
		Where("disease_code = ?", code).
		Pluck("specialization", &specs).Error
	if err != nil {
		return nil, fmt.Errorf("query disease specializations: %w", err)
	}
	return specs, nil
}
