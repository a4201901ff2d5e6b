package models

// DiseaseSpecialization is a reference-table row mapping a disease code to a
// specialization able to treat it. Maintained by the catalog service.
type DiseaseSpecialization struct {
	DiseaseCode    string `gorm:"column:disease_code;primaryKey"`
	Specialization string `gorm:"column:specialization;primaryKey"`
}

// TableName overrides the default pluralization.
func (DiseaseSpecialization) TableName() string { return "disease_specializations" }
