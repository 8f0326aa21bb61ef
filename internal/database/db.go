package database

import (
	"log"

	"landedcost/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.DutyRate{},
		&model.VatRule{},
		&model.DeMinimisThreshold{},
		&model.Surcharge{},
		&model.FxRate{},
		&model.FreightCard{},
		&model.FreightStep{},
		&model.Category{},
		&model.ImportRun{},
		&model.ProvenanceRecord{},
		&model.JobLock{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
