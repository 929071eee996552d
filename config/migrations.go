package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/siteqa/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20260110_create_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.Organization{},
					&models.OrganizationMember{}, &models.Contractor{})
			},
		},
		{
			ID: "20260110_create_project_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Project{}, &models.Lot{})
			},
		},
		{
			ID: "20260111_create_ncr_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&models.NCR{}, &models.NCRTransition{}); err != nil {
					return err
				}
				// One sequential number per project
				return tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_ncr_project_number ON ncrs (project_id, number)").Error
			},
		},
		{
			ID: "20260111_create_itp_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.ITPTemplate{}, &models.ITPInstance{})
			},
		},
		{
			ID: "20260214_add_itp_instance_version",
			Migrate: func(tx *gorm.DB) error {
				// Older instances predate optimistic locking
				return tx.Exec("UPDATE itp_instances SET version = 1 WHERE version IS NULL OR version = 0").Error
			},
		},
	})

	return m.Migrate()
}
