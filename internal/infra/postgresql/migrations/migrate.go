package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/markmate/upload-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createCredentialsTable(),
		createBatchesTable(),
		createCandidatesTable(),
		createCandidateMarksTable(),
	})

	return m.Migrate()
}

func createCredentialsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_portal_credentials",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.CredentialModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CredentialModel{})
		},
	}
}

func createBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_upload_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_upload_batches_status_created ON upload_batches (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_upload_batches_started_at ON upload_batches (started_at) WHERE status = 'PROCESSING'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}

func createCandidatesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_candidates",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CandidateModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_candidates_batch_row ON candidates (batch_id, row_index)`,
				`CREATE INDEX IF NOT EXISTS idx_candidates_batch_status ON candidates (batch_id, status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CandidateModel{})
		},
	}
}

func createCandidateMarksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_candidate_marks",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CandidateMarkModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_candidate_marks_candidate ON candidate_marks (candidate_id, nos_identifier)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CandidateMarkModel{})
		},
	}
}
