package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/billsdeck/ledgersync/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	err = CreateTables(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// CreateTables bootstraps the schema owned by the sync engine. Transactions
// and line items belong to the upstream extraction pipeline; their tables are
// created here as well so a standalone deployment works out of the box.
func CreateTables(db *sql.DB) error {
	for _, create := range []func(*sql.DB) error{
		createSyncJobTable,
		createSyncJobItemTable,
		createTransactionTable,
		createLineItemTable,
		createIntegrationTable,
		createSettingsTable,
		createReferenceTable,
	} {
		if err := create(db); err != nil {
			return err
		}
	}
	return nil
}

func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

func createSyncJobTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_jobs (
			id SERIAL PRIMARY KEY,
			job_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			transaction_ids JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'queued',
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			next_run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			progress INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			skipped_count INTEGER NOT NULL DEFAULT 0,
			total_count INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			locked_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		log.Printf("Error creating sync_jobs table: %v", err)
	}
	return err
}

func createSyncJobItemTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_job_items (
			id SERIAL PRIMARY KEY,
			item_id TEXT NOT NULL UNIQUE,
			job_id TEXT NOT NULL REFERENCES sync_jobs(job_id) ON DELETE CASCADE,
			reference_id TEXT NOT NULL,
			external_id TEXT,
			status TEXT NOT NULL DEFAULT 'queued',
			result JSONB,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating sync_job_items table: %v", err)
	}
	return err
}

func createTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			organization_id TEXT NOT NULL,
			payee TEXT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			tax_amount BIGINT NOT NULL DEFAULT 0,
			discount_amount BIGINT NOT NULL DEFAULT 0,
			tax_extracted BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT,
			date TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			external_id TEXT,
			accounting_platform TEXT,
			accounting_id TEXT,
			accounting_url TEXT,
			meta_data JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating transactions table: %v", err)
	}
	return err
}

func createLineItemTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transaction_line_items (
			id SERIAL PRIMARY KEY,
			line_item_id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL REFERENCES transactions(transaction_id) ON DELETE CASCADE,
			product_name TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL DEFAULT 1,
			price BIGINT NOT NULL,
			tax_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			taxable BOOLEAN NOT NULL DEFAULT TRUE,
			discount BIGINT NOT NULL DEFAULT 0,
			total_amount BIGINT NOT NULL,
			line_account_id TEXT,
			line_account_code TEXT,
			external_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating transaction_line_items table: %v", err)
	}
	return err
}

func createIntegrationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS integrations (
			id SERIAL PRIMARY KEY,
			integration_id TEXT NOT NULL UNIQUE,
			organization_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			priority INTEGER NOT NULL DEFAULT 0,
			expires_at TIMESTAMPTZ,
			tenant_id TEXT,
			realm_id TEXT,
			org_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating integrations table: %v", err)
	}
	return err
}

func createSettingsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS organization_settings (
			organization_id TEXT PRIMARY KEY,
			auto_create_list BOOLEAN NOT NULL DEFAULT FALSE,
			default_expense_type TEXT,
			default_sales_type TEXT,
			provider_defaults JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating organization_settings table: %v", err)
	}
	return err
}

func createReferenceTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reference_entities (
			id SERIAL PRIMARY KEY,
			organization_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			kind TEXT NOT NULL,
			external_id TEXT NOT NULL,
			name TEXT,
			code TEXT,
			type TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (organization_id, provider, kind, external_id)
		)
	`)
	if err != nil {
		log.Printf("Error creating reference_entities table: %v", err)
	}
	return err
}
