package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20250612090000",
		up:      mig_20250612090000_core_schema_up,
		down:    mig_20250612090000_core_schema_down,
	})
}

func mig_20250612090000_core_schema_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            email VARCHAR(255) PRIMARY KEY,
            full_name VARCHAR(255) NOT NULL DEFAULT '',
            enabled BOOLEAN NOT NULL DEFAULT TRUE,
            user_type VARCHAR(50) NOT NULL DEFAULT 'System User',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS user_roles (
            user_email VARCHAR(255) NOT NULL REFERENCES users(email) ON DELETE CASCADE,
            role VARCHAR(100) NOT NULL,
            PRIMARY KEY (user_email, role)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS customers (
            name VARCHAR(255) PRIMARY KEY,
            customer_name VARCHAR(255) NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS projects (
            name VARCHAR(140) PRIMARY KEY,
            project_name VARCHAR(255) NOT NULL DEFAULT '',
            company VARCHAR(255) NOT NULL DEFAULT '',
            customer VARCHAR(255) REFERENCES customers(name),
            project_manager VARCHAR(255) REFERENCES users(email),
            stage VARCHAR(100) NOT NULL DEFAULT '',
            status VARCHAR(50) NOT NULL DEFAULT 'Open',
            drive_folder_url TEXT NOT NULL DEFAULT '',
            drive_folder_id VARCHAR(255) NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS project_members (
            project VARCHAR(140) NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
            user_email VARCHAR(255) NOT NULL REFERENCES users(email) ON DELETE CASCADE,
            PRIMARY KEY (project, user_email)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS project_sites (
            name VARCHAR(140) PRIMARY KEY,
            project VARCHAR(140) NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
            site_name VARCHAR(255) NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            default_engineer VARCHAR(255) REFERENCES users(email),
            idx INT NOT NULL DEFAULT 0,
            drive_folder_url TEXT NOT NULL DEFAULT '',
            drive_folder_id VARCHAR(255) NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS project_contacts (
            project VARCHAR(140) NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
            email VARCHAR(255) NOT NULL,
            verified BOOLEAN NOT NULL DEFAULT FALSE,
            PRIMARY KEY (project, email)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS user_permissions (
            user_email VARCHAR(255) NOT NULL REFERENCES users(email) ON DELETE CASCADE,
            allow VARCHAR(50) NOT NULL,
            for_value VARCHAR(255) NOT NULL,
            PRIMARY KEY (user_email, allow, for_value)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS contacts (
            name UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_email VARCHAR(255) NOT NULL,
            customer VARCHAR(255) NOT NULL REFERENCES customers(name) ON DELETE CASCADE
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_project_sites_engineer ON project_sites(default_engineer);
        CREATE INDEX IF NOT EXISTS idx_project_contacts_email ON project_contacts(email);
        CREATE INDEX IF NOT EXISTS idx_contacts_user_email ON contacts(user_email);
    `)
	return err
}

func mig_20250612090000_core_schema_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        DROP TABLE IF EXISTS contacts;
        DROP TABLE IF EXISTS user_permissions;
        DROP TABLE IF EXISTS project_contacts;
        DROP TABLE IF EXISTS project_sites;
        DROP TABLE IF EXISTS project_members;
        DROP TABLE IF EXISTS projects;
        DROP TABLE IF EXISTS customers;
        DROP TABLE IF EXISTS user_roles;
        DROP TABLE IF EXISTS users;
    `)
	return err
}
