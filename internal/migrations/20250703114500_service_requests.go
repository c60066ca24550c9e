package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20250703114500",
		up:      mig_20250703114500_service_requests_up,
		down:    mig_20250703114500_service_requests_down,
	})
}

func mig_20250703114500_service_requests_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE SEQUENCE IF NOT EXISTS service_request_seq;
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS service_requests (
            name VARCHAR(140) PRIMARY KEY DEFAULT ('SR-' || lpad(nextval('service_request_seq')::text, 6, '0')),
            title VARCHAR(140) NOT NULL,
            status VARCHAR(50) NOT NULL DEFAULT 'Open',
            priority VARCHAR(20) NOT NULL DEFAULT 'Medium',
            request_type VARCHAR(100) NOT NULL DEFAULT 'Routine Maintenance',
            description TEXT NOT NULL DEFAULT '',
            project VARCHAR(140) NOT NULL REFERENCES projects(name),
            project_site VARCHAR(140) REFERENCES project_sites(name),
            customer VARCHAR(255),
            company VARCHAR(255) NOT NULL DEFAULT '',
            assigned_to VARCHAR(255),
            owner_email VARCHAR(255) NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS survey_checklist_items (
            name UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            project VARCHAR(140) NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
            section VARCHAR(140) NOT NULL,
            idx INT NOT NULL DEFAULT 0,
            required BOOLEAN NOT NULL DEFAULT TRUE,
            done BOOLEAN NOT NULL DEFAULT FALSE,
            evidence_link TEXT NOT NULL DEFAULT '',
            UNIQUE (project, section)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS attachments (
            name UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            file_name VARCHAR(255) NOT NULL,
            file_url TEXT NOT NULL,
            drive_file_id VARCHAR(255) NOT NULL DEFAULT '',
            attached_to_type VARCHAR(100) NOT NULL,
            attached_to_name VARCHAR(140) NOT NULL,
            category VARCHAR(140) NOT NULL DEFAULT '',
            uploaded_by VARCHAR(255) NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	// Change feed for the notifier: new requests are announced on the
	// ferum_events channel as "service_request:<name>".
	_, err = tx.Exec(`
        CREATE OR REPLACE FUNCTION notify_service_request() RETURNS trigger AS $$
        BEGIN
            PERFORM pg_notify('ferum_events', 'service_request:' || NEW.name);
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql;
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        DROP TRIGGER IF EXISTS service_requests_notify ON service_requests;
        CREATE TRIGGER service_requests_notify
            AFTER INSERT ON service_requests
            FOR EACH ROW EXECUTE FUNCTION notify_service_request();
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_service_requests_project ON service_requests(project);
        CREATE INDEX IF NOT EXISTS idx_attachments_target ON attachments(attached_to_type, attached_to_name);
    `)
	return err
}

func mig_20250703114500_service_requests_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        DROP TRIGGER IF EXISTS service_requests_notify ON service_requests;
        DROP FUNCTION IF EXISTS notify_service_request();
        DROP TABLE IF EXISTS attachments;
        DROP TABLE IF EXISTS survey_checklist_items;
        DROP TABLE IF EXISTS service_requests;
        DROP SEQUENCE IF EXISTS service_request_seq;
    `)
	return err
}
