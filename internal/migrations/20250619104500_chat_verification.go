package migrations

import "github.com/jmoiron/sqlx"

func init() {
	m.addMigration(&migration{
		version: "20250619104500",
		up:      mig_20250619104500_chat_verification_up,
		down:    mig_20250619104500_chat_verification_down,
	})
}

func mig_20250619104500_chat_verification_up(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        CREATE TABLE IF NOT EXISTS chat_links (
            name UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            chat_id BIGINT NOT NULL UNIQUE,
            user_email VARCHAR(255) NOT NULL REFERENCES users(email),
            telegram_username VARCHAR(255) NOT NULL DEFAULT '',
            active_project VARCHAR(140) REFERENCES projects(name) ON DELETE SET NULL,
            notes TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS email_verifications (
            name UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            email VARCHAR(255) NOT NULL,
            chat_id BIGINT NOT NULL,
            telegram_username VARCHAR(255) NOT NULL DEFAULT '',
            purpose VARCHAR(50) NOT NULL DEFAULT 'registration',
            status VARCHAR(20) NOT NULL DEFAULT 'Pending',
            code_hash VARCHAR(64) NOT NULL,
            code_salt VARCHAR(32) NOT NULL,
            attempts INT NOT NULL DEFAULT 0,
            erp_user VARCHAR(255) NOT NULL DEFAULT '',
            expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
            verified_at TIMESTAMP WITH TIME ZONE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE TABLE IF NOT EXISTS project_subscriptions (
            project VARCHAR(140) NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
            chat_link UUID NOT NULL REFERENCES chat_links(name) ON DELETE CASCADE,
            PRIMARY KEY (project, chat_link)
        );
    `)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        CREATE INDEX IF NOT EXISTS idx_email_verifications_lookup
            ON email_verifications(email, chat_id, purpose, status);
    `)
	return err
}

func mig_20250619104500_chat_verification_down(tx *sqlx.Tx) error {
	_, err := tx.Exec(`
        DROP TABLE IF EXISTS project_subscriptions;
        DROP TABLE IF EXISTS email_verifications;
        DROP TABLE IF EXISTS chat_links;
    `)
	return err
}
