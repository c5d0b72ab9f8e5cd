package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
//
// users.live is 1 for live rows and NULL once deleted_at is set.  MySQL
// treats NULLs as distinct inside a unique index, so the index on
// (channel_id, acc_id, live) enforces acc_id uniqueness among the live
// users of a channel while letting soft-deleted rows keep their acc_id.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		username      VARCHAR(64)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		name          VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		account_type  ENUM('free','premium') NOT NULL DEFAULT 'free',
		credit        BIGINT UNSIGNED NOT NULL DEFAULT 0,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		deleted_at    DATETIME NULL,
		PRIMARY KEY (username),
		UNIQUE KEY uq_accounts_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS channels (
		id                CHAR(36)     NOT NULL,
		name              VARCHAR(255) NOT NULL,
		user_prefix       VARCHAR(64)  NOT NULL DEFAULT 'US###',
		access_token_hash VARCHAR(255) NOT NULL,
		account_username  VARCHAR(64)  NOT NULL,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		deleted_at        DATETIME NULL,
		PRIMARY KEY (id),
		KEY idx_channels_account (account_username, deleted_at),
		CONSTRAINT fk_channels_account FOREIGN KEY (account_username) REFERENCES accounts (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		acc_id     VARCHAR(96) NOT NULL,
		channel_id CHAR(36)    NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		deleted_at DATETIME NULL,
		live       TINYINT AS (IF(deleted_at IS NULL, 1, NULL)) STORED,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_channel_acc_live (channel_id, acc_id, live),
		KEY idx_users_channel (channel_id, deleted_at),
		CONSTRAINT fk_users_channel FOREIGN KEY (channel_id) REFERENCES channels (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id    BIGINT UNSIGNED NOT NULL,
		game_id    BIGINT UNSIGNED NOT NULL,
		game_name  VARCHAR(255) NOT NULL DEFAULT '',
		rating     TINYINT UNSIGNED NOT NULL,
		review     TEXT NULL,
		screenshot VARCHAR(255) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		deleted_at DATETIME NULL,
		PRIMARY KEY (id),
		KEY idx_reviews_user (user_id, deleted_at),
		KEY idx_reviews_game (game_id),
		CONSTRAINT fk_reviews_user FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT chk_reviews_rating CHECK (rating BETWEEN 1 AND 5)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
