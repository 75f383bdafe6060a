package store

import (
	"context"
	"fmt"
)

// schema mirrors the tables owned by the main application. Every statement is
// idempotent so a fresh database can be brought up for local runs.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users(
        user_id BIGSERIAL PRIMARY KEY,
        email VARCHAR(100) UNIQUE NOT NULL,
        password_hash VARCHAR(255) NOT NULL DEFAULT '',
        full_name VARCHAR(100) NOT NULL,
        role VARCHAR(10) NOT NULL DEFAULT 'user',
        is_online BOOLEAN NOT NULL DEFAULT FALSE,
        is_admin BOOLEAN NOT NULL DEFAULT FALSE,
        is_banned BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS photos(
        photo_id BIGSERIAL PRIMARY KEY,
        user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        url VARCHAR(255) NOT NULL,
        is_avatar BOOLEAN NOT NULL DEFAULT FALSE
    )`,
	`CREATE TABLE IF NOT EXISTS matches(
        match_id BIGSERIAL PRIMARY KEY,
        user1_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        user2_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS messages(
        message_id BIGSERIAL PRIMARY KEY,
        match_id BIGINT NOT NULL REFERENCES matches(match_id) ON DELETE CASCADE,
        sender_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        content TEXT NOT NULL,
        type VARCHAR(10) NOT NULL DEFAULT 'text',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS calls(
        call_id UUID PRIMARY KEY,
        match_id BIGINT NOT NULL REFERENCES matches(match_id) ON DELETE CASCADE,
        caller_id BIGINT NOT NULL REFERENCES users(user_id),
        callee_id BIGINT NOT NULL REFERENCES users(user_id),
        call_type VARCHAR(10) NOT NULL DEFAULT 'voice',
        status VARCHAR(10) NOT NULL DEFAULT 'missed',
        started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        ended_at TIMESTAMPTZ,
        duration INT NOT NULL DEFAULT 0
    )`,
	`CREATE TABLE IF NOT EXISTS notifications(
        noti_id BIGSERIAL PRIMARY KEY,
        user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        from_user_id BIGINT REFERENCES users(user_id) ON DELETE SET NULL,
        type VARCHAR(20) NOT NULL,
        content TEXT NOT NULL,
        is_read BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS events(
        event_id BIGSERIAL PRIMARY KEY,
        title VARCHAR(255) NOT NULL,
        description TEXT,
        location VARCHAR(255),
        start_time TIMESTAMPTZ,
        image_url VARCHAR(255),
        max_participants INT NOT NULL DEFAULT 50,
        status VARCHAR(20) NOT NULL DEFAULT 'pending',
        creator_id BIGINT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS event_participants(
        event_id BIGINT NOT NULL REFERENCES events(event_id) ON DELETE CASCADE,
        user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY(event_id, user_id)
    )`,
	`CREATE TABLE IF NOT EXISTS event_messages(
        id BIGSERIAL PRIMARY KEY,
        event_id BIGINT NOT NULL REFERENCES events(event_id) ON DELETE CASCADE,
        sender_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
        content TEXT NOT NULL,
        type VARCHAR(10) NOT NULL DEFAULT 'text',
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_messages_match ON messages(match_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_event_messages_event ON event_messages(event_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`,
}

func AutoMigrate(ctx context.Context, db DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
