package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users table
-- Version: 001

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    username VARCHAR(30) NOT NULL UNIQUE,
    email VARCHAR(254) NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    bio TEXT NOT NULL DEFAULT '',
    favorite_genres TEXT[] NOT NULL DEFAULT '{}',
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Notification preferences (JSONB for flexibility)
    preferences JSONB NOT NULL DEFAULT '{
        "prayer_notices": true,
        "guidance_notices": true,
        "ranking_notices": true,
        "quiet_hours_start": 23,
        "quiet_hours_end": 7
    }'::jsonb,

    CONSTRAINT valid_status CHECK (status IN ('active', 'suspended', 'left'))
);

CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_users_updated_at ON users;
CREATE TRIGGER update_users_updated_at
    BEFORE UPDATE ON users
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_users_updated_at ON users;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE OFFERINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create offerings, prayers, and guidances tables
-- Version: 002

CREATE TABLE IF NOT EXISTS offerings (
    id UUID PRIMARY KEY,
    author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    author_name VARCHAR(100) NOT NULL,
    title VARCHAR(120) NOT NULL,
    content TEXT NOT NULL,
    genres TEXT[] NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT nonempty_title CHECK (length(title) > 0),
    CONSTRAINT nonempty_genres CHECK (array_length(genres, 1) >= 1)
);

CREATE INDEX IF NOT EXISTS idx_offerings_author ON offerings(author_id);
CREATE INDEX IF NOT EXISTS idx_offerings_created_at ON offerings(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_offerings_genres ON offerings USING GIN(genres);

-- One row per prayer; the prayer count is always derived from this table.
CREATE TABLE IF NOT EXISTS offering_prayers (
    offering_id UUID NOT NULL REFERENCES offerings(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (offering_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_offering_prayers_user ON offering_prayers(user_id);

-- Guidance keeps insertion order via an explicit per-offering ordinal;
-- created_at alone cannot break ties deterministically.
CREATE TABLE IF NOT EXISTS guidances (
    id UUID PRIMARY KEY,
    offering_id UUID NOT NULL REFERENCES offerings(id) ON DELETE CASCADE,
    author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    author_name VARCHAR(100) NOT NULL,
    content TEXT NOT NULL,
    ordinal INT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT nonempty_guidance CHECK (length(content) > 0),
    CONSTRAINT guidance_order UNIQUE (offering_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_guidances_offering ON guidances(offering_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_guidances_author ON guidances(author_id);

DROP TRIGGER IF EXISTS update_offerings_updated_at ON offerings;
CREATE TRIGGER update_offerings_updated_at
    BEFORE UPDATE ON offerings
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration002Down = `
DROP TRIGGER IF EXISTS update_offerings_updated_at ON offerings;
DROP TABLE IF EXISTS guidances;
DROP TABLE IF EXISTS offering_prayers;
DROP TABLE IF EXISTS offerings;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE RANKING AND NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create ranking snapshots and notifications tables
-- Version: 003

-- Board snapshots feed rank-change computation and keep a short history.
CREATE TABLE IF NOT EXISTS ranking_snapshots (
    id UUID PRIMARY KEY,
    window VARCHAR(10) NOT NULL,
    taken_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    entry_count INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_window CHECK (window IN ('all', 'quarter', 'month', 'week'))
);

CREATE INDEX IF NOT EXISTS idx_ranking_snapshots_window_at ON ranking_snapshots(window, taken_at DESC);

CREATE TABLE IF NOT EXISTS ranking_snapshot_entries (
    id SERIAL PRIMARY KEY,
    snapshot_id UUID NOT NULL REFERENCES ranking_snapshots(id) ON DELETE CASCADE,
    rank INTEGER NOT NULL,
    offering_id UUID NOT NULL,
    author_id UUID NOT NULL,
    author_name VARCHAR(100) NOT NULL,
    title VARCHAR(120) NOT NULL,
    prayers INTEGER NOT NULL DEFAULT 0,
    guidance_count INTEGER NOT NULL DEFAULT 0,
    offering_created_at TIMESTAMP WITH TIME ZONE NOT NULL,

    UNIQUE(snapshot_id, offering_id),
    CONSTRAINT valid_rank CHECK (rank >= 1)
);

CREATE INDEX IF NOT EXISTS idx_snapshot_entries_snapshot ON ranking_snapshot_entries(snapshot_id, rank);

CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type VARCHAR(30) NOT NULL,
    offering_id UUID,
    actor_id UUID,
    message TEXT NOT NULL,
    read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_type CHECK (type IN ('prayer_received', 'guidance_received', 'entered_top_n'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id) WHERE read = FALSE;
`

const migration003Down = `
DROP TABLE IF EXISTS notifications;
DROP TABLE IF EXISTS ranking_snapshot_entries;
DROP TABLE IF EXISTS ranking_snapshots;
`
