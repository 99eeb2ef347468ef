package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS robot_registry (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    robot_id    TEXT NOT NULL UNIQUE,
    first_seen  TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    last_seen   TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    went_offline TEXT,
    sessions    INTEGER NOT NULL DEFAULT 0,
    last_lat    REAL NOT NULL DEFAULT 0,
    last_lon    REAL NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'online'
);

CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    actor       TEXT NOT NULL DEFAULT 'system',
    created_at  TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS admin_users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
`
