package store

import (
	"time"
)

// RobotRegistration is the durable history of one robot ID. The live state
// lives in the register; this table only remembers sightings.
type RobotRegistration struct {
	ID          int64      `json:"id"`
	RobotID     string     `json:"robot_id"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	WentOffline *time.Time `json:"went_offline"`
	Sessions    int        `json:"sessions"`
	LastLat     float64    `json:"last_lat"`
	LastLon     float64    `json:"last_lon"`
	Status      string     `json:"status"`
}

// RecordRobotOnline upserts a registration and starts a new session.
func (db *DB) RecordRobotOnline(robotID string) error {
	_, err := db.Exec(db.Q(`
		INSERT INTO robot_registry (robot_id, first_seen, last_seen, sessions, status)
		VALUES (?, datetime('now','localtime'), datetime('now','localtime'), 1, 'online')
		ON CONFLICT(robot_id) DO UPDATE SET
			last_seen = excluded.last_seen,
			sessions = robot_registry.sessions + 1,
			went_offline = NULL,
			status = 'online'
	`), robotID)
	return err
}

// TouchRobot records the latest sighting and EKF position.
func (db *DB) TouchRobot(robotID string, lat, lon float64) error {
	_, err := db.Exec(db.Q(`
		UPDATE robot_registry
		SET last_seen = datetime('now','localtime'), last_lat = ?, last_lon = ?
		WHERE robot_id = ?
	`), lat, lon, robotID)
	return err
}

// RecordRobotOffline closes the current session.
func (db *DB) RecordRobotOffline(robotID string) error {
	_, err := db.Exec(db.Q(`
		UPDATE robot_registry
		SET went_offline = datetime('now','localtime'), status = 'offline'
		WHERE robot_id = ?
	`), robotID)
	return err
}

// MarkAllRobotsOffline closes every open session. The register starts empty,
// so rows left online by a previous run are stale.
func (db *DB) MarkAllRobotsOffline() (int64, error) {
	res, err := db.Exec(db.Q(`
		UPDATE robot_registry
		SET went_offline = datetime('now','localtime'), status = 'offline'
		WHERE status = 'online'
	`))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const robotRegistrySelect = `SELECT id, robot_id, first_seen, last_seen, went_offline, sessions, last_lat, last_lon, status FROM robot_registry`

func (db *DB) GetRobotRegistration(robotID string) (*RobotRegistration, error) {
	row := db.QueryRow(db.Q(robotRegistrySelect+` WHERE robot_id = ?`), robotID)
	return scanRegistration(row)
}

// ListRobotRegistry returns every robot ever seen, most recent first.
func (db *DB) ListRobotRegistry() ([]*RobotRegistration, error) {
	rows, err := db.Query(db.Q(robotRegistrySelect + ` ORDER BY last_seen DESC, robot_id`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*RobotRegistration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s scanner) (*RobotRegistration, error) {
	var r RobotRegistration
	var firstSeen, lastSeen, wentOffline any
	if err := s.Scan(&r.ID, &r.RobotID, &firstSeen, &lastSeen, &wentOffline, &r.Sessions, &r.LastLat, &r.LastLon, &r.Status); err != nil {
		return nil, err
	}
	r.FirstSeen = parseTime(firstSeen)
	r.LastSeen = parseTime(lastSeen)
	r.WentOffline = parseTimePtr(wentOffline)
	return &r, nil
}
