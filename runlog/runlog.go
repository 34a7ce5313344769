// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runlog records ground client sessions into a SQL catalog.
//
// The catalog holds one row per session, in a table created as:
//
//	CREATE TABLE sessions (
//	  id           BIGINT AUTO_INCREMENT PRIMARY KEY,
//	  start        DATETIME(6) NOT NULL,
//	  stop         DATETIME(6),
//	  peer         VARCHAR(255) NOT NULL,
//	  unit         TINYINT UNSIGNED NOT NULL,
//	  root         VARCHAR(4096) NOT NULL,
//	  received     BIGINT UNSIGNED,
//	  realtime     BIGINT UNSIGNED,
//	  housekeeping BIGINT UNSIGNED,
//	  overruns     BIGINT UNSIGNED,
//	  exit_code    INT
//	);
package runlog // import "github.com/go-lpc/grip/runlog"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var (
	drvName = "mysql"
)

// DB is a session catalog.
type DB struct {
	db *sql.DB
}

// Session describes a ground client session.
type Session struct {
	ID    int64
	Start time.Time
	Peer  string // address of the telemetry relay
	Unit  uint8  // software unit ID of the ground client
	Root  string // root path of the cache files
}

// Summary holds the outcome of a ground client session.
type Summary struct {
	Stop         time.Time
	Received     uint64
	Realtime     uint64
	Housekeeping uint64
	Overruns     uint64
	ExitCode     int
}

// Open opens a connection to the session catalog described by the data
// source name dsn, eg: "user:password@tcp(localhost:3306)/grip?parseTime=true".
func Open(dsn string) (*DB, error) {
	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("runlog: could not open db: %w", err)
	}

	err = ping(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("runlog: could not ping db: %w", err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Begin records the start of a session and returns its identifier.
func (db *DB) Begin(ctx context.Context, sess Session) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.db.ExecContext(
		ctx,
		"INSERT INTO sessions (start, peer, unit, root) VALUES (?, ?, ?, ?)",
		sess.Start.UTC(), sess.Peer, sess.Unit, sess.Root,
	)
	if err != nil {
		return 0, fmt.Errorf("runlog: could not insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("runlog: could not retrieve session id: %w", err)
	}
	return id, nil
}

// End records the outcome of the session id.
func (db *DB) End(ctx context.Context, id int64, sum Summary) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		`UPDATE sessions SET
			stop=?, received=?, realtime=?, housekeeping=?, overruns=?, exit_code=?
		WHERE id=?`,
		sum.Stop.UTC(), int64(sum.Received), int64(sum.Realtime),
		int64(sum.Housekeeping), int64(sum.Overruns), sum.ExitCode,
		id,
	)
	if err != nil {
		return fmt.Errorf("runlog: could not update session %d: %w", id, err)
	}
	return nil
}

// LastSession returns the most recently started session.
func (db *DB) LastSession(ctx context.Context) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sess Session
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT id, start, peer, unit, root FROM sessions ORDER BY start DESC LIMIT 1",
	)
	if err != nil {
		return sess, fmt.Errorf("runlog: could not query last session: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		err = rows.Scan(&sess.ID, &sess.Start, &sess.Peer, &sess.Unit, &sess.Root)
		if err != nil {
			return sess, fmt.Errorf("runlog: could not scan last session: %w", err)
		}
		found = true
	}

	if err := rows.Err(); err != nil {
		return sess, fmt.Errorf("runlog: could not iterate over sessions: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return sess, fmt.Errorf("runlog: context error while retrieving last session: %w", err)
	}

	if !found {
		return sess, fmt.Errorf("runlog: no session: %w", sql.ErrNoRows)
	}

	return sess, nil
}
