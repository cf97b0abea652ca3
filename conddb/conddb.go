// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the condition and configuration
// database of the TOF readout: runs and per-crate line configuration.
package conddb // import "github.com/go-lpc/tof/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to easily retrieve conditions data
// and configuration data from the TOF database.
type DB struct {
	db   *sql.DB
	name string // name of the TOF database
}

// Open opens a connection to the TOF database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastRun returns the identifier of the most recent run.
func (db *DB) LastRun(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier FROM runs ORDER BY start DESC LIMIT 1",
	)
	if err != nil {
		return run, fmt.Errorf("conddb: could not query last run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&run)
		if err != nil {
			return run, fmt.Errorf("conddb: could not get last run value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("conddb: could not scan db for last run: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("conddb: context error while retrieving last run: %w", err)
	}

	return run, nil
}

// Runs returns all the runs of the database, oldest first.
func (db *DB) Runs(ctx context.Context) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier, start, comment FROM runs ORDER BY start",
	)
	if err != nil {
		return runs, fmt.Errorf("conddb: could not run runs query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var run Run
		err = rows.Scan(&run.ID, &run.Start, &run.Comment)
		if err != nil {
			return runs, fmt.Errorf("conddb: could not scan runs: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("conddb: could not scan db for runs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("conddb: context error while retrieving runs: %w", err)
	}

	return runs, nil
}

// Links returns the line configuration of all the crates read out
// during the provided run, ordered by crate.
func (db *DB) Links(ctx context.Context, run uint32) ([]Link, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	links := make([]Link, 0, 72)
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT links.crate, links.enable_mask, links.enabled FROM links
JOIN runs ON runs.linkcfg=links.linkcfg
WHERE (
	runs.identifier=?
)
ORDER BY links.crate
`,
		run,
	)
	if err != nil {
		return links, fmt.Errorf("conddb: could not run links query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var link Link
		err = rows.Scan(&link.Crate, &link.EnableMask, &link.Enabled)
		if err != nil {
			return links, fmt.Errorf("conddb: could not scan row %d for links: %w", i, err)
		}
		i++

		if link.Crate < 0 || link.Crate >= 72 {
			return links, fmt.Errorf("conddb: invalid crate %d in row %d", link.Crate, i-1)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return links, fmt.Errorf("conddb: could not scan db for links: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return links, fmt.Errorf("conddb: context error while retrieving links: %w", err)
	}

	return links, nil
}
