package database

import (
	"database/sql"
	"fmt"
	"time"

	"lessonkit/pkg/logger"

	_ "github.com/lib/pq"
)

const (
	connectAttempts = 5
	retryDelay      = 2 * time.Second
)

// Connect opens the Postgres pool and pings it, retrying on transient failures.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	for i := 0; i < connectAttempts; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", retryDelay, err)
		time.Sleep(retryDelay)
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
}
