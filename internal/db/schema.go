package db

import (
	"context"
	"database/sql"
	"fmt"
)

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// HasTable reports whether table exists in the current schema. Lookup errors count as absent.
func HasTable(ctx context.Context, q QueryRower, table string) bool {
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		LIMIT 1
	`, table).Scan(&name)
	if err != nil {
		return false
	}
	return name.Valid && name.String != ""
}

type tableDDL struct {
	name string
	ddl  string
}

// Order matters: referenced tables first.
var schema = []tableDDL{
	{"users", `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	email VARCHAR(255) NOT NULL,
	full_name VARCHAR(255) NULL,
	phone VARCHAR(64) NULL,
	profile_picture VARCHAR(512) NULL,
	role VARCHAR(16) NOT NULL,
	is_verified TINYINT(1) NOT NULL DEFAULT 0,
	password_hash VARCHAR(255) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	deleted_at DATETIME(6) NULL,
	UNIQUE KEY uniq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"vehicles", `
CREATE TABLE IF NOT EXISTS vehicles (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	owner_id BIGINT NOT NULL,
	type VARCHAR(64) NOT NULL,
	capacity BIGINT NOT NULL,
	registration_number VARCHAR(64) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uniq_vehicles_registration (registration_number),
	KEY idx_vehicles_owner (owner_id),
	CONSTRAINT fk_vehicles_owner FOREIGN KEY (owner_id) REFERENCES users(id),
	CONSTRAINT chk_vehicles_capacity CHECK (capacity > 0)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"trips", `
CREATE TABLE IF NOT EXISTS trips (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	owner_id BIGINT NOT NULL,
	vehicle_id BIGINT NULL,
	start_location VARCHAR(255) NOT NULL,
	end_location VARCHAR(255) NOT NULL,
	start_datetime DATETIME(6) NOT NULL,
	price_per_unit DECIMAL(14,2) NOT NULL,
	description TEXT NULL,
	total_capacity BIGINT NOT NULL,
	committed_capacity BIGINT NOT NULL DEFAULT 0,
	status VARCHAR(16) NOT NULL DEFAULT 'open',
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	KEY idx_trips_owner (owner_id),
	KEY idx_trips_status_start (status, start_datetime),
	CONSTRAINT fk_trips_owner FOREIGN KEY (owner_id) REFERENCES users(id),
	CONSTRAINT fk_trips_vehicle FOREIGN KEY (vehicle_id) REFERENCES vehicles(id),
	CONSTRAINT chk_trips_capacity CHECK (committed_capacity >= 0 AND committed_capacity <= total_capacity)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_reference VARCHAR(32) NOT NULL,
	trip_id BIGINT NOT NULL,
	customer_id BIGINT NOT NULL,
	cargo_size BIGINT NOT NULL,
	total_price DECIMAL(14,2) NOT NULL,
	status VARCHAR(16) NOT NULL DEFAULT 'pending',
	created_at DATETIME(6) NOT NULL,
	decided_at DATETIME(6) NULL,
	cancelled_at DATETIME(6) NULL,
	UNIQUE KEY uniq_bookings_reference (booking_reference),
	KEY idx_bookings_trip_status (trip_id, status),
	KEY idx_bookings_customer (customer_id),
	CONSTRAINT fk_bookings_trip FOREIGN KEY (trip_id) REFERENCES trips(id),
	CONSTRAINT fk_bookings_customer FOREIGN KEY (customer_id) REFERENCES users(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"notifications", `
CREATE TABLE IF NOT EXISTS notifications (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	kind VARCHAR(32) NOT NULL,
	message TEXT NOT NULL,
	related_booking_id BIGINT NULL,
	is_read TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME(6) NOT NULL,
	KEY idx_notifications_cursor (user_id, created_at, id),
	CONSTRAINT fk_notifications_user FOREIGN KEY (user_id) REFERENCES users(id),
	CONSTRAINT fk_notifications_booking FOREIGN KEY (related_booking_id) REFERENCES bookings(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
}

// EnsureSchema creates missing tables. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db not available")
	}
	for _, t := range schema {
		if HasTable(ctx, db, t.name) {
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	return nil
}
