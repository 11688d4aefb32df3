package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/ecobuddy/pkg/models"
	_ "modernc.org/sqlite"
)

// DB wraps the local snapshot database
type DB struct {
	conn *sql.DB
}

// StoredUsage is a usage entry as kept in the snapshot
type StoredUsage struct {
	ID        int
	Device    models.Device
	Entry     models.UsageEntry
	Usage     float64
	SyncedAt  time.Time
	Published bool
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		rating REAL NOT NULL,
		unit TEXT NOT NULL,
		synced_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS usage_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		hours_used REAL NOT NULL,
		usage REAL NOT NULL,
		synced_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(device_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_device ON usage_entries(device_id);
	CREATE INDEX IF NOT EXISTS idx_usage_date ON usage_entries(date);
	CREATE INDEX IF NOT EXISTS idx_usage_published ON usage_entries(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// ReplaceDevices makes the stored device list match devices exactly,
// dropping usage of devices that no longer exist
func (db *DB) ReplaceDevices(devices []models.Device) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM devices`); err != nil {
		return fmt.Errorf("clearing devices: %w", err)
	}

	syncedAt := time.Now().UTC().Format(time.RFC3339)
	for _, d := range devices {
		unit := d.Unit
		if unit == "" {
			unit = d.Type.Unit()
		}
		if _, err := tx.Exec(
			`INSERT INTO devices (id, name, type, rating, unit, synced_at) VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, d.Name, string(d.Type), d.Rating, unit, syncedAt,
		); err != nil {
			return fmt.Errorf("inserting device %d: %w", d.ID, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM usage_entries WHERE device_id NOT IN (SELECT id FROM devices)`); err != nil {
		return fmt.Errorf("pruning usage: %w", err)
	}

	return tx.Commit()
}

// UpsertUsage stores an entry, overwriting the same device and date. A
// changed value clears the published flag so it is sent again.
func (db *DB) UpsertUsage(device models.Device, entry models.UsageEntry) error {
	query := `
	INSERT INTO usage_entries (device_id, date, hours_used, usage, synced_at, published)
	VALUES (?, ?, ?, ?, ?, 0)
	ON CONFLICT(device_id, date) DO UPDATE SET
		hours_used = excluded.hours_used,
		usage = excluded.usage,
		synced_at = excluded.synced_at,
		published = CASE WHEN usage_entries.hours_used = excluded.hours_used
			THEN usage_entries.published ELSE 0 END
	`

	dateStr := entry.Date.Format(models.DateLayout)
	syncedAt := time.Now().UTC().Format(time.RFC3339)

	_, err := db.conn.Exec(query, device.ID, dateStr, entry.Hours, entry.Usage(device.Rating), syncedAt)
	if err != nil {
		return fmt.Errorf("upserting usage: %w", err)
	}

	return nil
}

// ListDevices returns stored devices ordered by type then name
func (db *DB) ListDevices() ([]models.Device, error) {
	rows, err := db.conn.Query(`SELECT id, name, type, rating, unit FROM devices ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var results []models.Device
	for rows.Next() {
		var d models.Device
		var t string
		if err := rows.Scan(&d.ID, &d.Name, &t, &d.Rating, &d.Unit); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		d.Type = models.ResourceType(t)
		results = append(results, d)
	}

	return results, rows.Err()
}

// ListUsage retrieves stored usage, newest first. A deviceID of 0 lists
// every device.
func (db *DB) ListUsage(deviceID int) ([]StoredUsage, error) {
	return db.queryUsage(`WHERE (? = 0 OR u.device_id = ?)`, deviceID, deviceID)
}

// ListUnpublishedUsage retrieves usage not yet published, newest first
func (db *DB) ListUnpublishedUsage() ([]StoredUsage, error) {
	return db.queryUsage(`WHERE u.published = 0`)
}

func (db *DB) queryUsage(where string, args ...any) ([]StoredUsage, error) {
	query := `
	SELECT u.id, u.device_id, u.date, u.hours_used, u.usage, u.synced_at, u.published,
		d.name, d.type, d.rating, d.unit
	FROM usage_entries u
	JOIN devices d ON d.id = u.device_id
	` + where + `
	ORDER BY u.date DESC, d.name
	`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage data: %w", err)
	}
	defer rows.Close()

	var results []StoredUsage
	for rows.Next() {
		var su StoredUsage
		var dateStr, syncedStr, t string

		if err := rows.Scan(&su.ID, &su.Entry.DeviceID, &dateStr, &su.Entry.Hours, &su.Usage, &syncedStr,
			&su.Published, &su.Device.Name, &t, &su.Device.Rating, &su.Device.Unit); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		su.Device.ID = su.Entry.DeviceID
		su.Device.Type = models.ResourceType(t)

		su.Entry.Date, err = time.Parse(models.DateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}
		su.SyncedAt, err = time.Parse(time.RFC3339, syncedStr)
		if err != nil {
			return nil, fmt.Errorf("parsing synced_at: %w", err)
		}

		results = append(results, su)
	}

	return results, rows.Err()
}

// LastSynced returns when the snapshot was last refreshed, or the zero time
func (db *DB) LastSynced() (time.Time, error) {
	var synced sql.NullString
	if err := db.conn.QueryRow(`SELECT MAX(synced_at) FROM devices`).Scan(&synced); err != nil {
		return time.Time{}, fmt.Errorf("querying last sync: %w", err)
	}
	if !synced.Valid || synced.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, synced.String)
}

// MarkPublished marks a usage record as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE usage_entries SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}
