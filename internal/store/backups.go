package store

import (
	"fmt"
	"time"
)

func (s *Store) RecordBackup(path string, count int, compressed bool) (*Backup, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`INSERT INTO backups (path, record_count, compressed, created_at) VALUES (?, ?, ?, ?)`,
		path, count, compressed, now,
	)
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetBackup(id)
}

func (s *Store) GetBackup(id int64) (*Backup, error) {
	b := &Backup{}
	var createdAt string
	err := s.db.QueryRow(
		`SELECT id, path, record_count, compressed, created_at FROM backups WHERE id = ?`, id,
	).Scan(&b.ID, &b.Path, &b.RecordCount, &b.Compressed, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return b, nil
}

// ListBackups returns the most recent backups first. limit <= 0 means all.
func (s *Store) ListBackups(limit int) ([]Backup, error) {
	query := `SELECT id, path, record_count, compressed, created_at FROM backups ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []Backup
	for rows.Next() {
		var b Backup
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Path, &b.RecordCount, &b.Compressed, &createdAt); err != nil {
			return nil, err
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		backups = append(backups, b)
	}
	return backups, rows.Err()
}
