package knowledge

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrFileNotFound is returned when a knowledge file does not exist or has
// been deleted.
var ErrFileNotFound = errors.New("knowledge file not found")

// fingerprintPrefixLen is how many fingerprint hex chars prefix stored
// filenames on disk, enough to avoid collisions between same-named uploads.
const fingerprintPrefixLen = 16

// Store persists uploaded knowledge documents. Metadata lives in SQLite,
// raw bytes on disk under the uploads directory. Files are immutable once
// written; deletion is a soft-delete flag so attribution in old responses
// stays resolvable.
//
// Store is safe for concurrent use; SQLite serializes writers.
type Store struct {
	db     *sql.DB
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store writing raw uploads under dir, creating the
// directory if needed.
func NewStore(db *sql.DB, dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	return &Store{db: db, dir: dir, logger: logger}, nil
}

// Put stores an uploaded document and returns its record. Uploading
// byte-identical content again is idempotent: the existing record is
// returned with duplicate=true and nothing is written.
func (s *Store) Put(ctx context.Context, raw []byte, filename, contentType string) (File, bool, error) {
	sum := sha256.Sum256(raw)
	fingerprint := hex.EncodeToString(sum[:])

	existing, err := s.byFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		s.logger.Debug("duplicate upload detected",
			slog.String("file_id", existing.ID),
			slog.String("fingerprint", fingerprint))
		return existing, true, nil
	case !errors.Is(err, ErrFileNotFound):
		return File{}, false, fmt.Errorf("checking fingerprint: %w", err)
	}

	f := File{
		ID:          uuid.NewString(),
		Filename:    sanitizeFilename(filename),
		ContentType: contentType,
		Size:        int64(len(raw)),
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}

	if err := os.WriteFile(s.path(f), raw, 0o644); err != nil {
		return File{}, false, fmt.Errorf("writing upload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_files (id, filename, content_type, size, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sha256) DO UPDATE SET deleted = 0`,
		f.ID, f.Filename, f.ContentType, f.Size, f.Fingerprint, f.CreatedAt)
	if err != nil {
		// Don't leave bytes on disk that no record points at.
		_ = os.Remove(s.path(f))
		return File{}, false, fmt.Errorf("inserting knowledge file: %w", err)
	}

	// The conflict branch revives a soft-deleted record; re-read so the
	// caller sees the canonical row either way.
	stored, err := s.byFingerprint(ctx, fingerprint)
	if err != nil {
		return File{}, false, fmt.Errorf("reading stored file: %w", err)
	}

	s.logger.Info("knowledge file stored",
		slog.String("file_id", stored.ID),
		slog.String("filename", stored.Filename),
		slog.Int64("size", stored.Size))
	return stored, false, nil
}

// Get returns a single active file by ID.
func (s *Store) Get(ctx context.Context, id string) (File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content_type, size, sha256, created_at
		 FROM knowledge_files WHERE id = ? AND deleted = 0`, id)
	return scanFile(row)
}

// ListActive returns all non-deleted files, oldest first.
func (s *Store) ListActive(ctx context.Context) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, content_type, size, sha256, created_at
		 FROM knowledge_files WHERE deleted = 0
		 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge files: %w", err)
	}
	return files, nil
}

// Bytes returns the raw uploaded content of an active file.
func (s *Store) Bytes(ctx context.Context, id string) ([]byte, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path(f))
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", f.ID, err)
	}
	return raw, nil
}

// Delete soft-deletes a file. The raw bytes stay on disk; a later upload of
// identical content revives the record instead of creating a new one.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_files SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("deleting knowledge file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrFileNotFound
	}
	s.logger.Info("knowledge file deleted", slog.String("file_id", id))
	return nil
}

func (s *Store) byFingerprint(ctx context.Context, fingerprint string) (File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content_type, size, sha256, created_at
		 FROM knowledge_files WHERE sha256 = ? AND deleted = 0`, fingerprint)
	return scanFile(row)
}

// path builds the on-disk location of a file's raw bytes.
func (s *Store) path(f File) string {
	return filepath.Join(s.dir, f.Fingerprint[:fingerprintPrefixLen]+"_"+f.Filename)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.Filename, &f.ContentType, &f.Size, &f.Fingerprint, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, ErrFileNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("scanning knowledge file: %w", err)
	}
	return f, nil
}

// sanitizeFilename strips any path components and characters that would be
// unsafe in an on-disk name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "upload"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r < 32:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
