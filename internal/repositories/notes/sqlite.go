package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/models"
	"github.com/dmitrijs2005/pinvault/internal/repositories/fieldcrypt"
	"github.com/dmitrijs2005/pinvault/internal/vault"
	"github.com/google/uuid"
)

const columns = `id, title_encrypted, content_encrypted, created_at, updated_at, tags_encrypted, is_favorite`

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db   dbx.DBTX
	keys vault.KeySource
	now  func() time.Time
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(db dbx.DBTX, keys vault.KeySource) *SQLiteRepository {
	return &SQLiteRepository{db: db, keys: keys, now: time.Now}
}

// WithDB returns a copy of r bound to db, typically a transaction.
func (r *SQLiteRepository) WithDB(db dbx.DBTX) *SQLiteRepository {
	c := *r
	c.db = db
	return &c
}

type record struct {
	id         string
	title      sql.NullString
	content    sql.NullString
	createdAt  int64
	updatedAt  int64
	tags       sql.NullString
	isFavorite bool
}

func scanRecord(rows *sql.Rows) (record, error) {
	var rec record
	err := rows.Scan(&rec.id, &rec.title, &rec.content, &rec.createdAt, &rec.updatedAt, &rec.tags, &rec.isFavorite)
	return rec, err
}

func (r *SQLiteRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *SQLiteRepository) seal(n *models.Note, key *cryptox.Key) (title, content, tags sql.NullString, err error) {
	if title, err = fieldcrypt.Seal(n.Title, key); err != nil {
		return
	}
	if content, err = fieldcrypt.Seal(n.Content, key); err != nil {
		return
	}
	if n.Tags != nil {
		var b []byte
		if b, err = json.Marshal(n.Tags); err != nil {
			return
		}
		tags, err = fieldcrypt.Seal(string(b), key)
	}
	return
}

func (r *SQLiteRepository) open(ctx context.Context, key *cryptox.Key, rec record) (models.Note, error) {
	n := models.Note{
		ID:         rec.id,
		IsFavorite: rec.isFavorite,
		CreatedAt:  models.FromMillis(rec.createdAt),
		UpdatedAt:  models.FromMillis(rec.updatedAt),
	}
	var tags string
	var hasTags bool
	err := fieldcrypt.Open(ctx, key, rec.id,
		fieldcrypt.Field{Cipher: rec.title, Plain: &n.Title},
		fieldcrypt.Field{Cipher: rec.content, Plain: &n.Content},
		fieldcrypt.Field{Cipher: rec.tags, Plain: &tags, Present: &hasTags},
	)
	if err != nil {
		return models.Note{}, err
	}
	if hasTags {
		if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
			return models.Note{}, fmt.Errorf("%w: %s: tags: %w", fieldcrypt.ErrRecordUndecryptable, rec.id, err)
		}
	}
	return n, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, n *models.Note) error {
	key, err := r.keys.Key()
	if err != nil {
		return err
	}

	n.ID = uuid.NewString()
	n.CreatedAt = r.timestamp()
	n.UpdatedAt = n.CreatedAt

	title, content, tags, err := r.seal(n, key)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO notes (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, title, content, models.ToMillis(n.CreatedAt), models.ToMillis(n.UpdatedAt), tags, n.IsFavorite)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Note, error) {
	notes, err := r.query(ctx, `SELECT `+columns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, common.ErrorNotFound
	}
	return &notes[0], nil
}

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]models.Note, error) {
	return r.query(ctx, `SELECT `+columns+` FROM notes ORDER BY updated_at DESC, id`)
}

func (r *SQLiteRepository) FindFavorites(ctx context.Context) ([]models.Note, error) {
	return r.query(ctx, `SELECT `+columns+` FROM notes WHERE is_favorite = 1 ORDER BY updated_at DESC, id`)
}

// Search has to decrypt every note; ciphertext cannot be matched in SQL.
func (r *SQLiteRepository) Search(ctx context.Context, query string) ([]models.Note, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}

	var found []models.Note
	for _, n := range all {
		if matches(n, q) {
			found = append(found, n)
		}
	}
	return found, nil
}

func matches(n models.Note, q string) bool {
	if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
		return true
	}
	for _, tag := range n.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// query decrypts every returned row; one undecryptable row fails the call.
func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]models.Note, error) {
	key, err := r.keys.Key()
	if err != nil {
		return nil, err
	}
	records, err := dbx.QueryAll(ctx, r.db, q, scanRecord, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}

	result := make([]models.Note, 0, len(records))
	for _, rec := range records {
		n, err := r.open(ctx, key, rec)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, n *models.Note) error {
	key, err := r.keys.Key()
	if err != nil {
		return err
	}
	title, content, tags, err := r.seal(n, key)
	if err != nil {
		return err
	}

	updatedAt := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title_encrypted = ?, content_encrypted = ?, tags_encrypted = ?, is_favorite = ?, updated_at = ? WHERE id = ?`,
		title, content, tags, n.IsFavorite, models.ToMillis(updatedAt), n.ID)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	n.UpdatedAt = updatedAt
	return nil
}

func (r *SQLiteRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	if _, err := r.keys.Key(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE notes SET is_favorite = ?, updated_at = ? WHERE id = ?`,
		favorite, models.ToMillis(r.timestamp()), id)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.keys.Key(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListRaw(ctx context.Context) ([]models.NoteRow, error) {
	records, err := dbx.QueryAll(ctx, r.db, `SELECT `+columns+` FROM notes ORDER BY created_at, id`, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	rows := make([]models.NoteRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.NoteRow{
			ID:               rec.id,
			TitleEncrypted:   fieldcrypt.NullToPtr(rec.title),
			ContentEncrypted: fieldcrypt.NullToPtr(rec.content),
			CreatedAt:        rec.createdAt,
			UpdatedAt:        rec.updatedAt,
			TagsEncrypted:    fieldcrypt.NullToPtr(rec.tags),
			IsFavorite:       rec.isFavorite,
		})
	}
	return rows, nil
}

func (r *SQLiteRepository) InsertRaw(ctx context.Context, rows []models.NoteRow) error {
	for _, row := range rows {
		if row.ID == "" {
			return errors.New("raw note without id")
		}
		_, err := r.db.ExecContext(ctx, `INSERT INTO notes (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.ID, fieldcrypt.PtrToNull(row.TitleEncrypted), fieldcrypt.PtrToNull(row.ContentEncrypted),
			row.CreatedAt, row.UpdatedAt, fieldcrypt.PtrToNull(row.TagsEncrypted), row.IsFavorite)
		if err != nil {
			return fmt.Errorf("failed to insert note %s: %w", row.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("failed to delete notes: %w", err)
	}
	return nil
}
