package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/cryptox"
	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/models"
	"github.com/dmitrijs2005/pinvault/internal/repositories/fieldcrypt"
	"github.com/dmitrijs2005/pinvault/internal/vault"
	"github.com/google/uuid"
)

const columns = `id, title_encrypted, description_encrypted, start_time, end_time, is_all_day, calendar_type, rrule_encrypted`

// SQLiteRepository implements Repository over a DBTX. Copies made with
// WithDB share the same subscribers.
type SQLiteRepository struct {
	db      dbx.DBTX
	keys    vault.KeySource
	updated *signal
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(db dbx.DBTX, keys vault.KeySource) *SQLiteRepository {
	return &SQLiteRepository{db: db, keys: keys, updated: newSignal()}
}

// WithDB returns a copy of r bound to db, typically a transaction.
func (r *SQLiteRepository) WithDB(db dbx.DBTX) *SQLiteRepository {
	c := *r
	c.db = db
	return &c
}

func (r *SQLiteRepository) Subscribe() (<-chan struct{}, func()) {
	return r.updated.subscribe()
}

// NotifyUpdated raises the updated signal. Bulk raw writes do not signal on
// their own; callers run them in a transaction and notify after commit.
func (r *SQLiteRepository) NotifyUpdated() {
	r.updated.notify()
}

type record struct {
	id          string
	title       sql.NullString
	description sql.NullString
	startTime   int64
	endTime     sql.NullInt64
	isAllDay    bool
	calendar    string
	rrule       sql.NullString
}

func scanRecord(rows *sql.Rows) (record, error) {
	var rec record
	err := rows.Scan(&rec.id, &rec.title, &rec.description, &rec.startTime, &rec.endTime,
		&rec.isAllDay, &rec.calendar, &rec.rrule)
	return rec, err
}

type sealed struct {
	title, description, rrule sql.NullString
	endTime                   sql.NullInt64
}

func seal(e *models.Event, key *cryptox.Key) (s sealed, err error) {
	if s.title, err = fieldcrypt.Seal(e.Title, key); err != nil {
		return
	}
	if s.description, err = fieldcrypt.Seal(e.Description, key); err != nil {
		return
	}
	if s.rrule, err = fieldcrypt.SealOptional(e.RRule, key); err != nil {
		return
	}
	if e.EndTime != nil {
		s.endTime = sql.NullInt64{Int64: models.ToMillis(*e.EndTime), Valid: true}
	}
	return
}

func open(ctx context.Context, key *cryptox.Key, rec record) (models.Event, error) {
	e := models.Event{
		ID:           rec.id,
		StartTime:    models.FromMillis(rec.startTime),
		IsAllDay:     rec.isAllDay,
		CalendarType: models.CalendarType(rec.calendar),
	}
	if rec.endTime.Valid {
		end := models.FromMillis(rec.endTime.Int64)
		e.EndTime = &end
	}

	var rrule string
	var hasRRule bool
	err := fieldcrypt.Open(ctx, key, rec.id,
		fieldcrypt.Field{Cipher: rec.title, Plain: &e.Title},
		fieldcrypt.Field{Cipher: rec.description, Plain: &e.Description},
		fieldcrypt.Field{Cipher: rec.rrule, Plain: &rrule, Present: &hasRRule},
	)
	if err != nil {
		return models.Event{}, err
	}
	if hasRRule {
		e.RRule = &rrule
	}
	return e, nil
}

// normalize drops sub-millisecond precision, which the schema cannot keep.
func normalize(e *models.Event) {
	e.StartTime = e.StartTime.UTC().Truncate(time.Millisecond)
	if e.EndTime != nil {
		end := e.EndTime.UTC().Truncate(time.Millisecond)
		e.EndTime = &end
	}
}

func (r *SQLiteRepository) Create(ctx context.Context, e *models.Event) error {
	key, err := r.keys.Key()
	if err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	normalize(e)

	s, err := seal(e, key)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `INSERT INTO events (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.title, s.description, models.ToMillis(e.StartTime), s.endTime, e.IsAllDay, string(e.CalendarType), s.rrule)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	e.ID = id
	r.updated.notify()
	return nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	events, err := r.query(ctx, `SELECT `+columns+` FROM events WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, common.ErrorNotFound
	}
	return &events[0], nil
}

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]models.Event, error) {
	return r.query(ctx, `SELECT `+columns+` FROM events ORDER BY start_time ASC, id`)
}

func (r *SQLiteRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	return r.query(ctx,
		`SELECT `+columns+` FROM events WHERE start_time >= ? AND start_time <= ? ORDER BY start_time ASC, id`,
		models.ToMillis(from), models.ToMillis(to))
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]models.Event, error) {
	key, err := r.keys.Key()
	if err != nil {
		return nil, err
	}
	records, err := dbx.QueryAll(ctx, r.db, q, scanRecord, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}

	result := make([]models.Event, 0, len(records))
	for _, rec := range records {
		e, err := open(ctx, key, rec)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e *models.Event) error {
	key, err := r.keys.Key()
	if err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	normalize(e)

	s, err := seal(e, key)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET title_encrypted = ?, description_encrypted = ?, start_time = ?, end_time = ?,
			is_all_day = ?, calendar_type = ?, rrule_encrypted = ? WHERE id = ?`,
		s.title, s.description, models.ToMillis(e.StartTime), s.endTime, e.IsAllDay, string(e.CalendarType), s.rrule, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	r.updated.notify()
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.keys.Key(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	r.updated.notify()
	return nil
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

func (r *SQLiteRepository) ListRaw(ctx context.Context) ([]models.EventRow, error) {
	records, err := dbx.QueryAll(ctx, r.db, `SELECT `+columns+` FROM events ORDER BY start_time, id`, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	rows := make([]models.EventRow, 0, len(records))
	for _, rec := range records {
		row := models.EventRow{
			ID:                   rec.id,
			TitleEncrypted:       rec.title.String,
			DescriptionEncrypted: fieldcrypt.NullToPtr(rec.description),
			StartTime:            rec.startTime,
			IsAllDay:             rec.isAllDay,
			CalendarType:         rec.calendar,
			RRuleEncrypted:       fieldcrypt.NullToPtr(rec.rrule),
		}
		if rec.endTime.Valid {
			end := rec.endTime.Int64
			row.EndTime = &end
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *SQLiteRepository) InsertRaw(ctx context.Context, rows []models.EventRow) error {
	for _, row := range rows {
		if row.ID == "" || row.TitleEncrypted == "" || row.CalendarType == "" {
			return errors.New("raw event missing required column")
		}
		var end sql.NullInt64
		if row.EndTime != nil {
			end = sql.NullInt64{Int64: *row.EndTime, Valid: true}
		}
		_, err := r.db.ExecContext(ctx, `INSERT INTO events (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.TitleEncrypted, fieldcrypt.PtrToNull(row.DescriptionEncrypted), row.StartTime, end,
			row.IsAllDay, row.CalendarType, fieldcrypt.PtrToNull(row.RRuleEncrypted))
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", row.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
