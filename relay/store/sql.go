package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/feedbackbot/relay/model"
)

const (
	inquiryColumns = `id, author_id, author_username, author_first_name, author_last_name, category, body, resolved, created_at`
	replyColumns   = `id, inquiry_id, responder_id, body, created_at`
	adminColumns   = `user_id, username, added_by, added_at`
)

// SQL is the sqlx backed Repository. Queries are written with ? placeholders
// and rebound for the connected driver, so the same code serves postgres and sqlite3.
type SQL struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQL wraps an open, migrated database.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

func (s *SQL) q(query string) string {
	return s.db.Rebind(query)
}

func (s *SQL) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQL) CreateInquiry(ctx context.Context, author model.Author, category model.Category, body string) (model.Inquiry, error) {
	if err := validateInquiry(category, body); err != nil {
		return model.Inquiry{}, err
	}
	inq := model.Inquiry{
		Author:    author,
		Category:  category,
		Body:      body,
		CreatedAt: s.now(),
	}
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO inquiries (author_id, author_username, author_first_name, author_last_name, category, body, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		author.ID, author.Username, author.FirstName, author.LastName, string(category), body, false, inq.CreatedAt,
	).Scan(&inq.ID)
	if err != nil {
		return model.Inquiry{}, fmt.Errorf("create inquiry: %w", err)
	}
	return inq, nil
}

func (s *SQL) GetInquiry(ctx context.Context, id int64) (model.Inquiry, error) {
	var inq model.Inquiry
	err := s.db.GetContext(ctx, &inq, s.q(`SELECT `+inquiryColumns+` FROM inquiries WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Inquiry{}, ErrNotFound
	}
	if err != nil {
		return model.Inquiry{}, fmt.Errorf("get inquiry %d: %w", id, err)
	}
	return inq, nil
}

func (s *SQL) ListRecentInquiries(ctx context.Context, limit int) ([]model.Inquiry, error) {
	var out []model.Inquiry
	err := s.db.SelectContext(ctx, &out, s.q(`
		SELECT `+inquiryColumns+`
		FROM inquiries
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), recentLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list inquiries: %w", err)
	}
	return out, nil
}

func (s *SQL) DeleteInquiry(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM replies WHERE inquiry_id = ?`), id); err != nil {
			return fmt.Errorf("delete replies of %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM inquiries WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete inquiry %d: %w", id, err)
		}
		return nil
	})
}

func (s *SQL) MarkResolved(ctx context.Context, id int64) error {
	return markResolved(ctx, s.db, s.q(`UPDATE inquiries SET resolved = ? WHERE id = ?`), id)
}

func markResolved(ctx context.Context, db sqlx.ExecerContext, query string, id int64) error {
	res, err := db.ExecContext(ctx, query, true, id)
	if err != nil {
		return fmt.Errorf("resolve inquiry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve inquiry %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) AddReply(ctx context.Context, inquiryID, responderID int64, text string) (model.Reply, error) {
	if err := validateReply(text); err != nil {
		return model.Reply{}, err
	}
	reply := model.Reply{
		InquiryID:   inquiryID,
		ResponderID: responderID,
		Text:        text,
		CreatedAt:   s.now(),
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		// The update doubles as the existence check and locks the row until commit.
		if err := markResolved(ctx, tx, s.q(`UPDATE inquiries SET resolved = ? WHERE id = ?`), inquiryID); err != nil {
			return err
		}
		err := tx.QueryRowxContext(ctx, s.q(`
			INSERT INTO replies (inquiry_id, responder_id, body, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id`),
			inquiryID, responderID, text, reply.CreatedAt,
		).Scan(&reply.ID)
		if err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Reply{}, err
	}
	return reply, nil
}

func (s *SQL) ListReplies(ctx context.Context, inquiryID int64) ([]model.Reply, error) {
	var out []model.Reply
	err := s.db.SelectContext(ctx, &out, s.q(`SELECT `+replyColumns+` FROM replies WHERE inquiry_id = ? ORDER BY id`), inquiryID)
	if err != nil {
		return nil, fmt.Errorf("list replies of %d: %w", inquiryID, err)
	}
	return out, nil
}

func (s *SQL) AddAdministrator(ctx context.Context, userID int64, username string, addedBy int64) (model.Administrator, error) {
	admin := model.Administrator{
		UserID:   userID,
		Username: sql.NullString{String: username, Valid: username != ""},
		AddedAt:  s.now(),
	}
	admin.AddedBy.Int64, admin.AddedBy.Valid = addedByValue(userID, addedBy)

	var inserted int64
	err := s.db.QueryRowxContext(ctx, s.q(`
		INSERT INTO administrators (user_id, username, added_by, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id`),
		admin.UserID, admin.Username, admin.AddedBy, admin.AddedAt,
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Administrator{}, ErrAlreadyExists
	}
	if err != nil {
		return model.Administrator{}, fmt.Errorf("add administrator %d: %w", userID, err)
	}
	return admin, nil
}

func (s *SQL) RemoveAdministrator(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM administrators WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("remove administrator %d: %w", userID, err)
	}
	return nil
}

func (s *SQL) GetAdministrator(ctx context.Context, userID int64) (model.Administrator, error) {
	var admin model.Administrator
	err := s.db.GetContext(ctx, &admin, s.q(`SELECT `+adminColumns+` FROM administrators WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Administrator{}, ErrNotFound
	}
	if err != nil {
		return model.Administrator{}, fmt.Errorf("get administrator %d: %w", userID, err)
	}
	return admin, nil
}

func (s *SQL) ListAdministrators(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM administrators ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list administrators: %w", err)
	}
	return ids, nil
}

func (s *SQL) Administrators(ctx context.Context) ([]model.Administrator, error) {
	var out []model.Administrator
	if err := s.db.SelectContext(ctx, &out, `SELECT `+adminColumns+` FROM administrators ORDER BY added_at, user_id`); err != nil {
		return nil, fmt.Errorf("list administrators: %w", err)
	}
	return out, nil
}
