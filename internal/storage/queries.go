package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// EntryRow mirrors a row of the entries table.
type EntryRow struct {
	ID          string
	UserID      string
	Date        string
	Category    string
	SubCategory string
	Amount      int64
	Type        string
	Memo        string
}

// CategoryRow mirrors a row of the categories table. Subs is a JSON array.
type CategoryRow struct {
	Name string
	Subs string
}

const upsertEntry = `
INSERT INTO entries (id, user_id, date, category, sub_category, amount, type, memo)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, id) DO UPDATE SET
    date         = excluded.date,
    category     = excluded.category,
    sub_category = excluded.sub_category,
    amount       = excluded.amount,
    type         = excluded.type,
    memo         = excluded.memo,
    updated_at   = CURRENT_TIMESTAMP
`

func (q *Queries) UpsertEntry(ctx context.Context, arg EntryRow) error {
	_, err := q.db.ExecContext(ctx, upsertEntry,
		arg.ID,
		arg.UserID,
		arg.Date,
		arg.Category,
		arg.SubCategory,
		arg.Amount,
		arg.Type,
		arg.Memo,
	)
	return err
}

const deleteEntry = `DELETE FROM entries WHERE user_id = ? AND id = ?`

func (q *Queries) DeleteEntry(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEntry, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getEntry = `
SELECT id, user_id, date, category, sub_category, amount, type, memo
FROM entries WHERE user_id = ? AND id = ?
`

func (q *Queries) GetEntry(ctx context.Context, userID, id string) (EntryRow, error) {
	row := q.db.QueryRowContext(ctx, getEntry, userID, id)
	var i EntryRow
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Date,
		&i.Category,
		&i.SubCategory,
		&i.Amount,
		&i.Type,
		&i.Memo,
	)
	return i, err
}

const listEntriesByUser = `
SELECT id, user_id, date, category, sub_category, amount, type, memo
FROM entries WHERE user_id = ?
ORDER BY date, created_at, id
`

func (q *Queries) ListEntriesByUser(ctx context.Context, userID string) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listEntriesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []EntryRow{}
	for rows.Next() {
		var i EntryRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Date,
			&i.Category,
			&i.SubCategory,
			&i.Amount,
			&i.Type,
			&i.Memo,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listUsers = `SELECT DISTINCT user_id FROM entries ORDER BY user_id`

func (q *Queries) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		items = append(items, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCategories = `SELECT name, subs FROM categories ORDER BY position, name`

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CategoryRow{}
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.Name, &i.Subs); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// New categories go to the end; replacing one keeps its position.
const upsertCategory = `
INSERT INTO categories (name, subs, position)
VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM categories))
ON CONFLICT (name) DO UPDATE SET
    subs       = excluded.subs,
    updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) UpsertCategory(ctx context.Context, arg CategoryRow) error {
	_, err := q.db.ExecContext(ctx, upsertCategory, arg.Name, arg.Subs)
	return err
}

const deleteCategory = `DELETE FROM categories WHERE name = ?`

func (q *Queries) DeleteCategory(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, deleteCategory, name)
	return err
}
