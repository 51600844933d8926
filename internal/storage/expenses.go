package storage

import (
	"context"
	"fmt"

	"spendbook/internal/models"
)

const expenseColumns = "id, user_id, amount, category, date, COALESCE(description, ''), created_at, updated_at"

// ListOptions paginates ListExpenses. A zero Limit returns every row.
type ListOptions struct {
	Limit  int
	Offset int
}

// SaveExpense inserts e when e.ID is zero and otherwise overwrites the
// mutable fields of the row with that id owned by userID. It returns the
// resolved id and stores it in e.
func (db *DB) SaveExpense(ctx context.Context, userID int64, e *models.Expense) (int64, error) {
	if e.ID == 0 {
		result, err := db.conn.ExecContext(ctx,
			"INSERT INTO expenses (user_id, amount, category, date, description) VALUES (?, ?, ?, ?, ?)",
			userID, e.Amount, e.Category, e.Date, e.Description,
		)
		if err != nil {
			return 0, fmt.Errorf("insert expense: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("insert expense: %w", err)
		}
		e.ID = id
		e.UserID = userID
		return id, nil
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE expenses
		SET amount = ?, category = ?, date = ?, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		e.Amount, e.Category, e.Date, e.Description, e.ID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	e.UserID = userID
	return e.ID, nil
}

// GetExpense retrieves a single expense by ID. Rows owned by another user
// are reported as ErrNotFound.
func (db *DB) GetExpense(ctx context.Context, userID, id int64) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ? AND user_id = ?",
		id, userID,
	)
	e, err := scanExpense(row)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// ListExpenses retrieves the user's expenses, newest date first. Expenses on
// the same date are ordered by insertion recency.
func (db *DB) ListExpenses(ctx context.Context, userID int64, opts ListOptions) ([]models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE user_id = ? ORDER BY date DESC, created_at DESC, id DESC"
	args := []any{userID}
	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}
	return db.queryExpenses(ctx, query, args...)
}

// ExpensesByDateRange returns the user's expenses dated between start and end
// inclusive. Dates are compared as zero-padded ISO strings.
func (db *DB) ExpensesByDateRange(ctx context.Context, userID int64, start, end string) ([]models.Expense, error) {
	return db.queryExpenses(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE user_id = ? AND date BETWEEN ? AND ? ORDER BY date DESC, created_at DESC, id DESC",
		userID, start, end,
	)
}

// DeleteExpense removes an expense and reports whether a row was deleted.
func (db *DB) DeleteExpense(ctx context.Context, userID, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, fmt.Errorf("delete expense %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete expense %d: %w", id, err)
	}
	return n > 0, nil
}

// Categories returns the distinct categories the user has recorded, ascending.
func (db *DB) Categories(ctx context.Context, userID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT DISTINCT category FROM expenses WHERE user_id = ? ORDER BY category ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CountExpenses returns the number of expenses the user has recorded.
func (db *DB) CountExpenses(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses WHERE user_id = ?", userID).Scan(&count)
	return count, err
}

func (db *DB) queryExpenses(ctx context.Context, query string, args ...any) ([]models.Expense, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}

	return expenses, rows.Err()
}

func scanExpense(s rowScanner) (*models.Expense, error) {
	var e models.Expense
	if err := s.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Date, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
