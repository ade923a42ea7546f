package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"pressroom/internal/domain"
)

const userColumns = `id,caller_id,username,outlet,is_editor,is_super_editor,created_at`

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var username, outlet sql.NullString
	var createdAt string
	if err := row.Scan(&u.ID, &u.CallerID, &username, &outlet, &u.IsEditor, &u.IsSuperEditor, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return u, ErrNotFound
		}
		return u, errors.WithStack(err)
	}
	u.Username = username.String
	u.Outlet = outlet.String
	var err error
	u.CreatedAt, err = parseTime(createdAt)
	return u, err
}

// SaveUser inserts the user or overwrites the roles and outlet of the
// existing row with the same caller id. An empty username keeps the stored one.
func (r Repo) SaveUser(ctx context.Context, u domain.User) (domain.User, error) {
	_, err := r.q().ExecContext(ctx, `INSERT INTO users(caller_id,username,outlet,is_editor,is_super_editor,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(caller_id) DO UPDATE SET
  username=COALESCE(excluded.username, users.username),
  outlet=excluded.outlet,
  is_editor=excluded.is_editor,
  is_super_editor=excluded.is_super_editor`,
		u.CallerID, nullable(u.Username), nullable(u.Outlet), boolInt(u.IsEditor), boolInt(u.IsSuperEditor), formatTime(u.CreatedAt))
	if err != nil {
		return domain.User{}, errors.Wrapf(err, "save user %s", u.CallerID)
	}
	return r.GetUserByCallerID(ctx, u.CallerID)
}

func (r Repo) GetUserByCallerID(ctx context.Context, callerID string) (domain.User, error) {
	return scanUser(r.q().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE caller_id=?`, callerID))
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.q().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

type UserFilters struct {
	EditorsOnly bool
	Outlet      string
	// AnyOutlet keeps users affiliated with some outlet.
	AnyOutlet bool
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.EditorsOnly {
		clauses = append(clauses, "is_editor=1")
	}
	if f.Outlet != "" {
		clauses = append(clauses, "outlet=?")
		args = append(args, f.Outlet)
	}
	if f.AnyOutlet {
		clauses = append(clauses, "outlet IS NOT NULL")
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY outlet, caller_id`, userColumns, strings.Join(clauses, " AND "))
	rows, err := r.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, errors.WithStack(rows.Err())
}
