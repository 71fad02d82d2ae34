package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/user"
)

type dbUser struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	Groups       pq.StringArray `db:"groups"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

type dbInviteCode struct {
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) pack(usr user.User) dbUser {
	u := dbUser{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsActive:     usr.IsActive == nil || *usr.IsActive,
		Roles:        pq.StringArray(usr.Roles),
		Groups:       pq.StringArray(usr.Groups),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
	if !usr.LastLogin.IsZero() {
		u.LastLogin = sql.NullTime{Time: usr.LastLogin.UTC(), Valid: true}
	}
	return u
}

func (repo userRepository) unpack(u dbUser) user.User {
	isActive := u.IsActive
	return user.User{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		IsActive:     &isActive,
		Roles:        u.Roles,
		Groups:       u.Groups,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLogin:    u.LastLogin.Time,
	}
}

func (repo userRepository) unpackSlice(slice []dbUser) []user.User {
	users := make([]user.User, 0, len(slice))
	for _, u := range slice {
		users = append(users, repo.unpack(u))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := `SELECT username, email FROM users WHERE (username = $1 OR email = $2)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += ` AND NOT (id = ANY($3))`
		args = append(args, pq.StringArray(ids))
	}

	var match struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.GetContext(ctx, &match, query+` LIMIT 1`, args...)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if match.Username == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.pack(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, username, email, is_active, roles, groups, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :groups, :password_hash, :created_at, :updated_at, :last_login)`, u)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unpack(u), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var users []dbUser
	if err := repo.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unpackSlice(users), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var u dbUser
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, filter.ID)
	case filter.Username != "":
		err = repo.db.GetContext(ctx, &u, `SELECT * FROM users WHERE username = $1`, filter.Username)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, filter.Email)
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		if uname == "" {
			return user.User{}, user.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &u, `SELECT * FROM users WHERE username = $1 OR email = $2`, uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unpack(u), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", val))
	}
	if len(filter.Roles) > 0 {
		conds = append(conds, fmt.Sprintf("roles && %s", arg(pq.StringArray(filter.Roles))))
	}
	if len(filter.Groups) > 0 {
		conds = append(conds, fmt.Sprintf(`groups && %s`, arg(pq.StringArray(filter.Groups))))
	}
	if filter.IsActive != nil {
		conds = append(conds, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom.UTC())))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo.UTC())))
	}

	query := `SELECT * FROM users`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		query += " ORDER BY created_at"
	}

	var users []dbUser
	if err := repo.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return repo.unpackSlice(users), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	if isActive != nil {
		usr.IsActive = isActive
	}
	u := repo.pack(usr)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE users
		SET name = :name, username = :username, email = :email, is_active = :is_active,
		    roles = :roles, groups = :groups, password_hash = :password_hash,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, u)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unpack(u), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr, nil)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = ANY($1)`, pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func (repo userRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo userRepository) CreateInviteCode(ctx context.Context, code user.InviteCode) error {
	ic := dbInviteCode{Code: code.Code, CreatedAt: code.CreatedAt.UTC()}
	if _, err := repo.db.NamedExecContext(ctx, `INSERT INTO invite_codes (code, created_at) VALUES (:code, :created_at)`, ic); err != nil {
		return errors.Wrap(err, "inserting invite code")
	}
	return nil
}

func (repo userRepository) GetInviteCode(ctx context.Context, code string) (user.InviteCode, error) {
	var ic dbInviteCode
	if err := repo.db.GetContext(ctx, &ic, `SELECT * FROM invite_codes WHERE code = $1`, code); err != nil {
		if err == sql.ErrNoRows {
			return user.InviteCode{}, user.ErrInvalidInviteCode
		}
		return user.InviteCode{}, errors.Wrap(err, "finding invite code")
	}
	return user.InviteCode{Code: ic.Code, CreatedAt: ic.CreatedAt}, nil
}

func (repo userRepository) DeleteInviteCode(ctx context.Context, code string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM invite_codes WHERE code = $1`, code); err != nil {
		return errors.Wrap(err, "deleting invite code")
	}
	return nil
}
