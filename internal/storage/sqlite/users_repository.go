package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/unisphere-campus/server/internal/domain/users"
)

type UserRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ users.Repository = (*UserRepository)(nil)

const userColumns = `id, student_id, first_name, last_name, email, phone_number, profile_image_url, role,
       faculty, department, major, curriculum, education_level, campus, password_hash, is_active,
       created_at, updated_at`

func (r *UserRepository) queryer() queryer {
	return conn{db: r.db, tx: r.tx}.queryer()
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	ts := now()
	row := r.queryer().QueryRowContext(ctx, `
INSERT INTO users (student_id, first_name, last_name, email, phone_number, role, faculty, department,
                   major, curriculum, education_level, campus, password_hash, created_at, updated_at)
VALUES (NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''),
        NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
RETURNING `+userColumns,
		params.StudentID, params.FirstName, params.LastName, params.Email, params.PhoneNumber, params.Role,
		params.Faculty, params.Department, params.Major, params.Curriculum, params.EducationLevel,
		params.Campus, params.PasswordHash, ts, ts,
	)
	user, err := scanUser(row)
	if isUniqueViolation(err) {
		return nil, users.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*users.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (*users.User, error) {
	user, err := scanUser(r.queryer().QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update users.ProfileUpdate) (*users.User, error) {
	row := r.queryer().QueryRowContext(ctx, `
UPDATE users
   SET student_id        = COALESCE(?, student_id),
       first_name        = COALESCE(?, first_name),
       last_name         = COALESCE(?, last_name),
       email             = COALESCE(?, email),
       phone_number      = COALESCE(?, phone_number),
       profile_image_url = COALESCE(?, profile_image_url),
       role              = COALESCE(?, role),
       faculty           = COALESCE(?, faculty),
       department        = COALESCE(?, department),
       major             = COALESCE(?, major),
       curriculum        = COALESCE(?, curriculum),
       education_level   = COALESCE(?, education_level),
       campus            = COALESCE(?, campus),
       updated_at        = ?
 WHERE id = ?
RETURNING `+userColumns,
		update.StudentID, update.FirstName, update.LastName, update.Email, update.PhoneNumber,
		update.ProfileImageURL, update.Role, update.Faculty, update.Department, update.Major,
		update.Curriculum, update.EducationLevel, update.Campus, now(), id,
	)
	user, err := scanUser(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, users.ErrNotFound
	case isUniqueViolation(err):
		return nil, users.ErrEmailTaken
	case err != nil:
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FullNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.queryer().QueryContext(ctx,
		`SELECT id, first_name, last_name FROM users WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query user names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var user users.User
		if err := rows.Scan(&user.ID, &user.FirstName, &user.LastName); err != nil {
			return nil, fmt.Errorf("scan user name: %w", err)
		}
		out[user.ID] = user.FullName()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user names: %w", err)
	}
	return out, nil
}

func scanUser(row rowScanner) (*users.User, error) {
	var (
		user                                   users.User
		studentID, phone, image                sql.NullString
		faculty, department, major, curriculum sql.NullString
		educationLevel, campus                 sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&studentID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&phone,
		&image,
		&user.Role,
		&faculty,
		&department,
		&major,
		&curriculum,
		&educationLevel,
		&campus,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.StudentID = nullString(studentID)
	user.PhoneNumber = nullString(phone)
	user.ProfileImageURL = nullString(image)
	user.Faculty = nullString(faculty)
	user.Department = nullString(department)
	user.Major = nullString(major)
	user.Curriculum = nullString(curriculum)
	user.EducationLevel = nullString(educationLevel)
	user.Campus = nullString(campus)
	return &user, nil
}

type TokenRepository struct {
	db *sql.DB
	tx *sql.Tx
}

var _ users.TokenRepository = (*TokenRepository)(nil)

func (r *TokenRepository) queryer() queryer {
	return conn{db: r.db, tx: r.tx}.queryer()
}

func (r *TokenRepository) Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	res, err := r.queryer().ExecContext(ctx, `
INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (jti) DO NOTHING
`, jti, userID, expiresAt.UTC(), now())
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return n == 1, nil
}

func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	if err := r.queryer().QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.queryer().ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return n, nil
}
