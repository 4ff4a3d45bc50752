package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unisphere-campus/server/internal/domain/users"
)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ users.Repository = (*UserRepository)(nil)

const userColumns = `id, student_id, first_name, last_name, email, phone_number, profile_image_url, role,
       faculty, department, major, curriculum, education_level, campus, password_hash, is_active,
       created_at, updated_at`

func (r *UserRepository) queryer() queryer {
	return conn{pool: r.pool, tx: r.tx}.queryer()
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO users (student_id, first_name, last_name, email, phone_number, role, faculty, department,
                   major, curriculum, education_level, campus, password_hash)
VALUES (NULLIF($1, ''), $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''),
        NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13)
RETURNING `+userColumns,
		params.StudentID, params.FirstName, params.LastName, params.Email, params.PhoneNumber, params.Role,
		params.Faculty, params.Department, params.Major, params.Curriculum, params.EducationLevel,
		params.Campus, params.PasswordHash,
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
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (*users.User, error) {
	user, err := scanUser(r.queryer().QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, update users.ProfileUpdate) (*users.User, error) {
	row := r.queryer().QueryRow(ctx, `
UPDATE users
   SET student_id        = COALESCE($2, student_id),
       first_name        = COALESCE($3, first_name),
       last_name         = COALESCE($4, last_name),
       email             = COALESCE($5, email),
       phone_number      = COALESCE($6, phone_number),
       profile_image_url = COALESCE($7, profile_image_url),
       role              = COALESCE($8, role),
       faculty           = COALESCE($9, faculty),
       department        = COALESCE($10, department),
       major             = COALESCE($11, major),
       curriculum        = COALESCE($12, curriculum),
       education_level   = COALESCE($13, education_level),
       campus            = COALESCE($14, campus),
       updated_at        = now()
 WHERE id = $1
RETURNING `+userColumns,
		id, update.StudentID, update.FirstName, update.LastName, update.Email, update.PhoneNumber,
		update.ProfileImageURL, update.Role, update.Faculty, update.Department, update.Major,
		update.Curriculum, update.EducationLevel, update.Campus,
	)
	user, err := scanUser(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
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
	rows, err := r.queryer().Query(ctx, `SELECT id, first_name, last_name FROM users WHERE id = ANY($1)`, ids)
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

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		user                                   users.User
		studentID, phone, image                *string
		faculty, department, major, curriculum *string
		educationLevel, campus                 *string
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
	user.StudentID = derefString(studentID)
	user.PhoneNumber = derefString(phone)
	user.ProfileImageURL = derefString(image)
	user.Faculty = derefString(faculty)
	user.Department = derefString(department)
	user.Major = derefString(major)
	user.Curriculum = derefString(curriculum)
	user.EducationLevel = derefString(educationLevel)
	user.Campus = derefString(campus)
	return &user, nil
}

type TokenRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ users.TokenRepository = (*TokenRepository)(nil)

func (r *TokenRepository) queryer() queryer {
	return conn{pool: r.pool, tx: r.tx}.queryer()
}

func (r *TokenRepository) Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
INSERT INTO revoked_tokens (jti, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (jti) DO NOTHING
`, jti, userID, expiresAt)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	if err := r.queryer().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&revoked); err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
