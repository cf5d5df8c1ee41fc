package user

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/hubgate/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound は指定したユーザーが存在しないことを表す。
var ErrNotFound = errors.New("ユーザーが見つかりません")

// Repository はSQLiteに保存されたユーザーレコードへのアクセスを提供する。
// external_idの一意制約がレコード作成の唯一の調停者となる。
type Repository struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// Open はSQLiteデータベースを開き、マイグレーションを適用したRepositoryを返す。
// dsnにはmodernc.org/sqlite形式のデータソース名を指定する。
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dsn == ":memory:" {
		// インメモリDBは接続ごとに別のDBになるため、接続を1本に固定する
		db.SetMaxOpenConns(1)
	}

	repo, err := NewRepository(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository は既存の接続にマイグレーションを適用してRepositoryを返す。
func NewRepository(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Repository, error) {
	if _, err := migration.Run(ctx, db, migrationFS, "migrations", logger); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close はデータベース接続を閉じる。
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping はデータベースへの疎通を確認する。
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateIfAbsent はユーザーが存在しなければrole=userで作成する。
// 作成した場合はtrueを返す。同じexternal_idが既に存在する場合（作成競合に負けた場合を含む）は
// 何もせずfalseを返し、エラーにはしない。
func (r *Repository) CreateIfAbsent(ctx context.Context, p Profile) (bool, error) {
	now := r.now().Format(time.RFC3339Nano)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (external_id, email, display_name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		p.ExternalID, p.Email, p.DisplayName, string(RoleUser), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("ユーザー作成に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("作成件数の取得に失敗: %w", err)
	}
	return n == 1, nil
}

// RefreshProfile は空でないメールアドレスと表示名で既存ユーザーを更新する。
// ロールは変更しない。
func (r *Repository) RefreshProfile(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			email = CASE WHEN ?1 <> '' THEN ?1 ELSE email END,
			display_name = CASE WHEN ?2 <> '' THEN ?2 ELSE display_name END,
			updated_at = ?3
		WHERE external_id = ?4`,
		p.Email, p.DisplayName, r.now().Format(time.RFC3339Nano), p.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("ユーザー更新に失敗: %w", err)
	}
	return nil
}

// GetByExternalID は外部IDでユーザーを取得する。
// 存在しない場合はErrNotFoundを返す。
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT external_id, email, display_name, role, created_at, updated_at
		FROM users WHERE external_id = ?`, externalID)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザー取得に失敗: %w", err)
	}
	return u, nil
}

// List は作成日時順に全ユーザーを返す。
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT external_id, email, display_name, role, created_at, updated_at
		FROM users ORDER BY created_at, external_id`)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetRole はユーザーのロールを変更する。管理者による明示的な操作専用。
func (r *Repository) SetRole(ctx context.Context, externalID string, role Role) (User, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return User{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = ?, updated_at = ? WHERE external_id = ?`,
		string(role), r.now().Format(time.RFC3339Nano), externalID,
	)
	if err != nil {
		return User{}, fmt.Errorf("ロール更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return User{}, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return User{}, ErrNotFound
	}
	return r.GetByExternalID(ctx, externalID)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (User, error) {
	var (
		u                    User
		role                 string
		createdAt, updatedAt string
	)
	if err := s.Scan(&u.ExternalID, &u.Email, &u.DisplayName, &role, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}

	var err error
	if u.Role, err = ParseRole(role); err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return User{}, fmt.Errorf("created_atの解析に失敗: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return User{}, fmt.Errorf("updated_atの解析に失敗: %w", err)
	}
	return u, nil
}
