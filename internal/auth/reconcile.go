package auth

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/hubgate/internal/user"
)

// UserRepository はユーザー照合に必要な永続化操作。
// external_idの一意性はストア側で保証されること。
type UserRepository interface {
	// CreateIfAbsent はrole=userでユーザーを作成し、作成した場合はtrueを返す。
	// 既に存在する場合はエラーにせずfalseを返す。
	CreateIfAbsent(ctx context.Context, p user.Profile) (bool, error)
	// RefreshProfile は空でない値でメールアドレスと表示名を更新する。ロールは変更しない。
	RefreshProfile(ctx context.Context, p user.Profile) error
	// GetByExternalID は外部IDでユーザーを取得する。
	GetByExternalID(ctx context.Context, externalID string) (user.User, error)
}

// Reconciler は検証済みの身元をローカルのユーザーレコードに対応付ける。
type Reconciler struct {
	// repo はユーザーストア。
	repo UserRepository
	// timeout は照合処理全体のタイムアウト。
	timeout time.Duration
}

// NewReconciler は新しいReconcilerを生成する。timeoutが0以下の場合はタイムアウトを設定しない。
func NewReconciler(repo UserRepository, timeout time.Duration) *Reconciler {
	return &Reconciler{repo: repo, timeout: timeout}
}

// Reconcile はexternalIDのユーザーを取得または作成し、照合後のレコードを返す。
// 作成競合に負けた場合は更新と再取得の経路で解決し、競合エラーは返さない。
// 永続化層のエラーとタイムアウトはstore_unavailableになる。
func (r *Reconciler) Reconcile(ctx context.Context, externalID, email, displayName string) (user.User, error) {
	if externalID == "" {
		return user.User{}, reject(KindStoreUnavailable, errors.New("external_idが空です"))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	p := user.Profile{ExternalID: externalID, Email: email, DisplayName: displayName}

	created, err := r.repo.CreateIfAbsent(ctx, p)
	if err != nil {
		return user.User{}, reject(KindStoreUnavailable, err)
	}
	if !created {
		if err := r.repo.RefreshProfile(ctx, p); err != nil {
			return user.User{}, reject(KindStoreUnavailable, err)
		}
	}

	u, err := r.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return user.User{}, reject(KindStoreUnavailable, err)
	}
	return u, nil
}
