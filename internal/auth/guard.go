package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/hubgate/internal/user"
)

// IdentityVerifier はトークンからIdentityClaimを得る。*Verifierが実装する。
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (IdentityClaim, error)
}

// UserReconciler は身元をユーザーレコードに照合する。*Reconcilerが実装する。
type UserReconciler interface {
	Reconcile(ctx context.Context, externalID, email, displayName string) (user.User, error)
}

// Guard はリクエストごとに認証・認可パイプラインを1回実行する。
// 抽出 → 検証 → 照合 → 判定の順に進み、途中で失敗した時点で拒否する。
// パイプライン内での再試行は行わない。
type Guard struct {
	verifier   IdentityVerifier
	reconciler UserReconciler
	logger     *slog.Logger
}

// NewGuard は新しいGuardを生成する。
func NewGuard(verifier IdentityVerifier, reconciler UserReconciler, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{verifier: verifier, reconciler: reconciler, logger: logger}
}

// Check はルート要件とリクエストヘッダーからアクセス可否を判定する。
// 許可された場合は下流に渡すUserContextを返す。公開ルートではnilを返す。
// 拒否された場合は*Errorを返す。
func (g *Guard) Check(ctx context.Context, req Requirement, h Metadata) (*UserContext, error) {
	if req == Public {
		return nil, nil
	}

	token, ok := ExtractBearer(h)
	if !ok {
		return nil, g.rejected(ctx, req, reject(KindMissingCredential, nil))
	}

	claim, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return nil, g.rejected(ctx, req, asKind(KindInvalidCredential, err))
	}

	u, err := g.reconciler.Reconcile(ctx, claim.ExternalID, claim.Email, claim.DisplayName)
	if err != nil {
		return nil, g.rejected(ctx, req, asKind(KindStoreUnavailable, err))
	}

	// 身元はトークン、ロールは永続化レコードを正とする
	uc := &UserContext{
		ExternalID:  claim.ExternalID,
		Email:       claim.Email,
		DisplayName: claim.DisplayName,
		Role:        u.Role,
	}

	if d := Authorize(req, uc); !d.Allowed {
		return nil, g.rejected(ctx, req, reject(KindInsufficientRole, errors.New(d.Reason)))
	}
	return uc, nil
}

func (g *Guard) rejected(ctx context.Context, req Requirement, err *Error) *Error {
	g.logger.LogAttrs(ctx, slog.LevelWarn, "リクエストを拒否しました",
		slog.String("kind", string(err.Kind)),
		slog.String("requirement", req.String()),
		slog.Any("error", err),
	)
	return err
}

// asKind はerrを指定した種類の*Errorに正規化する。
// 既に同じ種類の*Errorであればそのまま返す。
func asKind(kind Kind, err error) *Error {
	var e *Error
	if errors.As(err, &e) && e.Kind == kind {
		return e
	}
	return reject(kind, err)
}
