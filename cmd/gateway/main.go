// ゲートウェイサービスのエントリポイント。
// すべてのリクエストを認証・認可パイプラインに通した上で、
// バックエンドサービス（catalog・media・search）への入口となる。
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nao1215/hubgate/internal/auth"
	"github.com/nao1215/hubgate/internal/config"
	"github.com/nao1215/hubgate/internal/gateway"
	"github.com/nao1215/hubgate/internal/health"
	"github.com/nao1215/hubgate/internal/idp"
	"github.com/nao1215/hubgate/internal/user"
	"github.com/nao1215/hubgate/internal/worker"
	"github.com/nao1215/hubgate/pkg/logger"
)

func main() {
	// .envが無い環境（コンテナ等）では環境変数のみを使う
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("設定の読み込みに失敗", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("ゲートウェイの起動に失敗", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Gateway, log *slog.Logger) error {
	repo, err := user.Open(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	tokens, err := idp.NewTokenVerifier(ctx, idp.OracleConfig{
		JWTKey:  cfg.IDP.JWTKey,
		JWKSURL: cfg.IDP.JWKSURL,
		Validation: idp.ValidationOptions{
			Issuer:            cfg.IDP.Issuer,
			AuthorizedParties: cfg.IDP.AuthorizedParties,
			Leeway:            cfg.IDP.Leeway,
		},
	})
	if err != nil {
		return err
	}

	// ディレクトリ未設定の場合、email/nameを含まないトークンは検証に失敗する
	var directory auth.Directory
	if cfg.IDP.APIURL != "" {
		directory = idp.NewDirectoryClient(idp.DirectoryConfig{
			APIURL:        cfg.IDP.APIURL,
			SecretKey:     cfg.IDP.SecretKey,
			Timeout:       cfg.IDP.Timeout,
			RatePerSecond: cfg.IDP.RatePerSecond,
			Burst:         cfg.IDP.Burst,
		})
	} else {
		log.Warn("IDP_API_URL が未設定のため、プロフィール補完を行いません")
	}

	guard := auth.NewGuard(
		auth.NewVerifier(tokens, directory, cfg.IDP.Timeout),
		auth.NewReconciler(repo, cfg.StoreTimeout),
		log,
	)

	prober := health.NewProber("gateway", []health.Target{
		{Name: "catalog", Pinger: worker.NewClient(cfg.Services.CatalogURL, cfg.Services.PingTimeout)},
		{Name: "media", Pinger: worker.NewClient(cfg.Services.MediaURL, cfg.Services.PingTimeout)},
		{Name: "search", Pinger: worker.NewClient(cfg.Services.SearchURL, cfg.Services.PingTimeout)},
	}, cfg.Services.PingTimeout, log)

	server := gateway.NewServer(gateway.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		RetryAfter:     cfg.RetryAfter,
		StoreTimeout:   cfg.StoreTimeout,
	}, guard, prober, repo, log)

	log.Info("ゲートウェイを起動します", slog.String("port", cfg.Port))
	return server.Run()
}
