// メディアサービスのエントリポイント。
// ゲートウェイからのservice.pingに応答するバックエンドワーカー。
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nao1215/hubgate/internal/config"
	"github.com/nao1215/hubgate/internal/worker"
	"github.com/nao1215/hubgate/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadWorker("media", "8082")
	log := logger.New(os.Stdout, cfg.LogLevel)

	server := worker.NewServer(cfg.Service, cfg.Port, log)

	log.Info("メディアサービスを起動します", slog.String("port", cfg.Port))
	if err := server.Run(); err != nil {
		log.Error("メディアサービスの起動に失敗", slog.Any("error", err))
		os.Exit(1)
	}
}
