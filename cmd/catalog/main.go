// カタログサービスのエントリポイント。
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

	cfg := config.LoadWorker("catalog", "8081")
	log := logger.New(os.Stdout, cfg.LogLevel)

	server := worker.NewServer(cfg.Service, cfg.Port, log)

	log.Info("カタログサービスを起動します", slog.String("port", cfg.Port))
	if err := server.Run(); err != nil {
		log.Error("カタログサービスの起動に失敗", slog.Any("error", err))
		os.Exit(1)
	}
}
