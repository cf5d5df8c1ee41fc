// Package cli はゲートウェイの管理用CLI(gatewayctl)のコマンドを提供する。
//
// ロールの変更はリクエスト処理の経路では行われないため、
// 管理者への昇格はこのCLIから行う。
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/hubgate/internal/config"
	"github.com/nao1215/hubgate/internal/user"
	"github.com/spf13/cobra"
)

// options はすべてのサブコマンドで共有するフラグの値。
type options struct {
	dsn      string
	jsonOut  bool
	verbose  bool
	logger   *slog.Logger
	openRepo func(ctx context.Context, dsn string, logger *slog.Logger) (*user.Repository, error)
}

// NewRootCmd はgatewayctlのルートコマンドを生成する。
func NewRootCmd() *cobra.Command {
	opts := &options{openRepo: user.Open}

	root := &cobra.Command{
		Use:   "gatewayctl",
		Short: "hubgate administration CLI",
		Long: `gatewayctl はゲートウェイのユーザーストアを管理するCLIです。

例:
  gatewayctl users list                      # 登録済みユーザーの一覧
  gatewayctl users get user_123              # ユーザーの詳細
  gatewayctl users set-role user_123 admin   # 管理者に昇格`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = config.DefaultDatabaseDSN
	}
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", dsn, "user store data source name (env DATABASE_DSN)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output as JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newUsersCmd(opts))
	return root
}

// Execute はgatewayctlを実行する。
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}
