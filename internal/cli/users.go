package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nao1215/hubgate/internal/user"
	"github.com/spf13/cobra"
)

func newUsersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage gateway users",
	}
	cmd.AddCommand(
		newUsersListCmd(opts),
		newUsersGetCmd(opts),
		newUsersSetRoleCmd(opts),
	)
	return cmd
}

func newUsersListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored users",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := opts.openRepo(cmd.Context(), opts.dsn, opts.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			users, err := repo.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
			}
			return printUsers(cmd.OutOrStdout(), opts.jsonOut, users)
		},
	}
}

func newUsersGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <external-id>",
		Short: "Show a single user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := opts.openRepo(cmd.Context(), opts.dsn, opts.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			u, err := repo.GetByExternalID(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("ユーザー %s の取得に失敗: %w", args[0], err)
			}
			return printUsers(cmd.OutOrStdout(), opts.jsonOut, []user.User{u})
		},
	}
}

func newUsersSetRoleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <external-id> <user|admin>",
		Short: "Change the role of a user",
		Long: `ユーザーのロールを変更します。

ユーザーレコードは初回アクセス時にゲートウェイが作成するため、
対象のユーザーは一度ログインしている必要があります。`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := user.ParseRole(args[1])
			if err != nil {
				return err
			}

			repo, err := opts.openRepo(cmd.Context(), opts.dsn, opts.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			u, err := repo.SetRole(cmd.Context(), args[0], role)
			if err != nil {
				return fmt.Errorf("ユーザー %s のロール変更に失敗: %w", args[0], err)
			}
			opts.logger.Info("role changed", "external_id", u.ExternalID, "role", u.Role)
			return printUsers(cmd.OutOrStdout(), opts.jsonOut, []user.User{u})
		},
	}
}

// printUsers はユーザーを表形式またはJSONで出力する。
func printUsers(w io.Writer, jsonOut bool, users []user.User) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTERNAL ID\tEMAIL\tDISPLAY NAME\tROLE\tCREATED AT")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			u.ExternalID, u.Email, u.DisplayName, u.Role, u.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
