package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keygate/keygate/internal/registry"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect the invite key registry",
	}

	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysCheckCmd())

	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured user names (keys are never printed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			keys := registry.ParseKeys(cfg.Keys, cliLogger())

			users := keys.Users()
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No invite keys configured (set INVITE_KEYS).")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d user(s) configured:\n", len(users))
			for _, name := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			return nil
		},
	}
}

func newKeysCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check which user an invite key belongs to",
		Long:  "Prompt for an invite key (hidden input) and report the matching user, if any.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			keys := registry.ParseKeys(cfg.Keys, cliLogger())

			fmt.Print("Invite key: ")
			keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
			if err != nil {
				return fmt.Errorf("failed to read key: %w", err)
			}
			fmt.Println()

			name, ok := keys.LookupUserByKey(string(keyBytes))
			if !ok {
				return fmt.Errorf("key does not match any configured user")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Key belongs to %q.\n", name)
			return nil
		},
	}
}
