package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/model"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect session tokens",
	}

	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenDecodeCmd())

	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		name   string
		toolID string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a session token locally (bypasses key verification)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			codec := newCodec(cfg)

			payload := model.SessionPayload{
				Name:      name,
				ToolID:    toolID,
				Timestamp: time.Now().UnixMilli(),
			}
			token, err := codec.Encode(payload)
			if err != nil {
				return fmt.Errorf("encode token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "user name to embed in the session")
	cmd.Flags().StringVar(&toolID, "tool", "", "tool ID to bind the session to")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("tool")

	return cmd
}

func newTokenDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <token>",
		Short: "Decode a session token and report its age",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			codec := newCodec(cfg)

			payload, err := codec.Decode(args[0])
			if err != nil {
				return fmt.Errorf("decode token: %w", err)
			}

			out := struct {
				Name     string `json:"name"`
				ToolID   string `json:"toolId"`
				IssuedAt string `json:"issuedAt"`
				Age      string `json:"age"`
				Expired  bool   `json:"expired"`
			}{
				Name:     payload.Name,
				ToolID:   payload.ToolID,
				IssuedAt: payload.IssuedAt().Format(time.RFC3339),
				Age:      payload.Age(time.Now()).Round(time.Second).String(),
				Expired:  payload.Age(time.Now()) > cfg.SessionTTL,
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
