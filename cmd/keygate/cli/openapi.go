package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long: `Generate the OpenAPI 3.1 specification for the Keygate HTTP API:
session issuance, tool access checks, and the audit log endpoints.`,
		Example: `  keygate openapi                              # print to stdout
  keygate openapi -o openapi.json              # write to file
  keygate openapi --base-url https://gate.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := openapi.Generate(baseURL)
			raw, err := doc.MarshalJSON()
			if err != nil {
				return fmt.Errorf("marshal spec: %w", err)
			}

			var buf any
			if err := json.Unmarshal(raw, &buf); err == nil {
				if pretty, err := json.MarshalIndent(buf, "", "  "); err == nil {
					raw = pretty
				}
			}

			if outputFile != "" {
				if err := os.WriteFile(outputFile, raw, 0644); err != nil {
					return fmt.Errorf("write %s: %w", outputFile, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outputFile)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Server URL recorded in the spec")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}
