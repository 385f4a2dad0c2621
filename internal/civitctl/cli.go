package civitctl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"civitaid/pkg/types"
)

func defaultServer() string {
	if v := os.Getenv("CIVITAID_SERVER"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

// BuildRootCmd constructs the civitctl command tree.
func BuildRootCmd() *cobra.Command {
	var server string
	root := &cobra.Command{
		Use:           "civitctl",
		Short:         "Client for a running civitaid daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&server, "server", defaultServer(), "civitaid base URL (defaults CIVITAID_SERVER)")

	client := func() *Client { return NewClient(server) }
	out := func(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }

	modelsCmd := &cobra.Command{Use: "models", Short: "Inspect and manage saved models"}

	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List every saved model version",
		Example: "  civitctl models list",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := client().List(cmd.Context())
			if err != nil {
				return err
			}
			return printRecords(out(cmd), recs)
		},
	}

	var getVersion int
	getCmd := &cobra.Command{
		Use:     "get <model_id>",
		Short:   "Show saved versions of one model",
		Example: "  civitctl models get 546949\n  civitctl models get 546949 --version 611080",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if getVersion > 0 {
				rec, err := client().GetVersion(cmd.Context(), id, getVersion)
				if err != nil {
					return err
				}
				return printRecords(out(cmd), []types.ModelRecord{rec})
			}
			recs, err := client().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printRecords(out(cmd), recs)
		},
	}
	getCmd.Flags().IntVar(&getVersion, "version", 0, "Exact version id")

	var dlVersion int
	downloadCmd := &cobra.Command{
		Use:     "download <model_id>",
		Short:   "Download a model (latest version unless --version)",
		Example: "  civitctl models download 546949\n  civitctl models download 546949 --version 611080",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rec, err := client().Download(cmd.Context(), id, dlVersion)
			if err != nil {
				return err
			}
			return printRecords(out(cmd), []types.ModelRecord{rec})
		},
	}
	downloadCmd.Flags().IntVar(&dlVersion, "version", 0, "Exact version id (default latest)")

	var rmVersion int
	var rmAll bool
	rmCmd := &cobra.Command{
		Use:     "rm [model_id]",
		Short:   "Delete saved models",
		Example: "  civitctl models rm 546949\n  civitctl models rm 546949 --version 611080\n  civitctl models rm --all",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rmAll {
				if len(args) > 0 {
					return fmt.Errorf("--all takes no model id")
				}
				recs, err := client().DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				return printRecords(out(cmd), recs)
			}
			if len(args) == 0 {
				return fmt.Errorf("model id required unless --all")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			recs, err := client().Delete(cmd.Context(), id, rmVersion)
			if err != nil {
				return err
			}
			return printRecords(out(cmd), recs)
		},
	}
	rmCmd.Flags().IntVar(&rmVersion, "version", 0, "Exact version id")
	rmCmd.Flags().BoolVar(&rmAll, "all", false, "Delete every saved model")

	modelsCmd.AddCommand(listCmd, getCmd, downloadCmd, rmCmd)
	root.AddCommand(modelsCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !client().Healthy(cmd.Context()) {
				return fmt.Errorf("daemon at %s is not healthy", server)
			}
			fmt.Fprintln(out(cmd), "ok")
			return nil
		},
	}
	root.AddCommand(statusCmd)

	return root
}

func parseID(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid model id %q: must be a positive integer", s)
	}
	return n, nil
}

func printRecords(w io.Writer, recs []types.ModelRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}
