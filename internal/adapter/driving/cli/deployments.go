package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/deploybar/internal/adapter/driving/http"
)

func newDeploymentsCmd(opts *options) *cobra.Command {
	var (
		limit  int
		active bool
	)
	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "List recent deployments across accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/deployments"
			if active {
				path += "/active"
			}
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}

			var deps []httphandler.DeploymentResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &deps); err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), deps)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tNAME\tPROVIDER\tBRANCH\tCREATED\tID")
			for _, d := range deps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Status, d.Name, d.Provider, d.Branch, formatMillis(d.CreatedAt), d.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of deployments (daemon default when 0)")
	cmd.Flags().BoolVar(&active, "active", false, "only the active account")
	cmd.AddCommand(newDeploymentShowCmd(opts))
	return cmd
}

func newDeploymentShowCmd(opts *options) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Show one deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/deployments/" + url.PathEscape(args[0])
			if accountID != "" {
				path += "?accountId=" + url.QueryEscape(accountID)
			}

			var d httphandler.DeploymentResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &d); err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), d)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "ID:\t%s\n", d.ID)
			fmt.Fprintf(tw, "Name:\t%s\n", d.Name)
			fmt.Fprintf(tw, "Provider:\t%s\n", d.Provider)
			fmt.Fprintf(tw, "Status:\t%s\n", d.Status)
			fmt.Fprintf(tw, "Finished:\t%t\n", d.Finished)
			fmt.Fprintf(tw, "URL:\t%s\n", orDash(d.URL))
			fmt.Fprintf(tw, "Branch:\t%s\n", orDash(d.Branch))
			fmt.Fprintf(tw, "Created:\t%s\n", formatMillis(d.CreatedAt))
			fmt.Fprintf(tw, "Commit:\t%s\n", orDash(d.CommitMessage))
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account that owns the deployment (default: active)")
	return cmd
}

func formatMillis(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).Local().Format(time.DateTime)
}
