package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/deploybar/internal/adapter/driving/http"
)

func newProjectsCmd(opts *options) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the projects of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/projects"
			if accountID != "" {
				path += "?accountId=" + url.QueryEscape(accountID)
			}

			var projects []httphandler.ProjectResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &projects); err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), projects)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFRAMEWORK\tSERVICES\tID")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, orDash(p.Framework), serviceNames(p.Services), p.ID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account to list (default: active)")
	return cmd
}

func serviceNames(services []httphandler.NamedResponse) string {
	if len(services) == 0 {
		return "-"
	}
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.Name
	}
	return strings.Join(names, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
