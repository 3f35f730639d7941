package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/deploybar/internal/adapter/driving/http"
)

func newLogsCmd(opts *options) *cobra.Command {
	var (
		errorsOnly bool
		accountID  string
	)
	cmd := &cobra.Command{
		Use:   "logs <deployment-id>",
		Short: "Print the build log of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/deployments/" + url.PathEscape(args[0]) + "/logs"
			if errorsOnly {
				path += "/errors"
			}
			if accountID != "" {
				path += "?accountId=" + url.QueryEscape(accountID)
			}
			c := opts.client()

			if errorsOnly {
				var resp httphandler.ErrorTextResponse
				if err := c.do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
				return nil
			}

			var lines []httphandler.LogLineResponse
			if err := c.do(cmd.Context(), http.MethodGet, path, nil, &lines); err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), lines)
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "print only error lines")
	cmd.Flags().StringVar(&accountID, "account", "", "account that owns the deployment (default: active)")
	return cmd
}
