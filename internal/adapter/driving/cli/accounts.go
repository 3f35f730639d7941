package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/deploybar/internal/adapter/driving/http"
)

func newAccountsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage provider accounts",
	}
	cmd.AddCommand(
		newAccountsListCmd(opts),
		newAccountsAddCmd(opts),
		newAccountsRemoveCmd(opts),
		newAccountsRenameCmd(opts),
		newAccountsUseCmd(opts),
	)
	return cmd
}

func newAccountsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.client()
			var accounts []httphandler.AccountResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/accounts", nil, &accounts); err != nil {
				return err
			}
			var active httphandler.ActiveAccountResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/accounts/active", nil, &active); err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), accounts)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tPROVIDER\tNAME\tSCOPE")
			for _, a := range accounts {
				marker := ""
				if active.AccountID != nil && *active.AccountID == a.ID {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, a.ID, a.Provider, a.DisplayName, a.ScopeType)
			}
			return tw.Flush()
		},
	}
}

func newAccountsAddCmd(opts *options) *cobra.Command {
	var (
		provider  string
		tokenType string
	)
	cmd := &cobra.Command{
		Use:   "add <token>",
		Short: "Validate a token and add its account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httphandler.AddAccountRequest{Provider: provider, Token: args[0], TokenType: tokenType}
			var acct httphandler.AccountResponse
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/api/v1/accounts", req, &acct); err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), acct)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s account %s (%s)\n", acct.Provider, acct.DisplayName, acct.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "vercel", "provider: vercel or railway")
	cmd.Flags().StringVar(&tokenType, "token-type", "", "railway token type: workspace or project")
	return cmd
}

func newAccountsRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Remove an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().do(cmd.Context(), http.MethodDelete, "/api/v1/accounts/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newAccountsRenameCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <account-id> <name>",
		Short: "Set an account's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httphandler.RenameRequest{Name: args[1]}
			return opts.client().do(cmd.Context(), http.MethodPatch, "/api/v1/accounts/"+url.PathEscape(args[0]), req, nil)
		},
	}
}

func newAccountsUseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "use <account-id>",
		Short: "Make an account the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httphandler.SetActiveRequest{AccountID: args[0]}
			if err := opts.client().do(cmd.Context(), http.MethodPut, "/api/v1/accounts/active", req, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active account is now %s\n", args[0])
			return nil
		},
	}
}
