package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/deploybar/internal/adapter/driving/http"
)

func newTrayCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Show or switch the tray indicator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var state httphandler.TrayResponse
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/tray", nil, &state); err != nil {
				return err
			}
			return printTray(cmd, opts, state)
		},
	}

	var project string
	building := &cobra.Command{
		Use:   "building",
		Short: "Show the deploying indicator and start polling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setTray(cmd, opts, httphandler.TrayRequest{Building: true, Project: project})
		},
	}
	building.Flags().StringVar(&project, "project", "", "project name shown in the tooltip")

	normal := &cobra.Command{
		Use:   "normal",
		Short: "Show the normal indicator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setTray(cmd, opts, httphandler.TrayRequest{})
		},
	}

	cmd.AddCommand(building, normal)
	return cmd
}

func setTray(cmd *cobra.Command, opts *options, req httphandler.TrayRequest) error {
	var state httphandler.TrayResponse
	if err := opts.client().do(cmd.Context(), http.MethodPut, "/api/v1/tray", req, &state); err != nil {
		return err
	}
	return printTray(cmd, opts, state)
}

func printTray(cmd *cobra.Command, opts *options, state httphandler.TrayResponse) error {
	if opts.jsonOutput {
		return printJSON(cmd.OutOrStdout(), state)
	}
	if state.Building {
		fmt.Fprintf(cmd.OutOrStdout(), "building: %s\n", state.Tooltip)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "normal: %s\n", state.Tooltip)
	return nil
}
