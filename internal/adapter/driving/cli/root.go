// Package cli implements deploybarctl, a command-line client for the
// deploybar daemon's HTTP API.
package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// DefaultAddr is used when neither --addr nor DEPLOYBAR_LISTEN_ADDR is set.
const DefaultAddr = "127.0.0.1:7878"

type options struct {
	addr       string
	jsonOutput bool
	httpClient *http.Client
}

func (o *options) client() *apiClient {
	return newAPIClient(o.addr, o.httpClient)
}

// NewRootCommand builds the deploybarctl command tree. httpClient may be nil.
func NewRootCommand(httpClient *http.Client) *cobra.Command {
	opts := &options{addr: DefaultAddr, httpClient: httpClient}
	if v, ok := os.LookupEnv("DEPLOYBAR_LISTEN_ADDR"); ok && v != "" {
		opts.addr = v
	}

	root := &cobra.Command{
		Use:           "deploybarctl",
		Short:         "Control a running deploybar daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", opts.addr, "daemon address (host:port or URL)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newAccountsCmd(opts),
		newDeploymentsCmd(opts),
		newProjectsCmd(opts),
		newTrayCmd(opts),
		newLogsCmd(opts),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
