package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/perstore/internal/ir"
	"github.com/roach88/perstore/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Params []string
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [rql]",
		Short: "Print the records matching an RQL query",
		Long: `Print the records matching an RQL query, in key order.

An empty query matches every record. limit(count,start) selects a window
of the matches; iteration stops as soon as the window is filled.

Examples:
  perstore query 'id>0&limit(2)' --db ./data
  perstore query 'status=$1&limit(10,20)' --param active --db ./data
  perstore query 'in(id,(1,2,3))' --format json --db ./data`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := ""
			if len(args) == 1 {
				q = args[0]
			}
			return runQuery(opts, q, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "value for $1, $2, ... (JSON scalar or bare word, repeatable)")

	return cmd
}

func runQuery(opts *QueryOptions, q string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	params := make([]ir.IRValue, len(opts.Params))
	for i, raw := range opts.Params {
		params[i] = parseIDFlag(raw)
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeSession(s)

	res, err := s.store.Query(cmd.Context(), q, store.QueryOptions{Parameters: params})
	if err != nil {
		return f.Fail(err)
	}
	for _, w := range res.Warnings() {
		f.VerboseLog("warning: %s", w)
	}

	recs, err := res.All(cmd.Context())
	if err != nil {
		return f.Fail(err)
	}
	return f.Records(recs)
}
