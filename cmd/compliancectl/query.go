package main

import (
	"errors"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	complianceService "github.com/cmlabs-hris/compliance-engine/internal/service/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/service/scope"
	"github.com/spf13/cobra"
)

type queryOptions struct {
	engineOptions
	principal string
	tier      string
	home      string
	req       compliance.QueryRequest
	maxWindow int
	timeout   time.Duration
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a compliance query as a given principal and print the response",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.dataDir == "" && opts.snapshotDir == "" {
				return errors.New("one of --data-dir or --snapshot-dir is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, store, err := opts.engine()
			if err != nil {
				return err
			}
			if err := r.Restore(ctx); err != nil {
				return err
			}
			if store.Current() == nil && opts.dataDir != "" {
				if _, err := r.Recompute(ctx); err != nil {
					return err
				}
			}

			svc := complianceService.NewQueryService(store, scope.NewResolver(), nil, complianceService.QueryConfig{
				MaxWindowDays: opts.maxWindow,
				Timeout:       opts.timeout,
				MinGroupSize:  opts.minGroupSize,
			})
			req := opts.req
			req.Principal = opts.principal
			req.Tier = opts.tier
			req.HomeNode = opts.home

			resp, err := svc.Query(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	opts.bind(cmd)

	f := cmd.Flags()
	f.StringVar(&opts.principal, "principal", "operator", "Principal ID recorded on the scope grant")
	f.StringVar(&opts.tier, "tier", "", "Role tier of the principal (team, department or organization)")
	f.StringVar(&opts.home, "home", "", "Org node the principal is attached to")
	f.StringVar(&opts.req.View, "view", "", "Lower tier view to render (defaults to the principal's tier)")
	f.StringVar(&opts.req.Dimension, "dimension", "", "Grouping dimension: team, leader, region, country or location")
	f.StringVar(&opts.req.From, "from", "", "First day of the window, YYYY-MM-DD")
	f.StringVar(&opts.req.To, "to", "", "Last day of the window, YYYY-MM-DD")
	f.StringVar(&opts.req.Granularity, "granularity", "", "Trend granularity: day, week or month (default week)")
	f.StringVar(&opts.req.DrillDown, "drill-down", "", "Org node to narrow the query to")
	f.StringVar(&opts.req.SnapshotVersion, "version", "", "Pin the query to a retained snapshot version")
	f.IntVar(&opts.maxWindow, "max-window-days", 366, "Longest window a query may span")
	f.DurationVar(&opts.timeout, "timeout", 2*time.Second, "How long to wait for the first snapshot")

	_ = cmd.MarkFlagRequired("tier")
	_ = cmd.MarkFlagRequired("dimension")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
