package main

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/repository/csvfile"
	complianceService "github.com/cmlabs-hris/compliance-engine/internal/service/compliance"
	"github.com/spf13/cobra"
)

type engineOptions struct {
	dataDir      string
	snapshotDir  string
	asOf         string
	minGroupSize int
	horizonDays  int
	retain       int
}

func (o *engineOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.dataDir, "data-dir", "", "Directory with org_nodes.csv, employees.csv, presence.csv, leave.csv, holidays.csv")
	cmd.Flags().StringVar(&o.snapshotDir, "snapshot-dir", "", "Directory to persist and load snapshots")
	cmd.Flags().StringVar(&o.asOf, "as-of", "", "Recompute date YYYY-MM-DD; the horizon ends on this day (default today)")
	cmd.Flags().IntVar(&o.minGroupSize, "min-group-size", 6, "Smallest group whose figures may be shown")
	cmd.Flags().IntVar(&o.horizonDays, "horizon-days", complianceService.DefaultHorizonDays, "Days of history each snapshot covers")
	cmd.Flags().IntVar(&o.retain, "retain", 3, "Snapshot versions to keep")
}

// engine wires a recomputer over CSV input. The store keeps snapshots in
// memory; snapshotDir, when set, also persists them.
func (o *engineOptions) engine() (*complianceService.Recomputer, *complianceService.Store, error) {
	var snapshots compliance.SnapshotRepository
	storeOpts := []complianceService.StoreOption{complianceService.WithHistory(o.retain)}
	if o.snapshotDir != "" {
		repo, err := csvfile.NewSnapshotRepository(o.snapshotDir)
		if err != nil {
			return nil, nil, err
		}
		snapshots = repo
		storeOpts = append(storeOpts, complianceService.WithFallback(repo))
	}
	store := complianceService.NewStore(storeOpts...)

	var source compliance.SourceRepository
	if o.dataDir != "" {
		source = csvfile.NewSourceRepository(o.dataDir)
	}
	r := complianceService.NewRecomputer(source, snapshots, store, nil, complianceService.RecomputeConfig{
		HorizonDays:  o.horizonDays,
		MinGroupSize: o.minGroupSize,
		Retain:       o.retain,
	})

	if o.asOf != "" {
		d, err := calendar.Parse(o.asOf)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --as-of: %w", err)
		}
		at := d.Time().Add(2 * time.Hour)
		r.SetClock(func() time.Time { return at })
	}
	return r, store, nil
}

func newRecomputeCmd() *cobra.Command {
	var opts engineOptions

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Build a snapshot from a CSV directory and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := opts.engine()
			if err != nil {
				return err
			}
			summary, err := r.Recompute(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	opts.bind(cmd)
	_ = cmd.MarkFlagRequired("data-dir")
	return cmd
}
