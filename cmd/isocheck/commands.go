package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/isocheck"
	"pkt.systems/isocheck/api"
	"pkt.systems/isocheck/internal/archive"
	"pkt.systems/isocheck/internal/catalog"
	"pkt.systems/isocheck/internal/correlation"
	"pkt.systems/isocheck/internal/version"
)

func (c *cli) withCID(ctx context.Context) context.Context {
	if cid := c.v.GetString("cid"); cid != "" {
		return correlation.With(ctx, cid)
	}
	return ctx
}

func newOpsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List scenarios and their operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type scenario struct {
				Name string   `json:"name" yaml:"name"`
				Init string   `json:"init" yaml:"init"`
				Ops  []string `json:"ops" yaml:"ops"`
			}
			var out []scenario
			for _, s := range catalog.Scenarios() {
				out = append(out, scenario{Name: s.Name, Init: s.Init, Ops: s.Ops})
			}
			return c.print(cmd.OutOrStdout(), out)
		},
	}
}

func newNukeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "nuke",
		Short: "Delete all data and reinstall the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, done, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			if err := drv.NukeDatabase(c.withCID(cmd.Context())); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]any{"backend": drv.Name(), "nuked": true})
		},
	}
}

func newRunCommand(c *cli) *cobra.Command {
	var paramsFile string
	cmd := &cobra.Command{
		Use:   "run <operation> [key=value ...]",
		Short: "Run one operation and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := collectParams(paramsFile, args[1:])
			if err != nil {
				return err
			}
			drv, done, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			res, err := drv.Run(c.withCID(cmd.Context()), args[0], params)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&paramsFile, "params", "p", "", "YAML or JSON file with operation parameters")
	return cmd
}

// raceReport is the outcome of one racing call. Rejections are reported, not
// returned as command errors.
type raceReport struct {
	Op      string     `json:"op" yaml:"op"`
	Result  api.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Outcome string     `json:"outcome" yaml:"outcome"`
	Error   string     `json:"error,omitempty" yaml:"error,omitempty"`
	Elapsed string     `json:"elapsed" yaml:"elapsed"`
}

func newRaceCommand(c *cli) *cobra.Command {
	var aArgs, bArgs []string
	var count int
	cmd := &cobra.Command{
		Use:   "race <operation-a> <operation-b>",
		Short: "Run two operations concurrently, each in its own transactions",
		Long: `Run two operations concurrently. Each side is invoked --count times in
parallel; every invocation uses its own transaction. Commit and query
rejections are part of the report rather than a command failure.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be >= 1")
			}
			aParams, err := parseParams(aArgs)
			if err != nil {
				return err
			}
			bParams, err := parseParams(bArgs)
			if err != nil {
				return err
			}
			drv, done, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			reports, err := race(c.withCID(cmd.Context()), drv, count, raceSide{args[0], aParams}, raceSide{args[1], bParams})
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().StringSliceVar(&aArgs, "a", nil, "key=value parameters for operation a")
	cmd.Flags().StringSliceVar(&bArgs, "b", nil, "key=value parameters for operation b")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "concurrent invocations per operation")
	return cmd
}

type raceSide struct {
	op     string
	params api.Params
}

func race(ctx context.Context, drv *isocheck.Driver, count int, sides ...raceSide) ([]raceReport, error) {
	reports := make([]raceReport, len(sides)*count)
	var g errgroup.Group
	for i, side := range sides {
		for n := 0; n < count; n++ {
			slot := i*count + n
			g.Go(func() error {
				begin := time.Now()
				res, err := drv.Run(ctx, side.op, side.params)
				rep := raceReport{Op: side.op, Result: res, Outcome: api.KindOf(err), Elapsed: time.Since(begin).Round(time.Millisecond).String()}
				if err != nil {
					rep.Error = err.Error()
				}
				reports[slot] = rep
				if errors.Is(err, api.ErrParam) || errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func newArchiveCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived call records",
	}
	list := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List archived records, optionally under a <backend>/<operation>/ prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := c.v.GetString("archive")
			if url == "" {
				return fmt.Errorf("--archive is required")
			}
			store, err := archive.Open(url)
			if err != nil {
				return err
			}
			defer store.Close()
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			records, err := archive.Load(cmd.Context(), store, prefix)
			if err != nil {
				return err
			}
			type row struct {
				archive.Record `yaml:",inline"`
				Age            string `json:"age" yaml:"age"`
			}
			out := make([]row, 0, len(records))
			for _, rec := range records {
				out = append(out, row{Record: rec, Age: humanize.Time(rec.StartedAt)})
			}
			return c.print(cmd.OutOrStdout(), out)
		},
	}
	cmd.AddCommand(list)
	return cmd
}

func newVersionCommand(c *cli) *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the isocheck version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Current())
				return err
			}
			return c.print(cmd.OutOrStdout(), version.Get())
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version string")
	return cmd
}
