package cli

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tile-splitter/internal/areas"
	"tile-splitter/internal/ingest"
	"tile-splitter/internal/logger"
	"tile-splitter/internal/pipeline"
	"tile-splitter/internal/plancache"
)

func checkInputs(args []string) error {
	for _, p := range args {
		if !ingest.Supported(p) {
			return errors.Errorf("unsupported input %s (want .osm, .osm.gz, .osm.zst or .pbf)", p)
		}
	}
	return nil
}

func newSplitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "split [input files...]",
		Short: "Compute tiles from the node density of the input files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkInputs(args); err != nil {
				return err
			}
			p, err := a.newPipeline(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := p.Run(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d tiles (%s, %s)\n", plan.RunID, plan.Areas.Len(), plan.Source, plan.Outcome)
			for _, f := range plan.Files {
				fmt.Fprintln(out, f)
			}
			return nil
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	var listPath string
	cmd := &cobra.Command{
		Use:   "verify [input files...]",
		Short: "Route every node to its tiles and report the per-tile counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkInputs(args); err != nil {
				return err
			}
			if listPath == "" {
				listPath = filepath.Join(a.cfg.OutputDir, pipeline.AreasFile)
			}
			list, err := areas.Read(listPath)
			if err != nil {
				return err
			}
			p, err := pipeline.New(a.cfg, nil, nil)
			if err != nil {
				return err
			}
			rep, err := p.Verify(cmd.Context(), list, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range list.Areas() {
				fmt.Fprintf(out, "%08d %d\n", t.MapID, rep.Count(t.MapID))
			}
			fmt.Fprintf(out, "passes=%d nodes=%d routed=%d unrouted=%d\n", rep.Passes, rep.Nodes, rep.Routed, rep.Unrouted)
			return nil
		},
	}
	cmd.Flags().StringVar(&listPath, "areas", "", "area list to verify (default <output-dir>/areas.list)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		from   string
		runID  string
		latest bool
	)
	cmd := &cobra.Command{
		Use:   "export [input files...]",
		Short: "Write an area list from a file or a stored run to the output formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			l := logger.L()
			var (
				list *areas.List
				err  error
			)
			switch {
			case from != "":
				list, err = areas.Read(from)
			case runID != "" || latest:
				list, err = a.loadStored(cmd, runID, args)
			default:
				err = errors.New("one of --from, --run or --latest is required")
			}
			if err != nil {
				return err
			}
			p, err := pipeline.New(a.cfg, nil, nil)
			if err != nil {
				return err
			}
			files, err := p.WriteOutputs(list)
			if err != nil {
				return err
			}
			l.Info("export_done", "tiles", list.Len(), "files", len(files))
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "areas.list or KML file")
	cmd.Flags().StringVar(&runID, "run", "", "id of a stored run")
	cmd.Flags().BoolVar(&latest, "latest", false, "latest stored run for the given input files")
	return cmd
}

// loadStored：按运行编号或输入文件指纹从数据库读取瓦片列表
// 约束：参数先校验，校验失败时不连接数据库
func (a *app) loadStored(cmd *cobra.Command, runID string, inputs []string) (*areas.List, error) {
	ctx := cmd.Context()
	if runID != "" {
		id, err := uuid.Parse(runID)
		if err != nil {
			return nil, errors.Wrapf(err, "run id %q", runID)
		}
		st, err := a.openStore()
		if err != nil {
			return nil, err
		}
		return st.LoadAreas(ctx, id)
	}
	if len(inputs) == 0 {
		return nil, pipeline.ErrNoInputs
	}
	fp, err := plancache.InputFingerprint(inputs)
	if err != nil {
		return nil, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	run, err := st.LatestRun(ctx, fp)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errors.Errorf("no stored run for %d input files", len(inputs))
	}
	logger.L().Info("export_latest_run", "run", run.ID.String(), "created", run.CreatedAt, "tiles", run.Tiles)
	return st.LoadAreas(ctx, run.ID)
}
