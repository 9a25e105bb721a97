package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ai-review-be/internal/bootstrap"
	"ai-review-be/internal/cli/render"
	"ai-review-be/internal/config"
	"ai-review-be/internal/dto"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/review/progress"

	"github.com/spf13/cobra"
)

// RunOptions are the flags of the run command.
type RunOptions struct {
	DocPath    string
	OutPath    string
	Panel      bool
	Steering   string
	Focus      []string
	NoEvidence bool
	Depth      string
	Verbose    bool
}

func RunCmd() *cobra.Command {
	var opts RunOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Review a document and print the findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.DocPath, "doc", "", "Path to the document JSON")
	cmd.Flags().StringVar(&opts.OutPath, "out", "", "Write the result JSON here instead of stdout")
	cmd.Flags().BoolVar(&opts.Panel, "panel", false, "Run the adversary as a multi-backend panel")
	cmd.Flags().StringVar(&opts.Steering, "steering", "", "Free-text steering memo")
	cmd.Flags().StringSliceVar(&opts.Focus, "focus", nil, "Focus hints, repeatable")
	cmd.Flags().BoolVar(&opts.NoEvidence, "no-evidence", false, "Skip the evidence pipeline")
	cmd.Flags().StringVar(&opts.Depth, "depth", string(entity.DepthStandard), "quick, standard or deep")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print chunk and finding events")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

// ReadDocument loads a document in the request body format.
func ReadDocument(path string) (*entity.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req dto.DocumentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return req.ToDocument()
}

func (o RunOptions) reviewConfig() (entity.ReviewConfig, error) {
	req := &dto.ReviewConfigRequest{
		PanelMode:    o.Panel,
		FocusChips:   o.Focus,
		SteeringMemo: o.Steering,
		Depth:        o.Depth,
	}
	switch entity.Depth(o.Depth) {
	case entity.DepthQuick, entity.DepthStandard, entity.DepthDeep:
	default:
		return entity.ReviewConfig{}, fmt.Errorf("unknown depth %q", o.Depth)
	}
	if o.NoEvidence {
		off := false
		req.EnableDomain = &off
	}
	return req.ToConfig(), nil
}

func runReview(cmd *cobra.Command, opts RunOptions) error {
	doc, err := ReadDocument(opts.DocPath)
	if err != nil {
		return err
	}
	reviewCfg, err := opts.reviewConfig()
	if err != nil {
		return err
	}

	cfg := config.Load()
	log := logger.NewIsolatedLogger(cfg.App.LogFilePath)
	engine, err := bootstrap.NewReviewEngine(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := render.NewPrinter(cmd.ErrOrStderr(), opts.Verbose)
	job := entity.NewReviewJob(doc.ID(), reviewCfg)
	em := progress.NewEmitter(job.ID(), log, printer.Sink())
	engine.Run(ctx, job, doc, em)
	em.Close()

	snap := job.Snapshot()
	if err := writeResult(opts.OutPath, cmd, dto.NewReviewResultResponse(snap)); err != nil {
		return err
	}
	if snap.Status == entity.JobFailed {
		return fmt.Errorf("review failed: %s", snap.Error)
	}
	return nil
}

func writeResult(path string, cmd *cobra.Command, res *dto.ReviewResultResponse) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

