package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/metakit/internal/metatrain"
)

func (a *app) metaStepCmd() *cli.Command {
	return &cli.Command{
		Name:  "meta-step",
		Usage: "Run Feature-Critic meta-updates on synthetic data",
		Description: `Each epoch takes an inner step on a training batch, evaluates the
hot-swapped classifier on a held-out batch, checks the same step through a
functional parameter override, and applies SGD to the classifier and critic.
One record per epoch is printed and appended to the run log.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Identifier written with every record (default: random UUID)",
			},
			&cli.IntFlag{
				Name:  "epochs",
				Usage: "Number of meta-updates (default: training.epochs)",
			},
			&cli.IntFlag{
				Name:  "classes",
				Usage: "Number of classes (default: training.classes)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Samples per batch (default: training.batch_size)",
			},
			&cli.IntFlag{
				Name:  "critic-hidden",
				Usage: "Hidden width of the critic (default: training.critic_hidden)",
			},
			&cli.FloatFlag{
				Name:  "init-lr",
				Usage: "Initial learning rate (default: training.init_lr)",
			},
			&cli.FloatFlag{
				Name:  "meta-lr",
				Usage: "Learning rate of the hot-swapped step (default: training.meta_lr)",
			},
			&cli.IntFlag{
				Name:  "seed",
				Value: 1,
				Usage: "Seed for the synthetic batches",
			},
			&cli.StringFlag{
				Name:  "run-log",
				Usage: "Append records to this file (default: run_log)",
			},
			&cli.BoolFlag{
				Name:  "extractor",
				Usage: "Feed 72x72 images through a ResNet-18 feature extractor",
			},
			&cli.StringFlag{
				Name:  "weights",
				Usage: "Safetensors weights for the feature extractor",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t := a.cfg.Training
			opts := metatrain.Options{
				RunID:        stringOr(cmd, "run-id", uuid.NewString()),
				Epochs:       intOr(cmd, "epochs", t.Epochs),
				Classes:      intOr(cmd, "classes", t.Classes),
				BatchSize:    intOr(cmd, "batch-size", t.BatchSize),
				CriticHidden: intOr(cmd, "critic-hidden", t.CriticHidden),
				InitLR:       floatOr(cmd, "init-lr", t.InitLR),
				MetaLR:       floatOr(cmd, "meta-lr", t.MetaLR),
				Seed:         uint64(cmd.Int("seed")), //nolint:gosec // G115: seed bits only
				RunLog:       stringOr(cmd, "run-log", a.cfg.RunLog),
				Extractor:    cmd.Bool("extractor"),
				Weights:      cmd.String("weights"),
			}
			slog.Info("starting meta-updates", "run", opts.RunID, "epochs", opts.Epochs)

			records, err := metatrain.Run(ctx, opts)
			w := cmd.Root().Writer
			for _, rec := range records {
				if _, werr := fmt.Fprintln(w, rec); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}
