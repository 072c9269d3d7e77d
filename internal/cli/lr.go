package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"github.com/born-ml/metakit/internal/optim"
)

func (a *app) lrCmd() *cli.Command {
	return &cli.Command{
		Name:  "lr",
		Usage: "Print the step learning-rate schedule",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:  "init",
				Usage: "Initial learning rate (default: training.init_lr)",
			},
			&cli.IntFlag{
				Name:  "epochs",
				Usage: "Number of epochs to print (default: training.epochs)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			initLR := floatOr(cmd, "init", a.cfg.Training.InitLR)
			epochs := intOr(cmd, "epochs", a.cfg.Training.Epochs)
			if epochs < 1 {
				return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "epochs must be at least 1")
			}

			w := cmd.Root().Writer
			for epoch := 1; epoch <= epochs; epoch++ {
				if _, err := fmt.Fprintf(w, "epoch=%d lr=%.6g\n", epoch, optim.LearningRate(initLR, epoch)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
