package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/metakit/internal/device"
)

func (a *app) gpusCmd() *cli.Command {
	return &cli.Command{
		Name:  "gpus",
		Usage: "Select idle GPUs for this process",
		Description: `Queries nvidia-smi and prints the first N devices whose utilization and
memory usage are both below the configured limits.

With --world-size greater than 1, a local process group of that size is
started; rank 0 selects N devices per rank and broadcasts the choice, and
every rank's share is printed.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "n",
				Usage: "Devices per process (default: device.per_process)",
			},
			&cli.FloatFlag{
				Name:  "max-utilization",
				Usage: "Exclusive utilization limit in [0, 1] (default: device.max_utilization)",
			},
			&cli.FloatFlag{
				Name:  "max-memory",
				Usage: "Exclusive memory usage limit in [0, 1] (default: device.max_memory_usage)",
			},
			&cli.IntFlag{
				Name:  "world-size",
				Value: 1,
				Usage: "Number of local ranks sharing the devices",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			n := intOr(cmd, "n", a.cfg.Device.PerProcess)
			limits := a.cfg.Device.Limits()
			limits.MaxUtilization = floatOr(cmd, "max-utilization", limits.MaxUtilization)
			limits.MaxMemoryUsage = floatOr(cmd, "max-memory", limits.MaxMemoryUsage)
			w := cmd.Root().Writer

			world := cmd.Int("world-size")
			if world <= 1 {
				sel := &device.Selector{Enumerator: a.deviceEnumerator(), Limits: &limits}
				ids, err := sel.Select(ctx, n)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, formatIDs(ids))
				return err
			}

			perRank := make([][]int, world)
			err := device.RunLocal(ctx, world, func(ctx context.Context, member device.Collective) error {
				sel := &device.Selector{
					Enumerator:  a.deviceEnumerator(),
					Limits:      &limits,
					Distributed: member,
				}
				ids, err := sel.Select(ctx, n)
				if err != nil {
					return err
				}
				perRank[member.Rank()] = ids
				return nil
			})
			if err != nil {
				return err
			}
			for rank, ids := range perRank {
				if _, err := fmt.Fprintf(w, "rank %d: %s\n", rank, formatIDs(ids)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// formatIDs renders ids in CUDA_VISIBLE_DEVICES form.
func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
