package main

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anderbubble/prrte/internal/config"
	"github.com/anderbubble/prrte/pkg/mapper"
)

type mapArgs struct {
	configPath string
	jobID      uint32
	jobIDSet   bool
}

func mapCommand() *cobra.Command {
	var args mapArgs
	var jobIDFlag uint32
	cmd := &cobra.Command{
		Use:   "map",
		Short: "run the round-robin mapper against a configured cluster and print the resulting assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args.jobID = jobIDFlag
			args.jobIDSet = cmd.Flags().Changed("job-id")
			return runMap(cmd.Context(), args)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&args.configPath, "config", "", "path to a YAML cluster/policy/app description (required)")
	flags.Uint32Var(&jobIDFlag, "job-id", 0, "job id to map under (default: derived from a fresh uuid.New())")
	return cmd
}

func runMap(ctx context.Context, args mapArgs) error {
	if args.configPath == "" {
		return fmt.Errorf("map: --config is required")
	}
	cfg, err := config.Load(args.configPath)
	if err != nil {
		return err
	}
	policy, err := cfg.MappingPolicy()
	if err != nil {
		return err
	}
	nodes := cfg.BuildNodes()
	apps := cfg.AppContexts()

	jobID := args.jobID
	if !args.jobIDSet {
		jobID = jobIDFromUUID(uuid.New())
	}

	job := mapper.NewJob(jobID, policy)
	mapErr := mapper.MapJob(job, apps, nodes)

	printMapping(job, nodes)

	return mapErr
}

// jobIDFromUUID truncates a fresh google/uuid value into the wire jobId
// field's uint32 width, the way a real launcher mints a job id when none
// is supplied externally.
func jobIDFromUUID(id uuid.UUID) uint32 {
	b := id[:]
	return binary.BigEndian.Uint32(b[:4])
}

func printMapping(job *mapper.Job, nodes []*mapper.Node) {
	fmt.Printf("job %d: %d node(s) used, oversubscribed=%v\n", job.JobID, job.Map.NumNodes, job.Oversubscribed)
	for _, n := range nodes {
		if n.NumProcs == 0 {
			continue
		}
		fmt.Printf("  node %-12s slots=%-4d procs=%-4d oversubscribed=%v\n",
			n.Name, n.Slots, n.NumProcs, n.IsOversubscribed())
	}
	for _, p := range job.Map.Procs {
		fmt.Printf("    proc app=%d vpid=%-6d node=%s\n", p.AppIdx, p.VPID, p.Node.Name)
	}
}
