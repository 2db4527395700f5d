package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/anderbubble/prrte/pkg/oob"
	"github.com/anderbubble/prrte/pkg/procid"
	"github.com/anderbubble/prrte/pkg/reactor"
)

// incomingJobID tags ProcIds this daemon mints for passively-accepted
// connections whose real identity would normally be learned from the OOB
// handshake (out of scope here, see identityHandshaker). It is kept
// distinct from procid.Invalid so an incoming peer is never mistaken for
// the sentinel.
const incomingJobID = 0xfffffffe

type serveArgs struct {
	selfJob    uint32
	selfVPID   uint32
	listen     string
	contacts   string
	sweepEvery time.Duration
}

func serveCommand() *cobra.Command {
	var args serveArgs
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the out-of-band transport against a configured peer set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), args)
		},
	}
	flags := cmd.Flags()
	flags.Uint32Var(&args.selfJob, "self-job", 0, "this process's own job id")
	flags.Uint32Var(&args.selfVPID, "self-vpid", 0, "this process's own vpid")
	flags.StringVar(&args.listen, "listen", "0.0.0.0:0", "address to accept inbound peer connections on")
	flags.StringVar(&args.contacts, "contacts", "", "path to a YAML peer address book (required)")
	flags.DurationVar(&args.sweepEvery, "sweep-interval", 30*time.Second, "how often to drop idle closed peer entries")
	return cmd
}

func runServe(ctx context.Context, args serveArgs) error {
	if args.contacts == "" {
		return fmt.Errorf("serve: --contacts is required")
	}
	addrs, err := loadContacts(args.contacts)
	if err != nil {
		return err
	}

	self := procid.ProcId{JobID: args.selfJob, VPID: args.selfVPID}

	loop, err := reactor.New()
	if err != nil {
		return fmt.Errorf("serve: start reactor: %w", err)
	}
	defer loop.Close()

	deliverer := &logDeliverer{}
	dialer := oob.NewRawDialer(func(name procid.ProcId) (string, error) {
		addr, ok := addrs[name]
		if !ok {
			return "", fmt.Errorf("serve: no contact address for %s", name)
		}
		return addr, nil
	})
	table := oob.NewTable(self, deliverer, dialer, identityHandshaker{}, loop)
	deliverer.table = table

	listener, err := oob.ListenRaw(args.listen)
	if err != nil {
		return fmt.Errorf("serve: listen on %s: %w", args.listen, err)
	}
	defer listener.Close()

	var nextIncoming uint32
	if err := loop.Register(listener.Fd(), false, true, func(writable, readable bool) {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if err == oob.ErrAgain || err == oob.ErrWouldBlock {
					return
				}
				dlog.Errorf(ctx, "serve: accept: %v", err)
				return
			}
			name := procid.ProcId{JobID: incomingJobID, VPID: nextIncoming}
			nextIncoming++
			dlog.Infof(ctx, "serve: accepted connection, provisionally named %s", name)
			table.RegisterAccepted(ctx, name, conn)
		}
	}); err != nil {
		return fmt.Errorf("serve: register listener: %w", err)
	}

	dlog.Infof(ctx, "serve: self=%s listening on %s, %d known peer(s)", self, args.listen, len(addrs))

	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		EnableSignalHandling: true,
		SoftShutdownTimeout:  2 * time.Second,
		ShutdownOnNonError:   true,
	})
	grp.Go("reactor", func(ctx context.Context) error {
		return loop.Run(ctx)
	})
	grp.Go("idle-sweep", func(ctx context.Context) error {
		ticker := time.NewTicker(args.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := table.SweepClosed(); n > 0 {
					dlog.Infof(ctx, "serve: idle sweep dropped %d closed peer entr(ies)", n)
				}
			}
		}
	})

	runErr := grp.Wait()
	return multierror.Append(runErr, table.Shutdown(ctx)).ErrorOrNil()
}
