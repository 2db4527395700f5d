// Command prrted is the demo CLI composition root for this module: it
// wires the out-of-band transport and the round-robin mapper into two
// cobra subcommands, following the teacher's cmd/telepresence/main.go
// shape (a bare root command with SilenceErrors/SilenceUsage, subcommands
// added via AddCommand, errors reported by main after ExecuteContext
// returns).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anderbubble/prrte/internal/logging"
)

func main() {
	ctx := context.Background()
	ctx = logging.Setup(ctx)

	cmd := &cobra.Command{
		Use:           "prrted",
		Short:         "out-of-band transport and round-robin mapper demo daemon",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(serveCommand())
	cmd.AddCommand(mapCommand())

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: error: %v\n", cmd.CommandPath(), err)
		os.Exit(1)
	}
}
