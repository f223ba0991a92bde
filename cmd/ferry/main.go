// Command ferry migrates tables from a hosted spreadsheet-database into a relational target.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/stokaro/ferry/cmd/migrate"
	"github.com/stokaro/ferry/cmd/plan"
	"github.com/stokaro/ferry/cmd/verify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ferry",
		Short:         "Migrate Airtable bases into Xata or SQL databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(plan.NewPlanCommand())
	root.AddCommand(migrate.NewMigrateCommand())
	root.AddCommand(verify.NewVerifyCommand())
	return root
}
