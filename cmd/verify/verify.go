package verify

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/ferry/cmd/internal/cli"
)

var verifyFlags = cli.CommonFlags()

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check which target tables still have unresolved links",
		Long: `Check every target table with links for rows whose staging value was never
turned into a link. The target is not modified. The command fails when a table has
unresolved links.`,
		Args: cobra.NoArgs,
		RunE: verifyCommand,
	}
	cobraflags.RegisterMap(cmd, verifyFlags)
	return cmd
}

func verifyCommand(cmd *cobra.Command, _ []string) error {
	logger, err := cli.NewLogger(cmd.ErrOrStderr(), verifyFlags[cli.LogFormatFlag].GetString(), verifyFlags[cli.LogLevelFlag].GetString())
	if err != nil {
		return err
	}
	f, m, opts, err := cli.Load(verifyFlags[cli.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	stores, err := cli.OpenStores(f, opts, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	mig, err := cli.NewMigrator(f, m, opts, stores, logger)
	if err != nil {
		return err
	}
	res, err := mig.Verify(cmd.Context())
	if err != nil {
		return err
	}

	report := mig.NewVerifyReport(res)
	if err := cli.Write(cmd.OutOrStdout(), verifyFlags[cli.FormatFlag].GetString(), report, report.Write); err != nil {
		return err
	}
	if n := len(res.ErrorTables); n > 0 {
		return fmt.Errorf("links left unresolved in %d tables", n)
	}
	return nil
}
