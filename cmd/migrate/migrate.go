package migrate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/ferry/cmd/internal/cli"
	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/core/migspec"
)

const (
	targetFlag = "target"
	dsnFlag    = "dsn"
	skipFlag   = "skip"
)

var migrateFlags = func() map[string]cobraflags.Flag {
	flags := cli.CommonFlags()
	flags[targetFlag] = &cobraflags.StringFlag{
		Name:  targetFlag,
		Value: "",
		Usage: "Override the target service (xata, postgres, mysql, mariadb, memory)",
	}
	flags[dsnFlag] = &cobraflags.StringFlag{
		Name:  dsnFlag,
		Value: "",
		Usage: "Override the target connection URL; the service follows the URL scheme unless --target is set",
	}
	flags[skipFlag] = &cobraflags.StringFlag{
		Name:  skipFlag,
		Value: "",
		Usage: "Comma-separated phases to skip (createTargetDatabase, migrateRecords, resolveLinks, checkAndClean)",
	}
	return flags
}()

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the source tables into the target",
		Long: `Run a migration in four phases: create the target schema, copy the records,
resolve the links between them, then verify the links and clean up the schema.

Phases can be skipped in the migration file or with --skip, so an interrupted run can
be resumed at the phase that failed.

Examples:
  ferry migrate --config migration.yaml
  ferry migrate --config migration.yaml --target memory
  ferry migrate --config migration.yaml --dsn postgres://localhost/target
  ferry migrate --config migration.yaml --skip createTargetDatabase,migrateRecords`,
		Args: cobra.NoArgs,
		RunE: migrateCommand,
	}
	cobraflags.RegisterMap(cmd, migrateFlags)
	return cmd
}

func migrateCommand(cmd *cobra.Command, _ []string) error {
	logger, err := cli.NewLogger(cmd.ErrOrStderr(), migrateFlags[cli.LogFormatFlag].GetString(), migrateFlags[cli.LogLevelFlag].GetString())
	if err != nil {
		return err
	}
	f, m, opts, err := cli.Load(migrateFlags[cli.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	if err := overrideTarget(&f.Target, migrateFlags[targetFlag].GetString(), migrateFlags[dsnFlag].GetString()); err != nil {
		return err
	}
	if err := overrideSkip(&m.Skip, migrateFlags[skipFlag].GetString()); err != nil {
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

	report, runErr := mig.Run(cmd.Context())
	if report != nil {
		if err := cli.Write(cmd.OutOrStdout(), migrateFlags[cli.FormatFlag].GetString(), report, report.Write); err != nil {
			return err
		}
	}
	return runErr
}

func overrideTarget(target *config.TargetConfig, service, dsn string) error {
	if dsn != "" {
		target.DSN = dsn
		if service == "" {
			u, err := url.Parse(dsn)
			if err != nil {
				return fmt.Errorf("invalid --%s: %w", dsnFlag, err)
			}
			service = u.Scheme
			if service == "postgresql" {
				service = "postgres"
			}
		}
	}
	if service != "" {
		target.Service = service
	}
	return nil
}

func overrideSkip(skip *migspec.Skip, phases string) error {
	if phases == "" {
		return nil
	}
	for _, phase := range strings.Split(phases, ",") {
		switch strings.TrimSpace(phase) {
		case "createTargetDatabase":
			skip.CreateTargetDatabase = true
		case "migrateRecords":
			skip.MigrateRecords = true
		case "resolveLinks":
			skip.ResolveLinks = true
		case "checkAndClean":
			skip.CheckAndClean = true
		case "":
		default:
			return fmt.Errorf("unknown phase %q", phase)
		}
	}
	return nil
}
