package plan

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/ferry/cmd/internal/cli"
	"github.com/stokaro/ferry/core/transform"
	"github.com/stokaro/ferry/dbschema/sqlstore"
	"github.com/stokaro/ferry/migration/schemaplan"
)

const dialectFlag = "dialect"

var planFlags = func() map[string]cobraflags.Flag {
	flags := cli.CommonFlags()
	flags[dialectFlag] = &cobraflags.StringFlag{
		Name:  dialectFlag,
		Value: "",
		Usage: "Render the schema as SQL for a dialect (postgres, mysql, mariadb)",
	}
	return flags
}()

// NewPlanCommand creates the plan command
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the target schema derived from a migration file",
		Long: `Transform the migration file into the target schema and print it, without
touching the source or the target.

Examples:
  ferry plan --config migration.yaml                    # Tables and columns
  ferry plan --config migration.yaml --format yaml      # Schema plan as YAML
  ferry plan --config migration.yaml --dialect postgres # DDL for a SQL target`,
		Args: cobra.NoArgs,
		RunE: planCommand,
	}
	cobraflags.RegisterMap(cmd, planFlags)
	return cmd
}

func planCommand(cmd *cobra.Command, _ []string) error {
	_, m, _, err := cli.Load(planFlags[cli.ConfigFlag].GetString())
	if err != nil {
		return err
	}
	schema, err := transform.Transform(m)
	if err != nil {
		return err
	}
	plan := schemaplan.Initial(schema)
	out := cmd.OutOrStdout()

	if dialect := planFlags[dialectFlag].GetString(); dialect != "" {
		d, err := sqlstore.DialectFor(dialect)
		if err != nil {
			return err
		}
		sql, err := sqlstore.RenderPlan(d, plan)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, sql)
		return err
	}

	return cli.Write(out, planFlags[cli.FormatFlag].GetString(), plan, func(w io.Writer) error {
		return writeTables(w, plan)
	})
}

func writeTables(w io.Writer, plan *schemaplan.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tKIND\tCOLUMNS")
	for _, t := range plan.TablesAdded {
		cols := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cols[i] = col.Name + ":" + string(col.Type)
			if col.Link != nil {
				cols[i] += "->" + col.Link.Table
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Kind, strings.Join(cols, " "))
	}
	return tw.Flush()
}
