package migrator

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/migration/pipeline"
	"github.com/stokaro/ferry/migration/resolver"
	"github.com/stokaro/ferry/migration/schemaplan"
	"github.com/stokaro/ferry/migration/verifier"
)

// LinkStatus tells whether the links of a table were verified.
type LinkStatus string

const (
	LinksNone       LinkStatus = ""
	LinksUnchecked  LinkStatus = "unchecked"
	LinksResolved   LinkStatus = "resolved"
	LinksUnresolved LinkStatus = "unresolved"
)

// TableReport summarizes what a run did to one target table.
type TableReport struct {
	Table           string                 `json:"table" yaml:"table"`
	Kind            targetschema.TableKind `json:"kind" yaml:"kind"`
	Written         int                    `json:"written" yaml:"written"`
	Diverted        int                    `json:"diverted,omitempty" yaml:"diverted,omitempty"`
	Resolved        int                    `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	ResolveFailures int                    `json:"resolve_failures,omitempty" yaml:"resolve_failures,omitempty"`
	Links           LinkStatus             `json:"links,omitempty" yaml:"links,omitempty"`
	Removed         bool                   `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// Report is the outcome of a migration run, one entry per target table in schema order.
type Report struct {
	Tables []TableReport `json:"tables" yaml:"tables"`

	// RowErrors holds the rows the target refused to link.
	RowErrors []resolver.RowError `json:"-" yaml:"-"`

	// Cleanup is the plan applied by the last phase, if it ran.
	Cleanup *schemaplan.Plan `json:"cleanup,omitempty" yaml:"cleanup,omitempty"`
}

func newReport(schema *targetschema.Schema) *Report {
	r := &Report{}
	for _, t := range schema.Tables() {
		tr := TableReport{Table: t.Name, Kind: t.Kind}
		if t.HasLinks() {
			tr.Links = LinksUnchecked
		}
		r.Tables = append(r.Tables, tr)
	}
	return r
}

// Table returns the report entry of a table.
func (r *Report) Table(name string) (*TableReport, bool) {
	for i := range r.Tables {
		if r.Tables[i].Table == name {
			return &r.Tables[i], true
		}
	}
	return nil, false
}

// Unresolved returns the tables whose links were verified and found incomplete.
func (r *Report) Unresolved() []string {
	var names []string
	for _, t := range r.Tables {
		if t.Links == LinksUnresolved {
			names = append(names, t.Table)
		}
	}
	return names
}

func (r *Report) addMigrated(res *pipeline.Result) {
	for i := range r.Tables {
		t := &r.Tables[i]
		t.Written = res.Written[t.Table]
		if stats, ok := res.Tables[t.Table]; ok {
			t.Diverted = stats.Diverted
		}
	}
}

func (r *Report) addResolved(res *resolver.Result) {
	for i := range r.Tables {
		t := &r.Tables[i]
		t.Resolved = res.Updated[t.Table]
		t.ResolveFailures = res.Failures(t.Table)
	}
	r.RowErrors = res.RowErrors
}

func (r *Report) addVerified(res *verifier.Result, plan *schemaplan.Plan) {
	r.Cleanup = plan
	r.AddVerification(res)
	for i := range r.Tables {
		if slices.Contains(plan.TablesRemoved, r.Tables[i].Table) {
			r.Tables[i].Removed = true
		}
	}
}

// AddVerification records the link status of every verified table.
func (r *Report) AddVerification(res *verifier.Result) {
	for i := range r.Tables {
		t := &r.Tables[i]
		switch {
		case slices.Contains(res.ErrorTables, t.Table):
			t.Links = LinksUnresolved
		case res.Resolved(t.Table):
			t.Links = LinksResolved
		}
	}
}

// NewVerifyReport returns a report holding only the link status of a verification.
func (m *Migrator) NewVerifyReport(res *verifier.Result) *Report {
	r := newReport(m.schema)
	r.AddVerification(res)
	return r
}

// Write renders the report as an aligned table.
func (r *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tKIND\tWRITTEN\tDIVERTED\tRESOLVED\tFAILED\tLINKS")
	for _, t := range r.Tables {
		links := string(t.Links)
		if t.Removed {
			links = "removed"
		}
		if links == "" {
			links = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			t.Table, t.Kind, t.Written, t.Diverted, t.Resolved, t.ResolveFailures, links)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	for _, e := range r.RowErrors {
		if _, err := fmt.Fprintf(w, "unresolved: %s\n", e.Error()); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
