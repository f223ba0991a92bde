package config

import (
	"fmt"

	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/naming"
	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/transform"
)

// File is the content of a migration file.
type File struct {
	Source SourceConfig `mapstructure:"source" validate:"required"`
	Target TargetConfig `mapstructure:"target" validate:"required"`

	// ErrorTableSuffix overrides Options.ErrorTableSuffix when set.
	ErrorTableSuffix string `mapstructure:"errorTableSuffix"`

	Skip   SkipConfig    `mapstructure:"skip"`
	Tables []TableConfig `mapstructure:"tables" validate:"required,min=1,dive"`
}

// SourceConfig locates the source store.
type SourceConfig struct {
	Service string `mapstructure:"service" validate:"required,oneof=airtable"`
	APIKey  string `mapstructure:"apiKey" validate:"required"`
	BaseID  string `mapstructure:"baseId" validate:"required"`
	BaseURL string `mapstructure:"baseUrl" validate:"omitempty,url"`
}

// TargetConfig locates the target store.
type TargetConfig struct {
	Service       string `mapstructure:"service" validate:"required,oneof=xata postgres mysql mariadb memory"`
	APIKey        string `mapstructure:"apiKey" validate:"required_if=Service xata"`
	WorkspaceID   string `mapstructure:"workspaceId" validate:"required_if=Service xata"`
	Region        string `mapstructure:"region"`
	BaseURL       string `mapstructure:"baseUrl" validate:"omitempty,url"`
	DatabaseName  string `mapstructure:"databaseName" validate:"required"`
	DatabaseColor string `mapstructure:"databaseColor" validate:"omitempty,oneof=gray orange green blue cyan purple pink"`
	DSN           string `mapstructure:"dsn" validate:"required_if=Service postgres,required_if=Service mysql,required_if=Service mariadb"`
}

// SkipConfig holds the per-phase skip flags.
type SkipConfig struct {
	CreateTargetDatabase bool `mapstructure:"createTargetDatabase"`
	MigrateRecords       bool `mapstructure:"migrateRecords"`
	ResolveLinks         bool `mapstructure:"resolveLinks"`
	CheckAndClean        bool `mapstructure:"checkAndClean"`
}

// TableConfig describes one source table.
type TableConfig struct {
	SourceTableID   string         `mapstructure:"sourceTableId" validate:"required"`
	SourceTableName string         `mapstructure:"sourceTableName" validate:"required"`
	TargetTableName string         `mapstructure:"targetTableName"`
	Columns         []ColumnConfig `mapstructure:"columns" validate:"dive"`
}

// ColumnConfig describes one source column.
type ColumnConfig struct {
	SourceColumnName     string `mapstructure:"sourceColumnName" validate:"required"`
	SourceColumnType     string `mapstructure:"sourceColumnType" validate:"required"`
	TargetColumnName     string `mapstructure:"targetColumnName"`
	TargetColumnType     string `mapstructure:"targetColumnType"`
	Required             bool   `mapstructure:"required"`
	LinkSourceTableName  string `mapstructure:"linkSourceTableName" validate:"required_if=SourceColumnType multipleRecordLinks"`
	AllowMultipleRecords bool   `mapstructure:"allowMultipleRecords"`
}

// Migration converts the file into a migration specification.
func (f *File) Migration(opts *Options) (*migspec.Migration, error) {
	suffix := f.ErrorTableSuffix
	if suffix == "" {
		suffix = opts.Normalize().ErrorTableSuffix
	}

	m := &migspec.Migration{
		ErrorTableName: naming.Suffix(suffix),
		Skip: migspec.Skip{
			CreateTargetDatabase: f.Skip.CreateTargetDatabase,
			MigrateRecords:       f.Skip.MigrateRecords,
			ResolveLinks:         f.Skip.ResolveLinks,
			CheckAndClean:        f.Skip.CheckAndClean,
		},
	}

	for _, tc := range f.Tables {
		table := migspec.Table{
			SourceTableID:   tc.SourceTableID,
			SourceTableName: tc.SourceTableName,
			TargetTableName: tc.TargetTableName,
		}
		for _, cc := range tc.Columns {
			typ, err := sourcetype.Parse(cc.SourceColumnType)
			if err != nil {
				return nil, &transform.ConfigurationError{Table: tc.SourceTableName, Column: cc.SourceColumnName, Reason: err.Error()}
			}
			target := targetschema.ColumnType(cc.TargetColumnType)
			if target != "" && !target.Valid() {
				return nil, &transform.ConfigurationError{
					Table:  tc.SourceTableName,
					Column: cc.SourceColumnName,
					Reason: fmt.Sprintf("unknown target column type %q", cc.TargetColumnType),
				}
			}
			table.Columns = append(table.Columns, migspec.Column{
				SourceColumnName:     cc.SourceColumnName,
				SourceColumnType:     typ,
				TargetColumnName:     cc.TargetColumnName,
				TargetColumnType:     target,
				Required:             cc.Required,
				LinkSourceTableName:  cc.LinkSourceTableName,
				AllowMultipleRecords: cc.AllowMultipleRecords,
			})
		}
		m.Tables = append(m.Tables, table)
	}
	return m, nil
}
