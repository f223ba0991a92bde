// Package testutil provides migration fixtures shared by tests
package testutil

import (
	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/sourcetype"
)

// TeamMigration returns a migration with a team table and a teamMember table linking to it.
//
// teamMember.team is a single link and teamMember.teams a multiple link, both to team.
func TeamMigration() *migspec.Migration {
	return &migspec.Migration{
		Tables: []migspec.Table{
			{
				SourceTableID:   "tblTeam",
				SourceTableName: "team",
				Columns: []migspec.Column{
					{SourceColumnName: "name", SourceColumnType: sourcetype.Text},
					{SourceColumnName: "age", SourceColumnType: sourcetype.Number},
					{SourceColumnName: "email", SourceColumnType: sourcetype.Email},
				},
			},
			{
				SourceTableID:   "tblTeamMember",
				SourceTableName: "team member",
				Columns: []migspec.Column{
					{SourceColumnName: "name", SourceColumnType: sourcetype.Text, Required: true},
					{SourceColumnName: "team", SourceColumnType: sourcetype.MultipleRecordLinks, LinkSourceTableName: "team"},
					{
						SourceColumnName:     "teams",
						SourceColumnType:     sourcetype.MultipleRecordLinks,
						LinkSourceTableName:  "team",
						AllowMultipleRecords: true,
					},
				},
			},
		},
	}
}

// KitchenSinkMigration returns a single table using every relation and object type.
func KitchenSinkMigration() *migspec.Migration {
	return &migspec.Migration{
		Tables: []migspec.Table{
			{
				SourceTableID:   "tblProduct",
				SourceTableName: "Products",
				Columns: []migspec.Column{
					{SourceColumnName: "Name", SourceColumnType: sourcetype.SingleLineText, Required: true},
					{SourceColumnName: "Price", SourceColumnType: sourcetype.Currency},
					{SourceColumnName: "Released", SourceColumnType: sourcetype.Date},
					{SourceColumnName: "Tags", SourceColumnType: sourcetype.MultipleSelects},
					{SourceColumnName: "Code", SourceColumnType: sourcetype.Barcode},
					{SourceColumnName: "Pictures", SourceColumnType: sourcetype.MultipleAttachments},
					{SourceColumnName: "Owner", SourceColumnType: sourcetype.SingleCollaborator},
					{SourceColumnName: "Reviewers", SourceColumnType: sourcetype.MultipleCollaborators},
					{
						SourceColumnName:     "Related",
						SourceColumnType:     sourcetype.MultipleRecordLinks,
						LinkSourceTableName:  "Products",
						AllowMultipleRecords: true,
					},
				},
			},
		},
	}
}
