package targetschema

// Fixed layouts of the shared satellite tables and of the object-shaped columns.

func thumbnail(name string) Column {
	return Column{
		Name: name,
		Type: Object,
		Columns: []Column{
			{Name: "url", Type: String},
			{Name: "height", Type: Int},
			{Name: "width", Type: Int},
		},
	}
}

// AttachmentsTableSpec returns the schema of the shared attachments table.
func AttachmentsTableSpec() Table {
	return Table{
		Name: AttachmentsTable,
		Kind: KindSatellite,
		Columns: []Column{
			{Name: "url", Type: String},
			{Name: "filename", Type: String},
			{Name: "size", Type: Int},
			{Name: "width", Type: Int},
			{Name: "height", Type: Int},
			{Name: "type", Type: String},
			{
				Name: "thumbnails",
				Type: Object,
				Columns: []Column{
					thumbnail("small"),
					thumbnail("large"),
					thumbnail("full"),
				},
			},
		},
	}
}

// CollaboratorsTableSpec returns the schema of the shared collaborators table.
func CollaboratorsTableSpec() Table {
	return Table{
		Name: CollaboratorsTable,
		Kind: KindSatellite,
		Columns: []Column{
			{Name: "email", Type: Email},
			{Name: "name", Type: String},
		},
	}
}

// BarcodeColumns returns the nested layout of a barcode object column.
func BarcodeColumns() []Column {
	return []Column{
		{Name: "text", Type: String},
		{Name: "type", Type: String},
	}
}

// ButtonColumns returns the nested layout of a button object column.
func ButtonColumns() []Column {
	return []Column{
		{Name: "label", Type: String},
		{Name: "url", Type: String},
	}
}

// JunctionTable returns the schema of a junction table linking owner rows to linked rows.
//
// The owner side and the linked side are named after their tables. A table linking to
// itself names its linked side after the relation column instead, so both sides stay
// distinct.
func JunctionTable(name, owner, linked, column string) Table {
	ownerCol, linkedCol := JunctionSides(owner, linked, column)
	return Table{
		Name: name,
		Kind: KindJunction,
		Columns: []Column{
			{Name: ownerCol, Type: Link, Link: &LinkRef{Table: owner}},
			{Name: ownerCol + UnresolvedSuffix, Type: String},
			{Name: linkedCol, Type: Link, Link: &LinkRef{Table: linked}},
			{Name: linkedCol + UnresolvedSuffix, Type: String},
		},
	}
}

// JunctionSides returns the column base names of both sides of a junction table.
func JunctionSides(owner, linked, column string) (ownerCol, linkedCol string) {
	if owner == linked {
		return owner, column
	}
	return owner, linked
}

// JunctionTableName returns the name of the junction table for a relation column.
func JunctionTableName(table, column string) string {
	return table + "_" + column
}
