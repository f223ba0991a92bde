// Package sourcetype defines the closed set of column types a source table can declare.
//
// Every type carries a descriptor with its wire name and its structural kind. The kind
// decides how the schema transformation engine and the relation expander treat the
// column; the wire name is what migration files and the source API use.
package sourcetype

import (
	"fmt"
)

// Type is a source column type. The zero value is Invalid.
type Type int

const (
	Invalid Type = iota
	AutoNumber
	Barcode
	Button
	Checkbox
	Count
	CreatedBy
	CreatedTime
	Currency
	Date
	DateTime
	Duration
	Email
	ExternalSyncSource
	Formula
	LastModifiedBy
	LastModifiedTime
	LongText
	MultilineText
	MultipleAttachments
	MultipleCollaborators
	MultipleLookupValues
	MultipleRecordLinks
	MultipleSelects
	Number
	Percent
	PhoneNumber
	Rating
	RichText
	Rollup
	SingleCollaborator
	SingleLineText
	SingleSelect
	Text
	URL

	// typeCount must stay last.
	typeCount
)

// Kind groups source types by how they are laid out in the target schema.
type Kind int

const (
	// KindScalar maps to a single scalar target column.
	KindScalar Kind = iota
	// KindObject maps to a single object column with a fixed nested layout.
	KindObject
	// KindRecordLinks is a relation to another source table.
	KindRecordLinks
	// KindAttachments is a list of files stored in the shared attachments table.
	KindAttachments
	// KindSingleCollaborator references one row of the shared collaborators table.
	KindSingleCollaborator
	// KindMultipleCollaborators references many rows of the shared collaborators table.
	KindMultipleCollaborators
)

type descriptor struct {
	name string
	kind Kind
}

var descriptors = [...]descriptor{
	Invalid:               {name: "", kind: KindScalar},
	AutoNumber:            {name: "autoNumber", kind: KindScalar},
	Barcode:               {name: "barcode", kind: KindObject},
	Button:                {name: "button", kind: KindObject},
	Checkbox:              {name: "checkbox", kind: KindScalar},
	Count:                 {name: "count", kind: KindScalar},
	CreatedBy:             {name: "createdBy", kind: KindSingleCollaborator},
	CreatedTime:           {name: "createdTime", kind: KindScalar},
	Currency:              {name: "currency", kind: KindScalar},
	Date:                  {name: "date", kind: KindScalar},
	DateTime:              {name: "dateTime", kind: KindScalar},
	Duration:              {name: "duration", kind: KindScalar},
	Email:                 {name: "email", kind: KindScalar},
	ExternalSyncSource:    {name: "externalSyncSource", kind: KindScalar},
	Formula:               {name: "formula", kind: KindScalar},
	LastModifiedBy:        {name: "lastModifiedBy", kind: KindSingleCollaborator},
	LastModifiedTime:      {name: "lastModifiedTime", kind: KindScalar},
	LongText:              {name: "longText", kind: KindScalar},
	MultilineText:         {name: "multilineText", kind: KindScalar},
	MultipleAttachments:   {name: "multipleAttachments", kind: KindAttachments},
	MultipleCollaborators: {name: "multipleCollaborators", kind: KindMultipleCollaborators},
	MultipleLookupValues:  {name: "multipleLookupValues", kind: KindScalar},
	MultipleRecordLinks:   {name: "multipleRecordLinks", kind: KindRecordLinks},
	MultipleSelects:       {name: "multipleSelects", kind: KindScalar},
	Number:                {name: "number", kind: KindScalar},
	Percent:               {name: "percent", kind: KindScalar},
	PhoneNumber:           {name: "phoneNumber", kind: KindScalar},
	Rating:                {name: "rating", kind: KindScalar},
	RichText:              {name: "richText", kind: KindScalar},
	Rollup:                {name: "rollup", kind: KindScalar},
	SingleCollaborator:    {name: "singleCollaborator", kind: KindSingleCollaborator},
	SingleLineText:        {name: "singleLineText", kind: KindScalar},
	SingleSelect:          {name: "singleSelect", kind: KindScalar},
	Text:                  {name: "text", kind: KindScalar},
	URL:                   {name: "url", kind: KindScalar},
}

// A type added before typeCount without a descriptor fails to compile here.
var _ = [1]struct{}{}[len(descriptors)-int(typeCount)]

var byName = func() map[string]Type {
	m := make(map[string]Type, len(descriptors))
	for t := Type(1); t < typeCount; t++ {
		m[descriptors[t].name] = t
	}
	return m
}()

// All returns every valid source type in declaration order.
func All() []Type {
	all := make([]Type, 0, int(typeCount)-1)
	for t := Type(1); t < typeCount; t++ {
		all = append(all, t)
	}
	return all
}

// Parse returns the type with the given wire name.
func Parse(name string) (Type, error) {
	t, ok := byName[name]
	if !ok {
		return Invalid, fmt.Errorf("unknown source column type %q", name)
	}
	return t, nil
}

// Valid reports whether t is a declared type other than Invalid.
func (t Type) Valid() bool {
	return t > Invalid && t < typeCount
}

// String returns the wire name of the type.
func (t Type) String() string {
	if t < 0 || t >= typeCount {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return descriptors[t].name
}

// Kind returns the structural kind of the type.
func (t Type) Kind() Kind {
	if !t.Valid() {
		return KindScalar
	}
	return descriptors[t].kind
}

// IsRelation reports whether values of this type reference rows of another table.
func (t Type) IsRelation() bool {
	switch t.Kind() {
	case KindRecordLinks, KindAttachments, KindSingleCollaborator, KindMultipleCollaborators:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid source column type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
