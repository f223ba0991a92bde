package typemap_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/core/sourcetype"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/typemap"
)

func TestMap(t *testing.T) {
	tests := []struct {
		source sourcetype.Type
		want   targetschema.ColumnType
	}{
		{sourcetype.AutoNumber, targetschema.Int},
		{sourcetype.Count, targetschema.Int},
		{sourcetype.Number, targetschema.Int},
		{sourcetype.Rating, targetschema.Int},
		{sourcetype.Currency, targetschema.Float},
		{sourcetype.Duration, targetschema.Float},
		{sourcetype.Percent, targetschema.Float},
		{sourcetype.Checkbox, targetschema.Bool},
		{sourcetype.Date, targetschema.DateTime},
		{sourcetype.DateTime, targetschema.DateTime},
		{sourcetype.CreatedTime, targetschema.DateTime},
		{sourcetype.LastModifiedTime, targetschema.DateTime},
		{sourcetype.Text, targetschema.Text},
		{sourcetype.LongText, targetschema.Text},
		{sourcetype.RichText, targetschema.Text},
		{sourcetype.MultilineText, targetschema.Text},
		{sourcetype.MultipleSelects, targetschema.Multiple},
		{sourcetype.Email, targetschema.Email},
		{sourcetype.Barcode, targetschema.Object},
		{sourcetype.Button, targetschema.Object},
		{sourcetype.SingleLineText, targetschema.String},
		{sourcetype.PhoneNumber, targetschema.String},
		{sourcetype.URL, targetschema.String},
		{sourcetype.Formula, targetschema.String},
	}

	for _, tt := range tests {
		t.Run(tt.source.String(), func(t *testing.T) {
			c := qt.New(t)
			c.Assert(typemap.Map(tt.source), qt.Equals, tt.want)
		})
	}
}

func TestMap_TotalOverEveryType(t *testing.T) {
	c := qt.New(t)

	for _, typ := range sourcetype.All() {
		c.Assert(typemap.Map(typ).Valid(), qt.IsTrue, qt.Commentf("type %s", typ))
	}
}

func TestResolve_OverrideWins(t *testing.T) {
	c := qt.New(t)

	c.Assert(typemap.Resolve(sourcetype.Formula, targetschema.Float), qt.Equals, targetschema.Float)
	c.Assert(typemap.Resolve(sourcetype.Number, targetschema.String), qt.Equals, targetschema.String)
	c.Assert(typemap.Resolve(sourcetype.Number, ""), qt.Equals, targetschema.Int)
}

func TestLayout(t *testing.T) {
	c := qt.New(t)

	c.Assert(typemap.Layout(sourcetype.Barcode), qt.DeepEquals, targetschema.BarcodeColumns())
	c.Assert(typemap.Layout(sourcetype.Button), qt.DeepEquals, targetschema.ButtonColumns())
	c.Assert(typemap.Layout(sourcetype.Text), qt.IsNil)
}
