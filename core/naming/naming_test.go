package naming_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/ferry/core/naming"
)

func TestCamel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Name", "name"},
		{"Order line items", "orderLineItems"},
		{"Size (WxLxH)", "sizeWxLxH"},
		{"team member", "teamMember"},
		{"Équipe", "equipe"},
		{"created_at", "createdAt"},
		{"already camel", "alreadyCamel"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(naming.Camel(tt.in), qt.Equals, tt.want)
		})
	}
}

func TestSuffix(t *testing.T) {
	c := qt.New(t)

	c.Assert(naming.Suffix(naming.DefaultErrorSuffix)("team"), qt.Equals, "team_error")
	c.Assert(naming.Suffix("Errors")("team"), qt.Equals, "teamErrors")
}

func TestOr(t *testing.T) {
	c := qt.New(t)

	upper := func(s string) string { return s + "!" }
	c.Assert(naming.Or(nil, naming.Camel)("my table"), qt.Equals, "myTable")
	c.Assert(naming.Or(upper, naming.Camel)("my table"), qt.Equals, "my table!")
}
