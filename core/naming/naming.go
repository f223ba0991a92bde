// Package naming derives target table and column names from source names.
package naming

import (
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Formatter turns a source name into a target name.
type Formatter func(string) string

// ErrorTableNamer derives the error table name from a success table name.
type ErrorTableNamer func(string) string

// DefaultErrorSuffix is appended to success table names to name their error tables.
const DefaultErrorSuffix = "_error"

// Camel formats a source name as lower camel case.
//
// Accents are folded and every character that is not a letter or a digit acts as a word
// separator, so "Size (WxLxH)" becomes "sizeWxLxH" and "Équipe" becomes "equipe".
func Camel(name string) string {
	folded := fold(name)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strcase.ToLowerCamel(strings.Join(strings.Fields(cleaned), " "))
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Suffix returns an ErrorTableNamer appending suffix to the table name.
func Suffix(suffix string) ErrorTableNamer {
	return func(table string) string {
		return table + suffix
	}
}

// Or returns f, or def when f is nil.
func Or(f, def Formatter) Formatter {
	if f != nil {
		return f
	}
	return def
}
