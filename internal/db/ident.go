package db

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// identPattern matches plain lowercase SQL identifiers. Table names are
// interpolated into DDL and spatial queries, so anything fancier is rejected
// outright rather than quoted.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// NormalizeTable maps a requested table name onto a safe identifier:
// trimmed, lowercased, dashes to underscores. Names that still do not form
// a plain identifier are rejected.
func NormalizeTable(name string) (string, error) {
	t := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	if err := ValidateIdent(t); err != nil {
		return "", err
	}
	return t, nil
}

// ValidateIdent rejects anything but a plain identifier of PostgreSQL's
// maximum name length.
func ValidateIdent(name string) error {
	if len(name) == 0 || len(name) > 63 {
		return eris.Errorf("db: invalid identifier %q", name)
	}
	if !identPattern.MatchString(name) {
		return eris.Errorf("db: invalid identifier %q", name)
	}
	return nil
}
