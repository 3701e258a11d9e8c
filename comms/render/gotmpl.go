package render

import (
	"strings"
	"text/template"

	"golang.org/x/xerrors"
)

// GoTemplate substitutes data into a one-shot template string using Go's
// templating syntax. Used for short strings such as stored subject lines.
func GoTemplate(in string, data any, extraFuncs template.FuncMap) (string, error) {
	tmpl, err := template.New("text").Funcs(extraFuncs).Parse(in)
	if err != nil {
		return "", xerrors.Errorf("template parse: %w", err)
	}

	var out strings.Builder
	if err = tmpl.Execute(&out, data); err != nil {
		return "", xerrors.Errorf("template execute: %w", err)
	}

	return out.String(), nil
}
