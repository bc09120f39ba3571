package stage

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label renders a step name such as "raw_ingest" as "Raw Ingest".
func Label(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	return cases.Title(language.Und).String(strings.Join(fields, " "))
}

// NumberedLabel renders "3. Raw Ingest".
func NumberedLabel(d Definition) string {
	label := Label(d.Name)
	if label == "" {
		label = "Step"
	}
	return strconv.Itoa(d.Number) + ". " + label
}
