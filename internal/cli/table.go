package cli

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Field is one row of a key/value table.
type Field struct {
	Key   string
	Value string
}

// RenderFields writes fields as a two-column table. Empty values are shown
// as "-".
func RenderFields(out io.Writer, title string, fields []Field) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = "-"
		}
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(f.Key), value})
	}
	t.Render()
}

// StatusLabel colors a yes/no state.
func StatusLabel(ok bool, yes, no string) string {
	if ok {
		return text.FgGreen.Sprint(yes)
	}
	return text.FgYellow.Sprint(no)
}
