package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// Fields is an ordered list of name/value pairs rendered as a two-column
// table.
type Fields [][2]string

// Add appends a pair and returns the list for chaining.
func (f Fields) Add(name, value string) Fields {
	return append(f, [2]string{name, value})
}

// Headers implements TableRenderer.
func (f Fields) Headers() []string {
	return []string{"Field", "Value"}
}

// Rows implements TableRenderer.
func (f Fields) Rows() [][]string {
	rows := make([][]string, 0, len(f))
	for _, pair := range f {
		rows = append(rows, []string{pair[0], pair[1]})
	}
	return rows
}
