package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BegaDeveloper/medqa/internal/dataset"
	"github.com/BegaDeveloper/medqa/internal/dedupe"
)

// WriteDuplicates prints the duplicate question pairs of every split.
func WriteDuplicates(output io.Writer, duplicates dedupe.Report) error {
	if _, err := fmt.Fprintln(output, "Duplicate questions by split (index pairs):"); err != nil {
		return err
	}
	for _, split := range duplicates.Splits {
		if len(split.Pairs) == 0 {
			if _, err := fmt.Fprintf(output, "  %s: none\n", split.Split); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(output, "  %s: %d pair(s)\n", split.Split, len(split.Pairs)); err != nil {
			return err
		}
		for _, pair := range split.Pairs {
			if _, err := fmt.Fprintf(output, "    (%d, %d)\n", pair.First, pair.Second); err != nil {
				return err
			}
		}
	}
	if !duplicates.Any() {
		if _, err := fmt.Fprintln(output, "  (none found across all splits)"); err != nil {
			return err
		}
	}
	return nil
}

// SizeRow is one line of the split size table.
type SizeRow struct {
	Split   string
	Loaded  int
	Dropped int
	Kept    int
}

// Sizes builds size rows for every split in the collection. loaded and
// dropped may be nil when the corresponding stage did not run.
func Sizes(collection *dataset.Collection, loaded map[string]int, dropped map[string]int) []SizeRow {
	rows := make([]SizeRow, 0, len(collection.Names()))
	for _, name := range collection.Names() {
		kept := len(collection.Get(name))
		row := SizeRow{Split: name, Kept: kept, Loaded: kept}
		if count, ok := loaded[name]; ok {
			row.Loaded = count
		}
		row.Dropped = dropped[name]
		rows = append(rows, row)
	}
	return rows
}

// WriteSizes renders the split size table.
func WriteSizes(output io.Writer, rows []SizeRow) error {
	total := SizeRow{Split: "total"}
	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		body = append(body, []string{row.Split, strconv.Itoa(row.Loaded), strconv.Itoa(row.Dropped), strconv.Itoa(row.Kept)})
		total.Loaded += row.Loaded
		total.Dropped += row.Dropped
		total.Kept += row.Kept
	}
	rendered := renderTable(
		[]string{"Split", "Loaded", "Dropped", "Kept"},
		body,
		[]string{total.Split, strconv.Itoa(total.Loaded), strconv.Itoa(total.Dropped), strconv.Itoa(total.Kept)},
	)
	_, err := fmt.Fprintln(output, rendered)
	return err
}

func renderTable(headers []string, rows [][]string, footer []string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	if len(footer) > 0 {
		f := make(table.Row, columns)
		for i := 0; i < columns && i < len(footer); i++ {
			f[i] = footer[i]
		}
		tw.AppendFooter(f)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignRight
		if i == 0 {
			align = text.AlignLeft
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
