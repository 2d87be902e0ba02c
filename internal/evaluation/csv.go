package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CurveRow is one line of the precision-recall CSV.
type CurveRow struct {
	Name  string
	Curve Curve
}

// WriteCSV writes "name," followed by the eleven averaged precisions, each
// followed by a comma.
func WriteCSV(w io.Writer, rows []CurveRow) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		var sb strings.Builder
		sb.WriteString(row.Name)
		sb.WriteByte(',')
		for _, v := range row.Curve {
			sb.WriteString(FormatDecimal(v))
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
		if _, err := bw.WriteString(sb.String()); err != nil {
			return fmt.Errorf("writing csv row %q: %w", row.Name, err)
		}
	}
	return bw.Flush()
}

// WriteCSVFile creates path and writes rows to it.
func WriteCSVFile(path string, rows []CurveRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FormatDecimal renders v with four decimals and no leading zero for values
// below one: .5000, 1.0000, .0000.
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if strings.HasPrefix(s, "0.") {
		return s[1:]
	}
	if strings.HasPrefix(s, "-0.") {
		return "-" + s[2:]
	}
	return s
}
