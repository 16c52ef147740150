package field

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes one "x,y,temperature,stderr" row per grid point, row by
// row, after a header line.
func (f *Field) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "temperature", "stderr"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for r, y := range f.Ys {
		for c, x := range f.Xs {
			var se float64
			if f.StdErrs != nil {
				se = f.StdErrs[r][c]
			}
			row := []string{
				formatFloat(x),
				formatFloat(y),
				fmt.Sprintf("%.6f", f.Values[r][c]),
				fmt.Sprintf("%.6f", se),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing csv row (%d, %d): %w", r, c, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
