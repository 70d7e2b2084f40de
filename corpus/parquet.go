package corpus

import (
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Row of a Parquet corpus: only the "text" column is read, other columns are ignored.
type Row struct {
	Text string `parquet:"text"`
}

// ReadParquet reads the "text" column of the Parquet file in filePath, one line per row.
//
// Rows are returned as is: they are not split further, and a trailing line terminator is not
// added.
func ReadParquet(filePath string) ([]string, error) {
	rows, err := parquet.ReadFile[Row](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parquet corpus %q", filePath)
	}
	lines := make([]string, len(rows))
	for ii, row := range rows {
		lines[ii] = row.Text
	}
	klog.V(1).Infof("read parquet corpus %q: %s", filePath, Stats(lines))
	return lines, nil
}

// WriteParquet writes lines to filePath as a Parquet file with a single "text" column.
func WriteParquet(filePath string, lines []string) error {
	rows := make([]Row, len(lines))
	for ii, line := range lines {
		rows[ii].Text = line
	}
	if err := parquet.WriteFile(filePath, rows); err != nil {
		return errors.Wrapf(err, "failed to write parquet corpus %q", filePath)
	}
	return nil
}
