// Package report renders recorded runs as interactive HTML charts.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/quenchlab/labkit/internal/rundb"
)

// Render writes an HTML page charting every measured column of the run
// against its sweep axis.
func Render(r *rundb.Reader, runID int, out io.Writer) error {
	cols := columnNames(r)
	if len(cols) == 0 {
		return fmt.Errorf("report: run %d has no column metadata", runID)
	}

	rows, err := r.AllData()
	if err != nil {
		return err
	}

	// Sweeps put the driven parameter in the second column; fall back to
	// the time column for 0D runs and watches.
	xIdx := 0
	if len(cols) > 1 {
		xIdx = 1
	}

	xLabels := make([]string, 0, len(rows))
	for _, row := range rows {
		if xIdx < len(row) {
			xLabels = append(xLabels, row[xIdx])
		}
	}

	runType, _ := r.Metadata["type"].(string)
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	for j, col := range cols {
		if j == xIdx || col == "time" {
			continue
		}
		series := make([]opts.LineData, 0, len(rows))
		for _, row := range rows {
			if j >= len(row) {
				continue
			}
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				continue
			}
			series = append(series, opts.LineData{Value: v})
		}
		if len(series) == 0 {
			continue
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				PageTitle: fmt.Sprintf("Run %d", runID),
				Width:     "700px",
				Height:    "400px",
			}),
			charts.WithTitleOpts(opts.Title{
				Title:    col,
				Subtitle: fmt.Sprintf("run=%d type=%s points=%d", runID, runType, len(series)),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: cols[xIdx]}),
			charts.WithYAxisOpts(opts.YAxis{Name: col}),
		)
		line.SetXAxis(xLabels)
		line.AddSeries(col, series, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
		page.AddCharts(line)
	}

	return page.Render(out)
}

// WriteFile renders the run with the given id under basedir into an HTML
// file at path.
func WriteFile(basedir string, id int, path string) error {
	r, err := rundb.NewReader(basedir, id)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(r, id, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func columnNames(r *rundb.Reader) []string {
	raw, ok := r.Metadata["columns"].([]any)
	if !ok {
		return nil
	}
	cols := make([]string, 0, len(raw))
	for _, c := range raw {
		s, ok := c.(string)
		if !ok {
			return nil
		}
		cols = append(cols, s)
	}
	return cols
}
