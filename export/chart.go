package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/airladon/timekeeper"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is one named recording plotted by WriteChart.
type Series struct {
	Name      string
	Recording timekeeper.Recording
}

// WriteChart renders the series as an HTML line chart. The x axis is time
// relative to the newest sample, taken from the longest series. Every series
// must share one sample interval; shorter histories are aligned on their
// newest sample and left blank further back.
func WriteChart(w io.Writer, title string, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("chart: no series")
	}

	var axis []float64
	for _, s := range series {
		if len(s.Recording.Data) != len(s.Recording.Time) {
			return fmt.Errorf("chart: series %q has %d samples for %d times", s.Name, len(s.Recording.Data), len(s.Recording.Time))
		}
		if len(s.Recording.Time) > len(axis) {
			axis = s.Recording.Time
		}
	}

	labels := make([]string, len(axis))
	for i, age := range axis {
		// 0-age keeps the newest label from printing as -0.000.
		labels[i] = strconv.FormatFloat(0-age, 'f', 3, 64)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value"}),
	)
	line.SetXAxis(labels)

	for _, s := range series {
		line.AddSeries(s.Name, lineData(s.Recording.Data, len(axis)))
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	return nil
}

// lineData right-aligns values in a slice of length n, blank at the front.
func lineData(values []float64, n int) []opts.LineData {
	data := make([]opts.LineData, n)
	pad := n - len(values)
	for i := range pad {
		data[i] = opts.LineData{Value: blank}
	}
	for i, v := range values {
		data[pad+i] = opts.LineData{Value: v}
	}
	return data
}

// blank is the ECharts marker for a missing point.
const blank = "-"
