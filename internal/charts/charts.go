// Package charts renders dashboard aggregates as PNG images.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"spendwise/internal/core"
)

var ErrNoData = errors.New("no data to chart")

// palette mirrors the five dashboard theme colors behind --chart-1..5.
var palette = []drawing.Color{
	drawing.ColorFromHex("e76e50"),
	drawing.ColorFromHex("2a9d90"),
	drawing.ColorFromHex("274754"),
	drawing.ColorFromHex("e8c468"),
	drawing.ColorFromHex("f4a462"),
}

var (
	themeVar = regexp.MustCompile(`--chart-(\d+)`)
	hexColor = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// fillColor converts a category fill into a concrete color. Theme variables
// map onto the palette; anything unparseable falls back by position.
func fillColor(fill string, i int) drawing.Color {
	fill = strings.TrimSpace(fill)
	if m := themeVar.FindStringSubmatch(fill); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			return palette[(n-1)%len(palette)]
		}
	}
	if hexColor.MatchString(fill) {
		return drawing.ColorFromHex(strings.TrimPrefix(fill, "#"))
	}
	return palette[i%len(palette)]
}

// Pie renders a spending-by-category breakdown.
func Pie(slices []core.CategoryAmount, width, height int) ([]byte, error) {
	values := make([]chart.Value, 0, len(slices))
	for i, s := range slices {
		v := s.Amount.Float64()
		if v <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", s.Name, s.Amount),
			Value: v,
			Style: chart.Style{
				FillColor:   fillColor(s.Fill, i),
				StrokeColor: chart.ColorWhite,
				FontSize:    10,
				FontColor:   chart.ColorBlack,
			},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Width:  width,
		Height: height,
		Values: values,
		Background: chart.Style{
			Padding:   chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
			FillColor: chart.ColorWhite,
		},
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render category pie chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Line renders monthly expense totals in series order.
func Line(series []core.MonthAmount, width, height int) ([]byte, error) {
	if len(series) < 2 {
		return nil, ErrNoData
	}

	xs := make([]time.Time, len(series))
	ys := make([]float64, len(series))
	top := 0.0
	for i, m := range series {
		month, err := time.Parse("2006-01", m.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid month key %q: %w", m.Key, err)
		}
		xs[i] = month
		ys[i] = m.Amount.Float64()
		if ys[i] > top {
			top = ys[i]
		}
	}
	if top == 0 {
		top = 1
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding:   chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
			FillColor: chart.ColorWhite,
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 06"),
			Style:          chart.Style{FontSize: 10, FontColor: chart.ColorBlack},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
			Style: chart.Style{FontSize: 10, FontColor: chart.ColorBlack},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Expenses",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: palette[0],
					StrokeWidth: 2,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render monthly expense chart: %w", err)
	}
	return buf.Bytes(), nil
}
