package evaluationservice

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

var trendSeriesColors = []drawing.Color{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// RenderRatingTrendChart produces a PNG line chart of the requested assets'
// rating trajectories on one evaluator track.
func (s *EvaluationService) RenderRatingTrendChart(ctx context.Context, moduleID evaluationtypes.ModuleID, assetIDs []evaluationtypes.AssetID, evaluatorID *evaluationtypes.EvaluatorID, limit int) ([]byte, error) {
	assets := dedupAssets(assetIDs)
	if len(assets) == 0 {
		return nil, fmt.Errorf("RenderRatingTrendChart: %w: no assets given", ErrValidation)
	}

	trends, err := s.ratingTrends(ctx, moduleID, assets, evaluatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("RenderRatingTrendChart: %w", err)
	}

	return renderTrendChart(trends)
}

func renderTrendChart(trends []RatingTrend) ([]byte, error) {
	var series []chart.Series
	for i, trend := range trends {
		if len(trend.Points) < 2 {
			continue
		}
		xValues := make([]time.Time, len(trend.Points))
		yValues := make([]float64, len(trend.Points))
		for j, p := range trend.Points {
			xValues[j] = p.CompletedAt
			yValues[j] = p.Rating
		}
		color := trendSeriesColors[i%len(trendSeriesColors)]
		series = append(series, chart.TimeSeries{
			Name:    string(trend.AssetID),
			XValues: xValues,
			YValues: yValues,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
				DotWidth:    3,
				DotColor:    color,
			},
		})
	}

	if len(series) == 0 {
		return renderNoDataPlaceholder()
	}

	graph := chart.Chart{
		Width:  800,
		Height: 400,
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		},
		YAxis: chart.YAxis{
			Name: "Rating",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendThin(&graph)}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func renderNoDataPlaceholder() ([]byte, error) {
	const (
		width  = 400
		height = 200
		msg    = "Not enough completed battles to chart"
	)

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, chartDefaults chart.Style) {
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
