package charts

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
)

var pngMagic = []byte("\x89PNG")

func TestFillColor(t *testing.T) {
	assert.Equal(t, palette[1], fillColor("hsl(var(--chart-2))", 0))
	assert.Equal(t, palette[0], fillColor("hsl(var(--chart-6))", 3))
	assert.Equal(t, palette[3], fillColor("not a color", 3))
	c := fillColor("#ff0000", 0)
	assert.Equal(t, uint8(255), c.R)
	assert.Equal(t, uint8(0), c.G)
}

func TestPie(t *testing.T) {
	slices := []core.CategoryAmount{
		{CategoryID: "food", Name: "Food", Amount: core.MustParseMoney("30"), Fill: "hsl(var(--chart-1))"},
		{CategoryID: "transport", Name: "Transportation", Amount: core.MustParseMoney("12.50"), Fill: "#336699"},
	}
	img, err := Pie(slices, 400, 400)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = Pie(nil, 400, 400)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLine(t *testing.T) {
	series := []core.MonthAmount{
		{Key: "2024-01", Label: "Jan 24"},
		{Key: "2024-02", Label: "Feb 24", Amount: core.MustParseMoney("120")},
		{Key: "2024-03", Label: "Mar 24", Amount: core.MustParseMoney("80")},
	}
	img, err := Line(series, 600, 300)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = Line(series[:1], 600, 300)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLineAllZero(t *testing.T) {
	series := []core.MonthAmount{{Key: "2024-01"}, {Key: "2024-02"}}
	img, err := Line(series, 600, 300)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestRendererCachesByContent(t *testing.T) {
	r := NewRenderer(4, time.Minute)
	slices := []core.CategoryAmount{{CategoryID: "food", Name: "Food", Amount: core.MustParseMoney("5")}}

	first, err := r.Pie(slices)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Cache().Size())

	second, err := r.Pie(slices)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.Cache().Size())

	slices[0].Amount = core.MustParseMoney("6")
	_, err = r.Pie(slices)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Cache().Size())
}
