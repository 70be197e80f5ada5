package layout

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFromManual_Door(t *testing.T) {
	l, err := FromManual(ManualInput{
		Width:    600,
		Height:   300,
		Openings: []Rectangle{{X: 50, Y: 0, W: 100, H: 210, Type: KindDoor}},
	})
	require.NoError(t, err)

	assert.Equal(t, Rectangle{X: 0, Y: 0, W: 600, H: 300, Type: KindWall}, l.Wall)
	require.NotNil(t, l.Scale.PixelsPerUnit)
	assert.InDelta(t, 1.0, *l.Scale.PixelsPerUnit, 0)
	assert.Equal(t, []Rectangle{{X: 50, Y: 0, W: 100, H: 210, Type: KindDoor}}, l.Openings)
	assert.NotNil(t, l.Blocks)
	assert.Empty(t, l.Blocks)
	assert.Equal(t, Dimensions{Width: 600, Height: 300}, l.Dimensions)
	assert.Equal(t, OriginBottomLeft, l.Origin)
	assert.Equal(t, SourceManual, l.Source)
}

func TestFromManual_OutOfBounds(t *testing.T) {
	_, err := FromManual(ManualInput{
		Width:    600,
		Height:   300,
		Openings: []Rectangle{{X: 10, Y: 10, W: 20, H: 20}, {X: 550, Y: 0, W: 100, H: 50}},
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeOutOfBounds))
	assert.Equal(t, errs.CategoryInput, errs.CategoryOf(err))

	var oob *errs.OutOfBoundsError
	require.True(t, errors.As(err, &oob))
	assert.Equal(t, 1, oob.Index)
	assert.Equal(t, "right", oob.Side)
	assert.InDelta(t, 50, oob.Excess, 1e-9)
	assert.Contains(t, errs.UserMessage(err), "opening 1")
}

func TestFromManual_Sides(t *testing.T) {
	tests := []struct {
		name   string
		rect   Rectangle
		side   string
		excess float64
	}{
		{"left", Rectangle{X: -5, Y: 0, W: 10, H: 10}, "left", 5},
		{"bottom", Rectangle{X: 0, Y: -2.5, W: 10, H: 10}, "bottom", 2.5},
		{"right", Rectangle{X: 95, Y: 0, W: 10, H: 10}, "right", 5},
		{"top", Rectangle{X: 0, Y: 45, W: 10, H: 10}, "top", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromManual(ManualInput{Width: 100, Height: 50, Openings: []Rectangle{tt.rect}})
			var oob *errs.OutOfBoundsError
			require.True(t, errors.As(err, &oob))
			assert.Equal(t, 0, oob.Index)
			assert.Equal(t, tt.side, oob.Side)
			assert.InDelta(t, tt.excess, oob.Excess, 1e-9)
		})
	}
}

func TestFromManual_InvalidDimensions(t *testing.T) {
	tests := []struct {
		name string
		in   ManualInput
	}{
		{"zero width", ManualInput{Width: 0, Height: 10}},
		{"negative height", ManualInput{Width: 10, Height: -1}},
		{"zero opening", ManualInput{Width: 10, Height: 10, Openings: []Rectangle{{X: 1, Y: 1, W: 0, H: 2}}}},
		{"bad block", ManualInput{Width: 10, Height: 10, Blocks: []Rectangle{{X: 1, Y: 1, W: -2, H: 2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromManual(tt.in)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.CodeInvalidDimensions), "got %v", err)
		})
	}
}

func TestFromManual_UnknownOpeningType(t *testing.T) {
	_, err := FromManual(ManualInput{Width: 10, Height: 10, Openings: []Rectangle{{X: 1, Y: 1, W: 2, H: 2, Type: "chimney"}}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeInvalidInput), "got %v", err)
	assert.Contains(t, err.Error(), "chimney")
}

func TestFromManual_TypesAndBlocks(t *testing.T) {
	l, err := FromManual(ManualInput{
		Width:    200,
		Height:   100,
		Openings: []Rectangle{{X: 10, Y: 10, W: 20, H: 20}, {X: 50, Y: 10, W: 20, H: 20, Type: " Window "}},
		Blocks:   []Rectangle{{X: 0, Y: 0, W: 25, H: 20}, {X: 25, Y: 0, W: 12.5, H: 20, Type: KindHalfBlock}},
	})
	require.NoError(t, err)
	assert.Equal(t, KindOpening, l.Openings[0].Type)
	assert.Equal(t, KindWindow, l.Openings[1].Type)
	assert.Equal(t, KindBlock, l.Blocks[0].Type)
	assert.Equal(t, KindHalfBlock, l.Blocks[1].Type)

	_, err = FromManual(ManualInput{Width: 200, Height: 100, Blocks: []Rectangle{{X: 190, Y: 0, W: 25, H: 20}}})
	var oob *errs.OutOfBoundsError
	require.True(t, errors.As(err, &oob))
	assert.Equal(t, "block", oob.Kind)
}

func TestLayoutJSONUsesEmptyArrays(t *testing.T) {
	l := Layout{Wall: Rectangle{W: 10, H: 5, Type: KindWall}}
	data, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"openings":[]`)
	assert.Contains(t, string(data), `"blocks":[]`)
	assert.Contains(t, string(data), `"pixels_per_unit":null`)
	assert.Contains(t, string(data), `"dimensions":{"width":10,"height":5}`)
}

func TestDecodeLayout(t *testing.T) {
	src, err := FromManual(ManualInput{Width: 300, Height: 200, Openings: []Rectangle{{X: 10, Y: 20, W: 30, H: 40, Type: KindDoor}}})
	require.NoError(t, err)

	for _, marshal := range []func(any) ([]byte, error){json.Marshal, yaml.Marshal} {
		data, err := marshal(src)
		require.NoError(t, err)
		got, err := DecodeLayout(data)
		require.NoError(t, err)
		assert.Equal(t, src, got)
	}

	_, err = DecodeLayout([]byte("wall: {w: 0, h: 2}"))
	assert.True(t, errs.Is(err, errs.CodeInvalidDimensions))
	_, err = DecodeLayout([]byte("wall: ["))
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
}

func TestParseRect(t *testing.T) {
	r, err := ParseRect("50, 0,100,210,Door")
	require.NoError(t, err)
	assert.Equal(t, Rectangle{X: 50, Y: 0, W: 100, H: 210, Type: KindDoor}, r)

	r, err = ParseRect("1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, Kind(""), r.Type)

	for _, bad := range []string{"", "1,2,3", "1,2,x,4", "1,2,3,4,door,extra"} {
		_, err := ParseRect(bad)
		assert.True(t, errs.Is(err, errs.CodeInvalidInput), bad)
	}
}

func TestDecodeManualInput(t *testing.T) {
	in, err := DecodeManualInput([]byte(`{"width": 600, "height": 300, "openings": [{"x": 50, "y": 0, "w": 100, "h": 210, "type": "door"}]}`))
	require.NoError(t, err)
	assert.InDelta(t, 600, in.Width, 0)
	require.Len(t, in.Openings, 1)
	assert.Equal(t, KindDoor, in.Openings[0].Type)

	in, err = DecodeManualInput([]byte("width: 100\nheight: 50\n"))
	require.NoError(t, err)
	assert.Empty(t, in.Openings)

	_, err = DecodeManualInput([]byte("width: [oops"))
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
}

func TestRectangleHelpers(t *testing.T) {
	a := Rectangle{X: 0, Y: 0, W: 10, H: 10}
	assert.True(t, a.Overlaps(Rectangle{X: 5, Y: 5, W: 10, H: 10}))
	assert.False(t, a.Overlaps(Rectangle{X: 10, Y: 0, W: 5, H: 5}))
	assert.True(t, a.Within(10, 10, 0))
	assert.False(t, a.Within(9.9, 10, 0))
	assert.True(t, a.Within(9.9, 10, 0.2))
	assert.True(t, KindDoor.IsOpening())
	assert.False(t, KindBlock.IsOpening())
	assert.Equal(t, Kind("3"), BlockKind(3))

	l := &Layout{Openings: []Rectangle{{W: 2, H: 3}, {W: 1, H: 1}}}
	assert.InDelta(t, 7, l.OpeningArea(), 1e-12)
	withBlocks := l.WithBlocks([]Rectangle{a})
	assert.Len(t, withBlocks.Blocks, 1)
	assert.Nil(t, l.Blocks)
}

func TestSummary(t *testing.T) {
	l := &Layout{Wall: Rectangle{W: 10, H: 5}, Source: SourceContour}
	assert.Equal(t, "wall 10.00 x 5.00 px, 0 openings, 0 blocks (contour)", l.Summary())
	l.Scale = NewScale(2)
	assert.Contains(t, l.Summary(), "units")
}
