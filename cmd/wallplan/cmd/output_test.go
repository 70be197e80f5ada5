package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/wallplan/internal/layout"
)

func TestDecodeLayoutDoc(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "analysis result",
			data: `{"mode":"manual","layout":{"wall":{"x":0,"y":0,"w":600,"h":300,"type":"wall"},` +
				`"openings":[{"x":50,"y":0,"w":100,"h":210,"type":"door"}]}}`,
		},
		{
			name: "bare layout",
			data: `{"wall":{"w":600,"h":300},"openings":[{"x":50,"y":0,"w":100,"h":210,"type":"door"}]}`,
		},
		{
			name: "yaml result",
			data: "mode: manual\nlayout:\n  wall: {w: 600, h: 300}\n  openings:\n    - {x: 50, y: 0, w: 100, h: 210, type: door}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := decodeLayoutDoc([]byte(tt.data))
			require.NoError(t, err)
			assert.InDelta(t, 600, l.Wall.W, 1e-9)
			assert.InDelta(t, 300, l.Wall.H, 1e-9)
			assert.Equal(t, layout.KindWall, l.Wall.Type)
			require.Len(t, l.Openings, 1)
			assert.Equal(t, layout.KindDoor, l.Openings[0].Type)
		})
	}
}

func TestDecodeLayoutDoc_MissingWall(t *testing.T) {
	_, err := decodeLayoutDoc([]byte(`{"mode":"manual","layout":{"openings":[]}}`))
	assert.Error(t, err)
}
