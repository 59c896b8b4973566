package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestPointEWKB(t *testing.T) {
	data, err := pointEWKB(20.6736, -103.344)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)

	p, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, wgs84, p.SRID())
	assert.InDelta(t, -103.344, p.X(), 1e-12)
	assert.InDelta(t, 20.6736, p.Y(), 1e-12)
}
