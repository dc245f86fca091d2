package led

import (
	"bytes"
	"errors"
	"testing"

	"github.com/coreman2200/themeparkwaits/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"
)

func TestPeriphWritesNRZStream(t *testing.T) {
	var buf bytes.Buffer
	lay := layout.Layout{Dim: layout.Dim{X: 4, Y: 2}, Order: layout.Serpentine{XFlipEveryRow: true}}
	p, err := NewPeriph(spitest.NewRecordRaw(&buf), lay, 0)
	require.NoError(t, err)
	halted := buf.Len()

	rgb := make([]byte, 4*2*3)
	rgb[(1*4+0)*3] = 0xff // (0,1) lands at the end of the second row of the chain
	require.NoError(t, p.Write(rgb))
	assert.Greater(t, buf.Len(), halted)

	// Chain index 7 holds (0,1) on a serpentine layout.
	assert.Equal(t, uint8(0xff), p.strip.Pix[7*4])
	assert.Equal(t, uint8(0), p.strip.Pix[4*4])

	assert.Error(t, p.Write(rgb[:3]))
	require.NoError(t, p.Close())
	assert.Error(t, p.Write(rgb))
	assert.NoError(t, p.Close())
}

type countDriver struct {
	writes, closes int
	err            error
}

func (c *countDriver) Write([]byte) error {
	c.writes++
	return c.err
}

func (c *countDriver) Close() error {
	c.closes++
	return nil
}

func TestTeeWritesAll(t *testing.T) {
	a, b := &countDriver{}, &countDriver{err: errors.New("unplugged")}
	tee := Tee{a, b}
	err := tee.Write([]byte{0, 0, 0})
	assert.ErrorContains(t, err, "unplugged")
	assert.Equal(t, 1, a.writes)
	assert.Equal(t, 1, b.writes)

	require.NoError(t, tee.Close())
	assert.Equal(t, 1, a.closes)
	assert.Equal(t, 1, b.closes)
}
