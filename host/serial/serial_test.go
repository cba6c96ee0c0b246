package serial

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsIdle(t *testing.T) {
	assert.True(t, IsIdle(0, io.EOF))
	assert.True(t, IsIdle(0, errors.Join(errors.New("read /dev/ttyUSB0"), io.EOF)))

	assert.False(t, IsIdle(0, nil))
	assert.False(t, IsIdle(3, io.EOF), "data came with the EOF")
	assert.False(t, IsIdle(0, os.ErrClosed))
	assert.False(t, IsIdle(0, io.ErrClosedPipe))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB0")
	assert.Equal(t, "/dev/ttyUSB0", cfg.Device)
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.NotZero(t, cfg.ReadTimeout)
}
