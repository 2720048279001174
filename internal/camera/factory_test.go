package camera

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	d, err := New(Config{Type: TypeSnapshot, EnvironmentURL: "http://cam.local/snap.jpg"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SnapshotDevices{}, d)

	_, err = New(Config{Type: TypeSnapshot}, zerolog.Nop())
	assert.Error(t, err)

	d, err = New(Config{Type: TypeStill}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &StillDevices{}, d)

	_, err = New(Config{Type: "v4l2"}, zerolog.Nop())
	assert.Error(t, err)
}
