package opusraw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpdgo/outputworker"
)

func TestOpenRejectsWrongFormat(t *testing.T) {
	t.Parallel()
	f := New(DefaultConfig())
	_, err := f.Open(outputworker.AudioFormat{SampleRate: 44100, Format: outputworker.SampleFormatS16, Channels: 2})
	assert.Error(t, err)
}

func TestFilterPCMBuffersUntilFullFrame(t *testing.T) {
	t.Parallel()
	f := New(DefaultConfig())
	_, err := f.Open(outputworker.AudioFormat{SampleRate: sampleRate, Format: outputworker.SampleFormatS16, Channels: channels})
	require.NoError(t, err)

	half := make([]byte, FrameSize*channels*2/2)
	out, err := f.FilterPCM(half)
	require.NoError(t, err)
	assert.Nil(t, out)

	rest := make([]byte, FrameSize*channels*2/2)
	out, err = f.FilterPCM(rest)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
