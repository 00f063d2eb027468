package replaygain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpdgo/outputworker"
)

func s16(v int16) []byte {
	u := uint16(v)
	return []byte{byte(u), byte(u >> 8)}
}

func decodeS16(b []byte) int16 {
	return int16(uint16(b[0]) | uint16(b[1])<<8)
}

func TestFilterPassthroughWithoutInfo(t *testing.T) {
	t.Parallel()
	f := New(ModeTrack)
	pcm := s16(1000)
	out, err := f.FilterPCM(pcm)
	assert.NoError(t, err)
	assert.Equal(t, pcm, out)
}

func TestFilterAppliesPositiveGain(t *testing.T) {
	t.Parallel()
	f := New(ModeTrack)
	f.SetInfo(&outputworker.ReplayGainInfo{TrackGain: 6, TrackPeak: 0.5})

	pcm := s16(1000)
	out, err := f.FilterPCM(pcm)
	assert.NoError(t, err)
	assert.Greater(t, decodeS16(out), int16(1000))
}

func TestFilterClampsAtPeak(t *testing.T) {
	t.Parallel()
	f := New(ModeTrack)
	// large positive gain with a peak near full scale should clamp the
	// applied scale rather than clip the sample.
	f.SetInfo(&outputworker.ReplayGainInfo{TrackGain: 20, TrackPeak: 0.99})

	pcm := s16(30000)
	out, err := f.FilterPCM(pcm)
	assert.NoError(t, err)
	assert.LessOrEqual(t, decodeS16(out), int16(32767))
}
