package outputworker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFilter struct {
	name   string
	log    *[]string
	failOn bool
}

func (f *recordingFilter) Open(in AudioFormat) (AudioFormat, error) {
	*f.log = append(*f.log, f.name+":open")
	if f.failOn {
		return AudioFormat{}, assert.AnError
	}
	return in, nil
}
func (f *recordingFilter) Close() {
	*f.log = append(*f.log, f.name+":close")
}
func (f *recordingFilter) FilterPCM(pcm []byte) ([]byte, error) {
	*f.log = append(*f.log, f.name+":filter")
	return pcm, nil
}

func TestFilterChainOpenRollsBackOnFailure(t *testing.T) {
	t.Parallel()
	var log []string
	a := &recordingFilter{name: "a", log: &log}
	b := &recordingFilter{name: "b", log: &log, failOn: true}
	chain := NewFilterChain(a, b)

	_, err := chain.Open(AudioFormat{SampleRate: 44100, Format: SampleFormatS16, Channels: 2})
	require.Error(t, err)
	assert.Equal(t, []string{"a:open", "b:open", "a:close"}, log)
}

func TestFilterChainCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	var log []string
	a := &recordingFilter{name: "a", log: &log}
	chain := NewFilterChain(a)

	chain.Close()
	assert.Empty(t, log, "closing an unopened chain should do nothing")

	_, err := chain.Open(AudioFormat{SampleRate: 44100, Format: SampleFormatS16, Channels: 2})
	require.NoError(t, err)
	chain.Close()
	chain.Close()
	assert.Equal(t, []string{"a:open", "a:close"}, log)
}

type zeroingFilter struct{}

func (zeroingFilter) Open(in AudioFormat) (AudioFormat, error) { return in, nil }
func (zeroingFilter) Close()                                   {}
func (zeroingFilter) FilterPCM([]byte) ([]byte, error)         { return nil, nil }

type countingFilter struct {
	calls *int
}

func (f countingFilter) Open(in AudioFormat) (AudioFormat, error) { return in, nil }
func (f countingFilter) Close()                                   {}
func (f countingFilter) FilterPCM(pcm []byte) ([]byte, error) {
	*f.calls++
	return pcm, nil
}

func TestFilterChainShortCircuitsOnEmptyOutput(t *testing.T) {
	t.Parallel()
	calls := 0
	chain := NewFilterChain(zeroingFilter{}, countingFilter{calls: &calls})

	out, err := chain.FilterPCM([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, calls, "stage after a zero-length result must not run")
}
