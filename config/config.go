// Package config decodes the TOML file describing every configured
// output: its backend, queue depth, and format mask. It mirrors the
// teacher's own PlayerConfig, which already carried toml struct tags
// without ever wiring a decoder.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// DefaultQueueLength and DefaultSendTimeout mirror the teacher's own
// DefaultConfig values.
const (
	DefaultQueueLength = 100
	DefaultSendTimeout = 1000
)

// OutputConfig is one [[output]] table in the TOML file.
type OutputConfig struct {
	Name        string `toml:"name"`
	Backend     string `toml:"backend"`
	QueueLength int    `toml:"queue_length"`
	SendTimeout int    `toml:"send_timeout"`
	SendTag     bool   `toml:"send_tag"`

	// Codec selects the Opus encode path for the "discord" backend:
	// "opusenc" (default, spawns ffmpeg via dca, resamples on the way
	// in) or "opusraw" (in-process layeh.com/gopus, requires the
	// stream already be 48kHz stereo s16). Ignored by other backends.
	Codec string `toml:"codec"`

	// SourcePath is an MP3 file fed into the output on open. Left
	// empty, the output plays silence instead, so a configured output
	// always has something to open with.
	SourcePath string `toml:"source_path"`

	Format FormatMask `toml:"format"`
}

// FormatMask is the optional user-configured output format. A zero
// field leaves that dimension to whatever the filter chain produces.
// Bits is decoded but cmd/outputworkerd does not apply it; only
// SampleRate and Channels reach the worker's format mask.
type FormatMask struct {
	SampleRate uint32 `toml:"sample_rate"`
	Channels   uint8  `toml:"channels"`
	Bits       uint8  `toml:"bits"`
}

// Root is the top-level decoded document.
type Root struct {
	Outputs []OutputConfig `toml:"output"`
}

// Load decodes the TOML file at path into a Root, applying defaults
// and validating each output table.
func Load(path string) (*Root, error) {
	var root Root
	if _, err := toml.DecodeFile(path, &root); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	for i := range root.Outputs {
		applyDefaults(&root.Outputs[i])
		if err := validate(&root.Outputs[i]); err != nil {
			return nil, fmt.Errorf("config: output %q: %w", root.Outputs[i].Name, err)
		}
	}
	return &root, nil
}

func applyDefaults(o *OutputConfig) {
	if o.QueueLength <= 0 {
		o.QueueLength = DefaultQueueLength
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
}

func validate(o *OutputConfig) error {
	if o.Name == "" {
		return fmt.Errorf("name is required")
	}
	if o.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	return nil
}
