// Package discord wraps a discordgo voice connection's OpusSend
// channel as an outputworker.BackendPort, grounded on the teacher's
// own discordWriter in writer.go and the channel-join logic in
// voice.go's payloadSender.
package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/mpdgo/outputworker"
)

// Backend sends pre-encoded Opus frames to a single Discord voice
// channel. Unlike the teacher's Player, which reopened a connection
// per enqueued Payload, a Backend is opened once per device session
// and reused across OPEN/CLOSE/REOPEN, matching BackendPort's
// contract that Open/Close bracket one output lifetime.
type Backend struct {
	session     *discordgo.Session
	guildID     string
	channelID   string
	sendTimeout time.Duration

	vconn   *discordgo.VoiceConnection
	enabled bool
}

// New returns a backend that joins channelID in guildID on Open.
func New(session *discordgo.Session, guildID, channelID string, sendTimeout time.Duration) *Backend {
	return &Backend{
		session:     session,
		guildID:     guildID,
		channelID:   channelID,
		sendTimeout: sendTimeout,
	}
}

func (b *Backend) Enable() error {
	if !validVoiceChannel(b.session, b.channelID) {
		return errors.New("discord: not a voice channel")
	}
	b.enabled = true
	return nil
}

func (b *Backend) Disable() {
	b.enabled = false
}

// Open joins the voice channel. format is ignored: Discord voice
// always carries 48kHz stereo Opus, produced upstream by
// filter/opusenc or filter/opusraw before frames reach Play.
func (b *Backend) Open(outputworker.AudioFormat) error {
	vconn, err := b.session.ChannelVoiceJoin(b.guildID, b.channelID, false, true)
	if err != nil {
		return errors.Wrap(err, "discord: join channel")
	}
	b.vconn = vconn
	return vconn.Speaking(true)
}

func (b *Backend) Close() {
	if b.vconn != nil {
		_ = b.vconn.Speaking(false)
		_ = b.vconn.Disconnect()
		b.vconn = nil
	}
}

// Play sends one Opus frame, honoring the same send-timeout discipline
// as the teacher's discordWriter.Write. A timeout or closed connection
// reports zero bytes written, the contract BackendPort.Play documents
// as an unrecoverable failure.
func (b *Backend) Play(frame []byte) (int, error) {
	if !b.ready() {
		return 0, errors.New("discord: voice connection not ready")
	}
	select {
	case b.vconn.OpusSend <- frame:
		return len(frame), nil
	case <-time.After(b.sendTimeout):
		return 0, errors.Errorf("discord: send timeout after %v", b.sendTimeout)
	}
}

func (b *Backend) ready() bool {
	if b.vconn == nil {
		return false
	}
	b.vconn.RLock()
	defer b.vconn.RUnlock()
	return b.vconn.ChannelID == b.channelID && b.vconn.Ready
}

func (b *Backend) Pause() error {
	if b.vconn != nil {
		return b.vconn.Speaking(false)
	}
	return nil
}

func (b *Backend) Drain() {}

func (b *Backend) Cancel() {}

// Delay estimates outstanding buffered audio from the OpusSend
// channel's backlog; discordgo does not expose a hardware clock.
func (b *Backend) Delay() time.Duration {
	if b.vconn == nil {
		return 0
	}
	const opusFrameDuration = 20 * time.Millisecond
	return time.Duration(len(b.vconn.OpusSend)) * opusFrameDuration
}

func (b *Backend) SendTag(*outputworker.MusicTag) error {
	return nil
}

func validVoiceChannel(s *discordgo.Session, channelID string) bool {
	channel, err := s.State.Channel(channelID)
	if err != nil {
		channel, err = s.Channel(channelID)
	}
	return err == nil && channel.Type == discordgo.ChannelTypeGuildVoice
}
