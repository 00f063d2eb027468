// Command outputworkerd runs one or more output workers from a TOML
// config file, each backed by a local speaker (oto), a Discord voice
// channel, or the null sink, grounded on the teacher's own
// examples/discord/main.go and examples/native/main.go flag-driven
// wiring.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mpdgo/outputworker"
	"github.com/mpdgo/outputworker/backend/discord"
	"github.com/mpdgo/outputworker/backend/null"
	"github.com/mpdgo/outputworker/backend/oto"
	"github.com/mpdgo/outputworker/chunkpipe"
	"github.com/mpdgo/outputworker/config"
	"github.com/mpdgo/outputworker/filter/convert"
	"github.com/mpdgo/outputworker/filter/opusenc"
	"github.com/mpdgo/outputworker/filter/opusraw"
	"github.com/mpdgo/outputworker/filter/replaygain"
	"github.com/mpdgo/outputworker/outlog"
)

func main() {
	configPath := flag.String("config", "outputs.toml", "path to TOML output config")
	token := flag.String("t", "", "discord bot token, required if any output backend is \"discord\"")
	guildID := flag.String("g", "", "discord guild ID, required if any output backend is \"discord\"")
	channelID := flag.String("c", "", "discord voice channel ID, required if any output backend is \"discord\"")
	flag.Parse()

	root, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	log, err := outlog.New(outlog.DefaultConfig())
	if err != nil {
		fatal(err)
	}
	defer log.Sync()

	var session *discordgo.Session
	if needsDiscord(root) {
		session, err = discordgo.New("Bot " + *token)
		if err != nil {
			fatal(err)
		}
		if err := session.Open(); err != nil {
			fatal(err)
		}
		defer session.Close()
	}

	workers := make([]*outputworker.OutputWorker, 0, len(root.Outputs))
	for _, oc := range root.Outputs {
		backendPort, err := newBackend(oc, session, *guildID, *channelID)
		if err != nil {
			fatal(err)
		}

		source, err := newSource(oc)
		if err != nil {
			fatal(err)
		}

		var stages []outputworker.FilterPort
		if oc.Backend == "discord" {
			stages = append(stages, newCodec(oc))
		}
		chain := outputworker.NewFilterChain(stages...)
		convertFilter := convert.New()
		rgFilter := replaygain.New(replaygain.ModeTrack)

		state := outputworker.NewOutputState(oc.Name, oc.Backend, backendPort,
			outputworker.WithLogger(log.With("output", oc.Name, "backend", oc.Backend)),
			outputworker.WithFilterChain(chain, convertFilter, rgFilter, replaygain.New(replaygain.ModeTrack)),
			outputworker.WithSendTag(oc.SendTag),
			outputworker.WithConfigFormat(outputworker.AudioFormat{
				SampleRate: oc.Format.SampleRate,
				Channels:   oc.Format.Channels,
			}),
		)

		pipe := chunkpipe.New(oc.QueueLength, chunkpipe.WithOnPush(func() {
			state.SetAllowPlay(true)
		}))
		feeder := chunkpipe.NewFeeder(pipe, source,
			chunkpipe.WithPushTimeout(time.Duration(oc.SendTimeout)*time.Millisecond),
			chunkpipe.WithOnEnd(func(elapsed time.Duration, feedErr error) {
				log.With("output", oc.Name).Info("feed ended", "elapsed", elapsed, "err", feedErr)
			}),
		)

		state.SetPipe(pipe)
		state.SetInAudioFormat(source.Format())

		worker := outputworker.NewWorker(state)
		workers = append(workers, worker)
		go worker.Run()
		state.Enable()
		state.Open()
		go feeder.Feed()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	for _, w := range workers {
		w.State().Kill()
	}
	time.Sleep(100 * time.Millisecond)
}

func needsDiscord(root *config.Root) bool {
	for _, oc := range root.Outputs {
		if oc.Backend == "discord" {
			return true
		}
	}
	return false
}

func newBackend(oc config.OutputConfig, session *discordgo.Session, guildID, channelID string) (outputworker.BackendPort, error) {
	switch oc.Backend {
	case "oto":
		return oto.New(), nil
	case "discord":
		return discord.New(session, guildID, channelID, time.Duration(oc.SendTimeout)*time.Millisecond), nil
	case "null", "":
		return null.New(), nil
	default:
		return null.New(), nil
	}
}

// newSource opens oc's configured MP3 file, or falls back to a
// placeholder silence source so an output can always be opened even
// before a real audio source is wired up.
func newSource(oc config.OutputConfig) (chunkpipe.SourceCloser, error) {
	if oc.SourcePath == "" {
		return chunkpipe.NewSilenceSource(defaultInputFormat(oc)), nil
	}
	f, err := os.Open(oc.SourcePath)
	if err != nil {
		return nil, err
	}
	return chunkpipe.NewMP3Source(f)
}

// defaultInputFormat picks a sample rate and channel count for the
// silence source when oc.Format does not pin one down. Discord voice
// always carries 48kHz stereo; every other backend defaults to CD
// quality.
func defaultInputFormat(oc config.OutputConfig) outputworker.AudioFormat {
	format := outputworker.AudioFormat{
		SampleRate: 44100,
		Format:     outputworker.SampleFormatS16,
		Channels:   2,
	}
	if oc.Backend == "discord" {
		format.SampleRate = 48000
	}
	if oc.Format.SampleRate != 0 {
		format.SampleRate = oc.Format.SampleRate
	}
	if oc.Format.Channels != 0 {
		format.Channels = oc.Format.Channels
	}
	return format
}

func newCodec(oc config.OutputConfig) outputworker.FilterPort {
	switch oc.Codec {
	case "opusraw":
		return opusraw.New(opusraw.DefaultConfig())
	default:
		return opusenc.New(nil)
	}
}

func fatal(err error) {
	log.Fatal(err)
}
