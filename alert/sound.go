package alert

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/anchorhq/anchor/internal/config"
	"github.com/anchorhq/anchor/internal/static"
)

var errInvalidSoundFormat = errors.New(
	"sound file must be in mp3, ogg, flac, or wav format",
)

// resolveSound maps an extensionless built-in sound name such as "bell" to
// its copied default asset in the data directory. Explicit file paths are
// returned unchanged.
func resolveSound(sound string) string {
	if filepath.Ext(sound) != "" {
		return sound
	}

	return static.FilePath(sound + ".wav")
}

// prepSoundStream returns an audio stream for the specified sound file. The
// stream owns the underlying file handle; closing the stream closes it.
func prepSoundStream(sound string) (beep.StreamSeekCloser, error) {
	sound = resolveSound(sound)

	f, err := os.Open(sound)
	if err != nil {
		return nil, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)

	switch filepath.Ext(sound) {
	case ".ogg":
		stream, format, err = vorbis.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	default:
		_ = f.Close()
		return nil, errInvalidSoundFormat
	}

	if err != nil {
		_ = f.Close()
		return nil, err
	}

	bufferSize := 10

	err = speaker.Init(
		format.SampleRate,
		format.SampleRate.N(time.Duration(int(time.Second)/bufferSize)),
	)
	if err != nil {
		return nil, err
	}

	err = stream.Seek(0)
	if err != nil {
		return nil, err
	}

	return stream, nil
}

// Chime plays the configured check sound and blocks until it completes.
func Chime(cfg *config.Config) {
	sound := cfg.Notifications.Sound
	if !cfg.Notifications.Chime || sound == "" {
		return
	}

	stream, err := prepSoundStream(sound)
	if err != nil {
		slog.Error("unable to play sound", "error", err)
		return
	}

	done := make(chan bool)

	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		done <- true
	})))

	<-done

	_ = stream.Close()

	speaker.Clear()
}
