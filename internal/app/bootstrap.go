package app

import (
	"speechspy/internal/speech"
	logx "speechspy/pkg/logx"
)

type Option func(*App)

// WithSpeaker sets the host speaker the speech hook wraps. Without it the app
// registers a speaker that only logs what it would have said.
func WithSpeaker(sp speech.Speaker) Option {
	return func(a *App) { a.base = sp }
}

// WithLogger replaces the logger built from the config file.
func WithLogger(log logx.Logger) Option {
	return func(a *App) { a.logOverride = log }
}

func logSpeaker(log logx.Logger) speech.Speaker {
	return speech.SpeakerFunc(func(seq speech.Sequence, opts speech.Options) error {
		log.Debug("speak",
			logx.String("text", seq.Join(" ")),
			logx.String("priority", opts.Priority.String()),
		)
		return nil
	})
}
