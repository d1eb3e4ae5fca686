package logutil

import (
	"github.com/rs/zerolog"
)

// LevelSampler drops events under Level. Unlike zerolog.SetGlobalLevel, it
// only applies to the logger it's set on.
type LevelSampler struct {
	Level zerolog.Level
}

func (l LevelSampler) Sample(lvl zerolog.Level) bool {
	return lvl >= l.Level
}
