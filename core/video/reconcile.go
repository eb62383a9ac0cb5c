package video

import (
	"math/rand"
	"strconv"
)

// Plan says how to cut the background so it lasts exactly Duration seconds.
type Plan struct {
	Start    float64 // offset into the source when trimming
	Loop     bool    // repeat the source to cover Duration
	Duration float64
}

// Reconcile matches a background of bgDuration to audio of audioDuration.
// A longer background yields a random sub-range, a shorter one is looped and
// cut. Plan.Duration always equals audioDuration.
func Reconcile(bgDuration, audioDuration float64, rng *rand.Rand) Plan {
	p := Plan{Duration: audioDuration}
	switch {
	case bgDuration > audioDuration:
		p.Start = rng.Float64() * (bgDuration - audioDuration)
	case bgDuration < audioDuration:
		p.Loop = true
	}
	return p
}

// InputArgs are the ffmpeg input options that apply p to path.
func (p Plan) InputArgs(path string) []string {
	var args []string
	if p.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	if p.Start > 0 {
		args = append(args, "-ss", seconds(p.Start))
	}
	return append(args, "-t", seconds(p.Duration), "-i", path)
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
