package pipeline

import (
	"time"

	"github.com/dgallion1/plandag/internal/outline"
)

// Compiler runs the outline compiler with the configured deadline
// look-behind and records each run in Stats.
type Compiler struct {
	LookBehind float64
	Stats      *CompileStats // optional
}

// Key identifies a compile input. It changes when the text changes or when
// now moves far enough to resolve a partial deadline differently.
func (c *Compiler) Key(text string, now time.Time) string {
	window := outline.Options{Now: now, LookBehind: c.LookBehind}.DeadlineWindow()
	return ContentHashHex([]byte(window + "\n" + text))
}

// Compile compiles text, inferring partial deadline years relative to now.
func (c *Compiler) Compile(text string, now time.Time) (*outline.DAG, error) {
	start := time.Now()
	dag, err := outline.Compile(text, outline.Options{Now: now, LookBehind: c.LookBehind})
	if c.Stats != nil {
		c.Stats.Record(time.Since(start), err)
	}
	return dag, err
}
