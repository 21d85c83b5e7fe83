package stage

import (
	"github.com/eargollo/autofilebot/internal/failure"
)

// Stage is one directory-to-directory transition gated by a file count.
type Stage struct {
	Name      string
	Source    string
	Dest      string
	Threshold int
}

// Evaluation is the outcome of evaluating one Stage.
type Evaluation struct {
	Stage     Stage
	FileCount int
	Advanced  bool
	Batch     MoveBatch // zero unless Advanced
}

// CountFiles returns the number of regular files directly inside dir.
func (e *Engine) CountFiles(dir string) (int, error) {
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return 0, failure.IO("list", dir, err)
	}
	n := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// Evaluate moves everything from st.Source to st.Dest when the source holds
// at least st.Threshold regular files. A threshold of 0 always advances.
func (e *Engine) Evaluate(st Stage) (Evaluation, error) {
	ev := Evaluation{Stage: st}

	n, err := e.CountFiles(st.Source)
	if err != nil {
		return ev, err
	}
	ev.FileCount = n

	log := e.log.With("stage", st.Name, "dir", st.Source)
	if n < st.Threshold {
		log.Info("no action taken", "files", n, "threshold", st.Threshold)
		return ev, nil
	}

	log.Info("stage advancing", "files", n, "threshold", st.Threshold, "next", st.Dest)
	batch, err := e.MoveAll(st.Source, st.Dest)
	if err != nil {
		return ev, err
	}
	ev.Advanced = true
	ev.Batch = batch
	return ev, nil
}
