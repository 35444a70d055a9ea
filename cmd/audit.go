package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sidelink-sim/ore-engine/internal/fsutil"
)

const auditFileName = "README.txt"

// auditTimeLayout matches the timestamps already present in simulator READMEs.
const auditTimeLayout = "2006-01-02 15:04:05.000000"

// auditRecord appends run start and termination lines to README.txt in the
// output directory. Earlier runs' lines are kept.
type auditRecord struct {
	RunID string

	fs   fsutil.FileSystem
	path string
	now  func() time.Time
}

func newAuditRecord(fs fsutil.FileSystem, dir string) *auditRecord {
	return &auditRecord{
		RunID: uuid.New().String(),
		fs:    fs,
		path:  filepath.Join(dir, auditFileName),
		now:   time.Now,
	}
}

// Start records the run id, inputs and starting time.
func (a *auditRecord) Start(configPath, eventsPath string) error {
	text := fmt.Sprintf("\n\nSelection engine run %s\nConfig: %s\nEvents: %s\nEngine starting time: %s",
		a.RunID, configPath, eventsPath, a.now().Format(auditTimeLayout))
	return a.fs.AppendFile(a.path, []byte(text), 0o644)
}

// Finish records the ending time and, for a failed run, the error.
func (a *auditRecord) Finish(runErr error) error {
	text := "\n\nSimulation ending time: " + a.now().Format(auditTimeLayout)
	if runErr != nil {
		text += "\nTerminated with error: " + runErr.Error()
	}
	return a.fs.AppendFile(a.path, []byte(text+"\n"), 0o644)
}
