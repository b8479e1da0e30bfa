package main

import (
	"os"
	"sync"
	"time"
)

const DEFAULT_LOG_PATH = "./crossplay.log"

var (
	logFile *os.File
	logOnce sync.Once
)

// logMsg appends a timestamped line to the log file. The file is opened
// lazily; if it cannot be opened, messages go to stderr instead of
// aborting the session.
func logMsg(message string) {
	logOnce.Do(func() {
		path := os.Getenv("CROSSPLAY_LOG")
		if path == "" {
			path = DEFAULT_LOG_PATH
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			logFile = f
		}
	})

	line := time.Now().Format("2006-01-02 15:04:05.999") + " - " + message + "\n"
	if logFile != nil {
		logFile.WriteString(line)
		return
	}
	os.Stderr.WriteString(line)
}
