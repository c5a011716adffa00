package utils

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// LogEntry is one structured record from a pipeline log file.
type LogEntry struct {
	Timestamp  string `json:"time"`
	Level      string `json:"level"`
	Tool       string `json:"msg"`
	Stage      string `json:"STAGE"`
	Chromosome string `json:"CHROMOSOME"`
	Trait      string `json:"TRAIT"`
	Status     string `json:"STATUS"`
	Cmd        string `json:"CMD"`
}

// NewPipelineLogger appends JSON records to logPath and mirrors them as text
// on stderr. The JSON file doubles as the resume checkpoint store.
func NewPipelineLogger(logPath string) (*slog.Logger, io.Closer, error) {
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slogmulti.Fanout(
		slog.NewJSONHandler(logFile, nil),
		slog.NewTextHandler(os.Stderr, nil),
	))
	return logger, logFile, nil
}

// ParseLogFile reads the JSON pipeline log. A missing file yields no entries;
// unparseable lines are skipped.
func ParseLogFile(logPath string) []LogEntry {
	file, err := os.Open(logPath)
	if err != nil {
		return nil
	}
	defer file.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// StageHasCompleted reports whether a COMPLETED record exists for the given
// stage/chromosome/trait tuple.
func StageHasCompleted(entries []LogEntry, stage, chromosome, trait string) bool {
	for _, e := range entries {
		if e.Stage == stage && e.Chromosome == chromosome && e.Trait == trait && e.Status == "COMPLETED" {
			return true
		}
	}
	return false
}
