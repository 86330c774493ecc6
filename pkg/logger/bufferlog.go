// Package logger implements a per-import in-memory log buffer.
//
// Detail lines accumulate in the buffer while a file is being processed.
// On failure the buffer is replayed followed by the final error, so the log
// shows exactly what the importer saw.  On success the buffer is discarded
// and one short line is written instead.
//
// Thread safety comes from a dedicated logger goroutine fed by a command
// channel; no mutexes.
package logger

import (
	"bytes"
	"log"
	"strings"
	"time"
)

type action int

const (
	actBegin action = iota
	actAppend
	actSuccess
	actFlushErr
)

type cmd struct {
	act      action
	importID string
	message  string    // for Append
	filename string    // for Success
	err      error     // for FlushErr
	when     time.Time
}

// Buffered channel so bursts of detail lines never block the importer.
var ch = make(chan cmd, 128)

// Begin enables buffering for importID.
func Begin(importID string) { ch <- cmd{act: actBegin, importID: importID, when: time.Now()} }

// Append adds one detail line to the buffer.
func Append(importID, msg string) {
	ch <- cmd{act: actAppend, importID: importID, message: msg, when: time.Now()}
}

// Success drops the buffer and writes the short happy-path line.
func Success(importID, filename string) {
	ch <- cmd{act: actSuccess, importID: importID, filename: filename, when: time.Now()}
}

// FlushError replays the accumulated buffer and logs the final error.
func FlushError(importID string, err error) {
	ch <- cmd{act: actFlushErr, importID: importID, err: err, when: time.Now()}
}

func init() { go runloop() }

func runloop() {
	buffers := make(map[string]*bytes.Buffer)

	for c := range ch {
		switch c.act {
		case actBegin:
			buffers[c.importID] = &bytes.Buffer{}

		case actAppend:
			if b := buffers[c.importID]; b != nil {
				_, _ = b.WriteString(c.message + "\n")
			} else {
				log.Print(c.message) // no buffer, write through
			}

		case actSuccess:
			log.Printf("[%-6s][Import] ✔ processed %q", c.importID, c.filename)
			delete(buffers, c.importID)

		case actFlushErr:
			if b := buffers[c.importID]; b != nil {
				lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
				for _, ln := range lines {
					log.Print(ln)
				}
				delete(buffers, c.importID)
			}
			log.Printf("[%-6s][ERROR] %v", c.importID, c.err)
		}
	}
}
