// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logshim turns the output of a command into log lines.  Complete
// lines are passed to the log function as they arrive.  A trailing partial
// line is held for up to flushTimeout waiting for its newline and is then
// logged as is.
package logshim

import (
	"bytes"
	"sync"
	"time"
)

// A Writer is an io.Writer that logs every line written to it.
type Writer struct {
	mu      sync.Mutex
	prefix  []interface{}
	partial []byte
	timer   *time.Timer
	done    chan struct{} // closed by Close
	flushed chan struct{} // closed once the final partial line is written
	log     func(...interface{})
}

const flushTimeout = time.Minute

var testChannel chan struct{}

// New returns a Writer that sends each complete line to f.
func New(f func(...interface{})) *Writer {
	w := &Writer{
		timer:   time.NewTimer(time.Hour),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		log:     f,
	}
	w.timer.Stop()
	go w.loop()
	return w
}

// NewPrefixed is like New but passes prefix to f ahead of each line.
func NewPrefixed(prefix string, f func(...interface{})) *Writer {
	w := New(f)
	w.prefix = []interface{}{prefix}
	return w
}

func (w *Writer) loop() {
	for {
		select {
		case <-w.timer.C:
			w.flush()
		case <-w.done:
			w.flush()
			close(w.flushed)
			return
		}
	}
}

// Close stops w.  It does not return until any buffered data has been
// logged.
func (w *Writer) Close() {
	close(w.done)
	<-w.flushed
}

// Write implements io.Writer.
func (w *Writer) Write(buf []byte) (int, error) {
	n := len(buf)
	if n == 0 {
		return 0, nil
	}

	w.mu.Lock()
	buf = append(w.partial, buf...)
	lines := bytes.Split(buf, []byte{'\n'})
	if last := len(lines) - 1; buf[len(buf)-1] != '\n' {
		w.partial = lines[last]
		lines = lines[:last]
		w.timer.Stop()
		w.timer.Reset(flushTimeout)
	} else {
		// Split leaves an empty final element after the trailing newline.
		w.partial = nil
		lines = lines[:last]
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.emit(line)
	}
	return n, nil
}

func (w *Writer) emit(line []byte) {
	w.log(append(append([]interface{}{}, w.prefix...), string(line))...)
}

// flush logs any partial line.
func (w *Writer) flush() {
	w.mu.Lock()
	w.timer.Stop()
	line := w.partial
	w.partial = nil
	w.mu.Unlock()

	if len(line) > 0 {
		w.emit(line)
	}
	if testChannel != nil {
		close(testChannel)
		testChannel = nil
	}
}
