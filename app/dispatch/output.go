package dispatch

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

const prefixIDMaxLen = 12

// itemOutput collects output of a work item command. Complete lines go to dst, marked with
// the item id if prefixing is on, and the last maxTail non-empty lines are kept for the failure report.
// A line split across writes is held until its newline arrives or Flush is called.
type itemOutput struct {
	mu      sync.Mutex
	dst     io.Writer
	prefix  []byte
	partial []byte
	tail    []string
	maxTail int
}

func newItemOutput(dst io.Writer, id string, withPrefix bool, maxTail int) *itemOutput {
	res := &itemOutput{dst: dst, maxTail: maxTail}
	if withPrefix {
		res.prefix = prefixForID(id)
	}
	return res
}

// Write satisfies io.Writer, safe for concurrent use by stdout and stderr copiers
func (o *itemOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.partial = append(o.partial, p...)
	rest := o.partial
	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx < 0 {
			break
		}
		if err := o.emit(rest[:idx+1]); err != nil {
			return 0, err
		}
		rest = rest[idx+1:]
	}
	o.partial = append([]byte(nil), rest...)
	return len(p), nil
}

// Flush emits pending partial line, if any
func (o *itemOutput) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.partial) == 0 {
		return nil
	}
	line := append(o.partial, '\n')
	o.partial = nil
	return o.emit(line)
}

// Tail returns kept lines joined with new lines
func (o *itemOutput) Tail() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.tail, "\n")
}

// emit writes a single line ending with newline, caller holds the lock
func (o *itemOutput) emit(line []byte) error {
	if o.maxTail > 0 {
		if text := strings.TrimRight(string(line), "\r\n"); text != "" {
			if len(o.tail) >= o.maxTail {
				o.tail = o.tail[1:]
			}
			o.tail = append(o.tail, text)
		}
	}
	if len(o.prefix) == 0 {
		_, err := o.dst.Write(line)
		return err
	}
	buf := make([]byte, 0, len(o.prefix)+len(line))
	buf = append(append(buf, o.prefix...), line...)
	_, err := o.dst.Write(buf)
	return err
}

func prefixForID(id string) []byte {
	if len(id) > prefixIDMaxLen {
		id = id[:prefixIDMaxLen] + "..."
	}
	return []byte("{" + id + "} ")
}
