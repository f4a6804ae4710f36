package termwatch

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// oscState is the OSC parser's tiny finite automaton.
type oscState int

const (
	oscNormal oscState = iota
	oscEscape
	oscInOSC
	oscOSCEscape
)

const oscBufSize = 2048

// OSCParser is a stateful, resumable parser for the OSC 7 and OSC 633
// shell-integration sequences that report the remote working directory.
// Feed may be called with arbitrarily split chunks; any single payload
// longer than the configured buffer is silently dropped without affecting
// subsequent sequences.
type OSCParser struct {
	state oscState
	buf   []byte
}

// NewOSCParser returns a parser ready to consume the first byte.
func NewOSCParser() *OSCParser {
	return &OSCParser{state: oscNormal}
}

// Feed consumes b and returns the PWD values reported by any complete
// sequences within it, in order.
func (p *OSCParser) Feed(b []byte) []string {
	var paths []string
	for _, c := range b {
		if path, ok := p.step(c); ok {
			paths = append(paths, path)
		}
	}
	return paths
}

func (p *OSCParser) reset() {
	p.state = oscNormal
	p.buf = p.buf[:0]
}

func (p *OSCParser) step(c byte) (string, bool) {
	switch p.state {
	case oscNormal:
		if c == 0x1b {
			p.state = oscEscape
		}
		return "", false

	case oscEscape:
		if c == ']' {
			p.buf = p.buf[:0]
			p.state = oscInOSC
		} else {
			p.state = oscNormal
		}
		return "", false

	case oscInOSC:
		switch c {
		case 0x07:
			path, ok := processPayload(string(p.buf))
			p.reset()
			return path, ok
		case 0x1b:
			p.state = oscOSCEscape
		default:
			if len(p.buf) >= oscBufSize {
				p.reset()
				return "", false
			}
			p.buf = append(p.buf, c)
		}
		return "", false

	case oscOSCEscape:
		switch c {
		case '\\':
			path, ok := processPayload(string(p.buf))
			p.reset()
			return path, ok
		case ']':
			p.buf = p.buf[:0]
			p.state = oscInOSC
		case 0x1b:
			p.state = oscEscape
		default:
			p.state = oscNormal
		}
		return "", false
	}
	return "", false
}

// processPayload extracts a PWD path from an OSC 7 or OSC 633;P;Cwd=
// payload. An empty decoded path is not reported.
func processPayload(payload string) (string, bool) {
	var raw string
	switch {
	case strings.HasPrefix(payload, "7;"):
		rest := payload[len("7;"):]
		const marker = "file://"
		if !strings.HasPrefix(rest, marker) {
			return "", false
		}
		rest = rest[len(marker):]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return "", false
		}
		raw = rest[slash:]
	case strings.HasPrefix(payload, "633;P;Cwd="):
		raw = payload[len("633;P;Cwd="):]
	default:
		return "", false
	}

	decoded := percentDecode(raw)
	if !utf8.ValidString(decoded) {
		decoded = raw
	}
	if decoded == "" {
		return "", false
	}
	return decoded, true
}

// PWDDetector holds the remote shell's last-reported working directory and
// publishes transitions to watchers. The PTY actor is the sole writer (via
// Feed); the PTY handle and any number of Watchers are readers.
type PWDDetector struct {
	mu     sync.Mutex
	parser *OSCParser
	w      *watch[string]
}

// NewPWDDetector returns a detector with no PWD reported yet.
func NewPWDDetector() *PWDDetector {
	return &PWDDetector{
		parser: NewOSCParser(),
		w:      newWatch(""),
	}
}

// Feed parses b and publishes a broadcast only on a real PWD change. Must
// be called from a single writer goroutine.
func (d *PWDDetector) Feed(b []byte) {
	d.mu.Lock()
	paths := d.parser.Feed(b)
	d.mu.Unlock()

	for _, p := range paths {
		if p != d.w.get() {
			d.w.publish(p)
		}
	}
}

// Current returns the current PWD without suspending; empty if never
// reported.
func (d *PWDDetector) Current() string {
	return d.w.get()
}

// Watch returns a new Watcher observing this detector's transitions.
func (d *PWDDetector) Watch() *Watcher[string] {
	return newWatcher(d.w)
}

// Release marks the detector as having no more writers.
func (d *PWDDetector) Release() {
	d.w.release()
}
