package termwatch

import "sync"

// Mode is the alternate-screen-buffer state of a remote terminal.
type Mode int

const (
	// StandardMode is the normal scrollback screen buffer.
	StandardMode Mode = iota
	// AltMode is the alternate screen buffer used by full-screen programs.
	AltMode
)

func (m Mode) String() string {
	if m == AltMode {
		return "alt"
	}
	return "standard"
}

// altState is the alt-mode parser's tiny finite automaton.
type altState int

const (
	altNormal altState = iota
	altEscape
	altCSI
	altModeSeq
)

const altModeBufSize = 256

// AltModeParser is a stateful, resumable parser for the CSI DEC private
// mode sequences that toggle the alternate screen buffer
// (ESC [ ? 47 {h,l} and ESC [ ? 1049 {h,l}). Feed may be called with
// arbitrarily split chunks of the byte stream; the parser's state survives
// across calls.
type AltModeParser struct {
	state altState
	buf   []byte
}

// NewAltModeParser returns a parser ready to consume the first byte.
func NewAltModeParser() *AltModeParser {
	return &AltModeParser{state: altNormal}
}

// Feed consumes b and returns the Mode transitions it caused, in order.
// Most input produces no events.
func (p *AltModeParser) Feed(b []byte) []Mode {
	var events []Mode
	for _, c := range b {
		if ev, ok := p.step(c); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (p *AltModeParser) reset() {
	p.state = altNormal
	p.buf = p.buf[:0]
}

func (p *AltModeParser) step(c byte) (Mode, bool) {
	switch p.state {
	case altNormal:
		if c == 0x1b {
			p.buf = append(p.buf[:0], c)
			p.state = altEscape
		}
		return 0, false

	case altEscape:
		p.buf = append(p.buf, c)
		if c == '[' {
			p.state = altCSI
		} else {
			p.reset()
		}
		return 0, false

	case altCSI:
		p.buf = append(p.buf, c)
		switch {
		case c == '?':
			p.state = altModeSeq
		case c >= '0' && c <= '9' || c == ';':
			// stay in CSI
		default:
			p.reset()
		}
		return 0, false

	case altModeSeq:
		if len(p.buf) >= altModeBufSize {
			p.reset()
			return 0, false
		}
		p.buf = append(p.buf, c)

		switch {
		case c == 'h':
			seq := string(p.buf[2:]) // drop "ESC ["
			p.reset()
			if seq == "?47h" || seq == "?1049h" {
				return AltMode, true
			}
			return 0, false
		case c == 'l':
			seq := string(p.buf[2:])
			p.reset()
			if seq == "?47l" || seq == "?1049l" {
				return StandardMode, true
			}
			return 0, false
		case c >= '0' && c <= '9':
			// still accumulating the mode number
			return 0, false
		default:
			p.reset()
			return 0, false
		}
	}
	return 0, false
}

// ModeDetector holds the current alt-screen mode and publishes transitions
// to watchers. The PTY actor is the sole writer (via Feed); the PTY handle
// and any number of Watchers are readers.
type ModeDetector struct {
	mu     sync.Mutex
	parser *AltModeParser
	w      *watch[Mode]
}

// NewModeDetector returns a detector starting in StandardMode.
func NewModeDetector() *ModeDetector {
	return &ModeDetector{
		parser: NewAltModeParser(),
		w:      newWatch(StandardMode),
	}
}

// Feed parses b and publishes a broadcast only on a real mode transition.
// Must be called from a single writer goroutine.
func (d *ModeDetector) Feed(b []byte) {
	d.mu.Lock()
	events := d.parser.Feed(b)
	d.mu.Unlock()

	for _, m := range events {
		if m != d.w.get() {
			d.w.publish(m)
		}
	}
}

// Current returns the current mode without suspending.
func (d *ModeDetector) Current() Mode {
	return d.w.get()
}

// Watch returns a new Watcher observing this detector's transitions.
func (d *ModeDetector) Watch() *Watcher[Mode] {
	return newWatcher(d.w)
}

// Release marks the detector as having no more writers. Pending and
// future Watcher.Changed calls on its watchers return ErrSessionEnded.
func (d *ModeDetector) Release() {
	d.w.release()
}
