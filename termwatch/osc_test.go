package termwatch

import "testing"

func TestOSCParserOSC7(t *testing.T) {
	p := NewOSCParser()
	paths := p.Feed([]byte("\x1b]7;file://host/home/user\x07"))
	if len(paths) != 1 || paths[0] != "/home/user" {
		t.Fatalf("got %v, want [/home/user]", paths)
	}
}

func TestOSCParserOSC633(t *testing.T) {
	p := NewOSCParser()
	paths := p.Feed([]byte("\x1b]633;P;Cwd=/var/log\x1b\\"))
	if len(paths) != 1 || paths[0] != "/var/log" {
		t.Fatalf("got %v, want [/var/log]", paths)
	}
}

func TestOSCParserResumableAcrossSplits(t *testing.T) {
	full := "\x1b]7;file://host/home/user\x07\x1b]633;P;Cwd=/tmp\x1b\\"
	whole := NewOSCParser().Feed([]byte(full))

	for split := 0; split <= len(full); split++ {
		p := NewOSCParser()
		got := append(p.Feed([]byte(full[:split])), p.Feed([]byte(full[split:]))...)
		if len(got) != len(whole) {
			t.Fatalf("split at %d: got %v, want %v", split, got, whole)
		}
		for i := range got {
			if got[i] != whole[i] {
				t.Fatalf("split at %d: got %v, want %v", split, got, whole)
			}
		}
	}
}

func TestOSCParserOverflowDropsPayloadOnly(t *testing.T) {
	p := NewOSCParser()

	oversized := make([]byte, oscBufSize+64)
	for i := range oversized {
		oversized[i] = 'x'
	}
	var buf []byte
	buf = append(buf, "\x1b]7;file://host/"...)
	buf = append(buf, oversized...)
	buf = append(buf, 0x07)

	paths := p.Feed(buf)
	if len(paths) != 0 {
		t.Fatalf("expected the oversized payload to be dropped, got %v", paths)
	}

	// subsequent sequences are unaffected
	paths = p.Feed([]byte("\x1b]633;P;Cwd=/tmp\x07"))
	if len(paths) != 1 || paths[0] != "/tmp" {
		t.Fatalf("got %v, want [/tmp]", paths)
	}
}

func TestPWDDetectorDedup(t *testing.T) {
	d := NewPWDDetector()
	w := d.Watch()

	d.Feed([]byte("\x1b]7;file://host/home/user\x07"))
	d.Feed([]byte("\x1b]7;file://host/home/user\x07")) // redundant

	ctx := testContext(t)
	got, err := w.Changed(ctx)
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if got != "/home/user" {
		t.Fatalf("got %q", got)
	}

	select {
	case <-w.w.ch:
		t.Fatal("expected exactly one broadcast")
	default:
	}
}

func TestProcessPayloadEmptyNotEmitted(t *testing.T) {
	if _, ok := processPayload("633;P;Cwd="); ok {
		t.Fatal("empty decoded path must not be emitted")
	}
}

func TestProcessPayloadUnknownPrefix(t *testing.T) {
	if _, ok := processPayload("0;window-title"); ok {
		t.Fatal("unrecognized OSC payload must not be emitted")
	}
}
