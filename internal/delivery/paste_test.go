package delivery

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) SetText(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type pasteCounter struct {
	calls int
	err   error
}

func (p *pasteCounter) paste() error {
	p.calls++
	return p.err
}

func TestDeliverCopiesAndPastes(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{}
	paster := &pasteCounter{}
	d := NewClipboardPaste(clip, Config{AutoPaste: true, PasteDelay: time.Millisecond}, zaptest.NewLogger(t), WithPaste(paster.paste))

	if err := d.Deliver(context.Background(), "Hello."); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if clip.text != "Hello." || paster.calls != 1 {
		t.Fatalf("unexpected delivery: clipboard=%q pastes=%d", clip.text, paster.calls)
	}
}

func TestDeliverWithoutAutoPasteOnlyCopies(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{}
	paster := &pasteCounter{}
	d := NewClipboardPaste(clip, Config{}, nil, WithPaste(paster.paste))

	if err := d.Deliver(context.Background(), "note"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if clip.text != "note" || paster.calls != 0 {
		t.Fatalf("unexpected delivery: clipboard=%q pastes=%d", clip.text, paster.calls)
	}
}

func TestDeliverClipboardFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("no display")
	paster := &pasteCounter{}
	d := NewClipboardPaste(&fakeClipboard{err: boom}, Config{AutoPaste: true}, nil, WithPaste(paster.paste))

	if err := d.Deliver(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected clipboard error, got %v", err)
	}
	if paster.calls != 0 {
		t.Fatalf("paste must not run after clipboard failure")
	}
}

func TestDeliverPasteFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	clip := &fakeClipboard{}
	paster := &pasteCounter{err: errors.New("accessibility denied")}
	d := NewClipboardPaste(clip, Config{AutoPaste: true}, zaptest.NewLogger(t), WithPaste(paster.paste))

	if err := d.Deliver(context.Background(), "kept"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if clip.text != "kept" {
		t.Fatalf("text should stay on the clipboard")
	}
}

func TestDeliverCanceledDuringDelaySkipsPaste(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clip := &fakeClipboard{}
	paster := &pasteCounter{}
	d := NewClipboardPaste(clip, Config{AutoPaste: true, PasteDelay: time.Hour}, nil, WithPaste(paster.paste))

	// SetText sees the canceled context only through the real clipboard.
	if err := d.Deliver(ctx, "x"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if paster.calls != 0 {
		t.Fatalf("expected paste to be skipped")
	}
}

func TestPasteModifier(t *testing.T) {
	t.Parallel()

	want := "ctrl"
	if runtime.GOOS == "darwin" {
		want = "cmd"
	}
	if got := pasteModifier(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSystemClipboardHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	var written string
	c := &SystemClipboard{write: func(s string) error { written = s; return nil }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.SetText(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if err := c.SetText(context.Background(), "y"); err != nil || written != "y" {
		t.Fatalf("unexpected write: %q %v", written, err)
	}
}
