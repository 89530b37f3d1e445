// Package transfer copies the line segmentation of one text onto another,
// similar text.
//
// The machine transcript of a recording carries one line per audio segment.
// The human reference is a single block of text with the same content but
// different spelling. [DiffTransferer] anchors both texts on a character diff
// and moves every line break of the machine transcript to the corresponding
// position in the reference.
package transfer

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Transferer applies the delimiter positions of source to target. The result
// is target with exactly as many delimiters as source carries.
type Transferer interface {
	Transfer(ctx context.Context, source, delimiter, target string) (string, error)
}

const (
	defaultSnapWindow  = 12
	defaultDiffTimeout = 5 * time.Second
)

// Option configures a [DiffTransferer].
type Option func(*DiffTransferer)

// WithSnapWindow sets how many runes a mapped break may move to land on
// whitespace. Zero disables snapping. Default: 12.
func WithSnapWindow(runes int) Option {
	return func(d *DiffTransferer) { d.snapWindow = max(runes, 0) }
}

// WithDiffTimeout bounds the time spent computing the character diff. The
// diff degrades to a coarser but still valid result when the limit is hit.
// Default: 5s.
func WithDiffTimeout(t time.Duration) Option {
	return func(d *DiffTransferer) { d.timeout = t }
}

// DiffTransferer implements [Transferer] with a character diff. It is safe
// for concurrent use.
type DiffTransferer struct {
	snapWindow int
	timeout    time.Duration
}

var _ Transferer = (*DiffTransferer)(nil)

// New returns a DiffTransferer.
func New(opts ...Option) *DiffTransferer {
	d := &DiffTransferer{
		snapWindow: defaultSnapWindow,
		timeout:    defaultDiffTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Transfer implements [Transferer]. Each output line is trimmed of
// surrounding whitespace. Breaks never move backwards, so lines stay in
// source order even where the texts diverge.
func (d *DiffTransferer) Transfer(ctx context.Context, source, delimiter, target string) (string, error) {
	if delimiter == "" {
		return "", errors.New("transfer: empty delimiter")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	parts := strings.Split(source, delimiter)
	stripped := strings.Join(parts, "")

	// Byte offsets of each delimiter inside the stripped source.
	offsets := make([]int, 0, len(parts)-1)
	at := 0
	for _, p := range parts[:len(parts)-1] {
		at += len(p)
		offsets = append(offsets, at)
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = d.timeout
	diffs := dmp.DiffMain(stripped, target, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	lines := make([]string, 0, len(parts))
	prev := 0
	for _, off := range offsets {
		pos := dmp.DiffXIndex(diffs, off)
		pos = min(max(pos, prev), len(target))
		for pos > prev && pos < len(target) && !utf8.RuneStart(target[pos]) {
			pos--
		}
		pos = d.snap(target, pos, prev)
		lines = append(lines, strings.TrimSpace(target[prev:pos]))
		prev = pos
	}
	lines = append(lines, strings.TrimSpace(target[prev:]))

	return strings.Join(lines, delimiter), nil
}

// snap moves pos to the closest whitespace rune within the snap window,
// preferring the earlier position on ties and never going below floor.
func (d *DiffTransferer) snap(s string, pos, floor int) int {
	if d.snapWindow == 0 || pos <= 0 || pos >= len(s) || isSpaceAt(s, pos) || isSpaceBefore(s, pos) {
		return pos
	}
	back, fwd := pos, pos
	for range d.snapWindow {
		if back > floor {
			_, size := utf8.DecodeLastRuneInString(s[:back])
			back -= size
			if isSpaceAt(s, back) {
				return back
			}
		}
		if fwd < len(s) {
			_, size := utf8.DecodeRuneInString(s[fwd:])
			fwd += size
			if fwd < len(s) && isSpaceAt(s, fwd) {
				return fwd
			}
		}
	}
	return pos
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

func isSpaceBefore(s string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsSpace(r)
}
