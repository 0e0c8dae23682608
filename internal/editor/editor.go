package editor

import (
	"sync"
	"unicode/utf8"
)

// Editor is the capability the workspace needs from the text editor widget.
// Offsets are rune offsets into Text().
type Editor interface {
	Text() string
	Cursor() int
	InsertAt(offset int, text string)
}

// Buffer is an in-memory Editor. The cursor moves past inserted text.
type Buffer struct {
	mu     sync.Mutex
	text   []rune
	cursor int
}

func NewBuffer(text string) *Buffer {
	b := &Buffer{}
	b.SetText(text)
	return b
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = []rune(text)
	b.cursor = len(b.text)
}

func (b *Buffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

func (b *Buffer) SetCursor(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = clamp(offset, len(b.text))
}

func (b *Buffer) InsertAt(offset int, text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	offset = clamp(offset, len(b.text))
	ins := []rune(text)
	out := make([]rune, 0, len(b.text)+len(ins))
	out = append(out, b.text[:offset]...)
	out = append(out, ins...)
	out = append(out, b.text[offset:]...)
	b.text = out
	if b.cursor >= offset {
		b.cursor += utf8.RuneCountInString(text)
	}
}

func clamp(offset, size int) int {
	if offset < 0 {
		return 0
	}
	if offset > size {
		return size
	}
	return offset
}
