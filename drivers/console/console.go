// Package console implements an 80x25 VGA text-mode console as an
// io.Writer, so kfmt.SetSink can point printk straight at the screen.
// Grounded on gopher-os's device/video/console.VgaTextConsole — the same
// two-bytes-per-cell (character, color attribute) framebuffer layout and
// 80x25 default geometry — simplified down to a single default palette
// entry instead of a settable color.Palette, since the console's Non-goals
// exclude a configurable console ("palette/graphics-mode support is out
// of scope; the console is a fixed monochrome 80x25 text grid").
package console

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	Columns = 80
	Rows    = 25
)

// cp437 transcodes the UTF-8 text handed to Write into the IBM code page
// 437 glyph indices the VGA text-mode font table is wired to, rather than
// hand-rolling the codepage table the hardware font actually uses.
var cp437 = encoding.ReplaceUnsupported(charmap.CodePage437.NewEncoder())

const defaultAttr = 0x07 // light gray on black

// Console is an 80x25 text-mode console writing through a framebuffer.
// fb stands in for the memory-mapped VGA buffer at physical address
// 0xB8000 that a real boot would map 1:1, the same substitution vmm's
// dmap registry makes for page tables.
type Console struct {
	fb   [Columns * Rows]uint16
	row  int
	col  int
	attr uint8
}

// New returns a cleared console.
func New() *Console {
	c := &Console{attr: defaultAttr}
	c.Clear()
	return c
}

// Clear fills the framebuffer with spaces in the default attribute and
// homes the cursor.
func (c *Console) Clear() {
	blank := uint16(' ') | uint16(c.attr)<<8
	for i := range c.fb {
		c.fb[i] = blank
	}
	c.row, c.col = 0, 0
}

// Write implements io.Writer, interpreting '\n' as a newline and scrolling
// the buffer up one row when output reaches the bottom. Input is treated as
// UTF-8 and transcoded to CP437 before reaching the framebuffer; a rune with
// no CP437 representation becomes '?' rather than aborting the write.
func (c *Console) Write(p []byte) (int, error) {
	out, err := cp437.Bytes(p)
	if err != nil {
		out = p
	}
	for _, b := range out {
		c.putc(b)
	}
	return len(p), nil
}

func (c *Console) putc(b byte) {
	if b == '\n' {
		c.row++
		c.col = 0
	} else if b == '\b' {
		if c.col > 0 {
			c.col--
			c.setCell(c.row, c.col, ' ')
		}
	} else {
		c.setCell(c.row, c.col, b)
		c.col++
		if c.col >= Columns {
			c.col = 0
			c.row++
		}
	}
	if c.row >= Rows {
		c.scroll()
		c.row = Rows - 1
	}
}

func (c *Console) setCell(row, col int, ch byte) {
	c.fb[row*Columns+col] = uint16(ch) | uint16(c.attr)<<8
}

func (c *Console) scroll() {
	copy(c.fb[0:], c.fb[Columns:])
	blank := uint16(' ') | uint16(c.attr)<<8
	for i := (Rows - 1) * Columns; i < Rows*Columns; i++ {
		c.fb[i] = blank
	}
}

// CellAt returns the character at (row, col), for tests.
func (c *Console) CellAt(row, col int) byte {
	return byte(c.fb[row*Columns+col])
}
