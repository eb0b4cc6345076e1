// Package grid maintains the live terminal model tapty's control
// plane queries and streams. It wraps vito/midterm the way h2's
// virtualterminal package does, narrowed to the single-writer/
// snapshot-reader contract the control server needs: Write is called
// from exactly one goroutine (the bridge's child-read loop) and, like
// Resize, takes the write lock; the terminal-state queries (Cursor,
// Size, Scrollback) take a read lock.
package grid

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/muesli/termenv"
	"github.com/vito/midterm"

	"tapty/internal/scrollback"
)

// Grid is the live view of a child process's terminal output plus a
// bounded plain-text scrollback ring fed by lines midterm evicts from
// the primary screen.
type Grid struct {
	mu   sync.RWMutex
	term *midterm.Terminal
	rows int
	cols int

	ring *scrollback.Ring

	version uint64 // atomic

	subMu sync.Mutex
	subs  map[int]func([]byte)
	nextSub int

	oscFg string
	oscBg string
}

// New creates a Grid sized rows x cols, with scrollback bounded to
// capacity lines.
func New(rows, cols, capacity int) *Grid {
	g := &Grid{
		term: midterm.NewTerminal(rows, cols),
		rows: rows,
		cols: cols,
		ring: scrollback.NewRing(capacity),
		subs: make(map[int]func([]byte)),
	}
	g.term.OnScrollback(func(line midterm.Line) {
		g.ring.Push(scrollback.StripANSI(line.Display()))
	})
	g.detectOSCColors()
	return g
}

// detectOSCColors queries the process's own environment for terminal
// color hints the way h2's term_colors detection does, so queries the
// child issues before any real OSC 10/11 round trip has happened
// still get a sensible answer.
func (g *Grid) detectOSCColors() {
	output := termenv.NewOutput(os.Stdout)
	if fg := output.ForegroundColor(); fg != nil {
		g.oscFg = colorToX11(fg)
	}
	if bg := output.BackgroundColor(); bg != nil {
		g.oscBg = colorToX11(bg)
	}
}

// Write feeds child output into the terminal model and republishes it
// to every subscriber sink. It must only ever be called from the
// bridge's single child-read goroutine.
func (g *Grid) Write(p []byte) {
	g.mu.Lock()
	g.term.Write(p)
	g.mu.Unlock()

	atomic.AddUint64(&g.version, 1)

	g.subMu.Lock()
	sinks := make([]func([]byte), 0, len(g.subs))
	for _, fn := range g.subs {
		sinks = append(sinks, fn)
	}
	g.subMu.Unlock()
	for _, fn := range sinks {
		fn(p)
	}
}

// RespondOSCColors answers OSC 10/11 foreground/background color
// queries found in p by writing the cached (or fallback) palette
// directly to master, mirroring h2's RespondOSCColors. Real terminal
// passthrough already lets the user's actual terminal answer these
// queries too; this only matters when tapty runs detached from one.
func (g *Grid) RespondOSCColors(p []byte, master io.Writer) {
	fg, bg := g.oscFg, g.oscBg
	if fg == "" || bg == "" {
		fbFg, fbBg := fallbackOSCPalette(os.Getenv("COLORFGBG"))
		if fg == "" {
			fg = fbFg
		}
		if bg == "" {
			bg = fbBg
		}
	}
	if bytes.Contains(p, []byte("\033]10;?")) {
		fmt.Fprintf(master, "\033]10;%s\033\\", fg)
	}
	if bytes.Contains(p, []byte("\033]11;?")) {
		fmt.Fprintf(master, "\033]11;%s\033\\", bg)
	}
}

// Cursor returns the current cursor row and column (0-based).
func (g *Grid) Cursor() (row, col int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.term.Cursor.Y, g.term.Cursor.X
}

// Size returns the current grid dimensions.
func (g *Grid) Size() (rows, cols int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rows, g.cols
}

// Resize changes the grid's dimensions. midterm.Terminal.Resize
// already implements the truncate/pad and cursor-clamp policy
// spec.md asks for, so this is a thin, deterministic pass-through.
func (g *Grid) Resize(rows, cols int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.term.Resize(rows, cols)
	g.rows, g.cols = rows, cols
}

// Scrollback returns up to n lines of plain text: the bounded ring's
// history followed by the currently visible screen, rendered without
// SGR attributes. n<=0 returns everything available.
func (g *Grid) Scrollback(n int) []string {
	g.mu.RLock()
	visible := make([]string, 0, len(g.term.Content))
	for row := range g.term.Content {
		visible = append(visible, scrollback.StripANSI(g.renderLineLocked(row)))
	}
	history := g.ring.Lines(0)
	g.mu.RUnlock()

	// The visible grid is a fixed rows x cols buffer padded with blank
	// rows below whatever the child has actually printed; only the
	// ring's captured history and the lines up to the last non-blank
	// row are real output.
	for len(visible) > 0 && visible[len(visible)-1] == "" {
		visible = visible[:len(visible)-1]
	}

	all := append(history, visible...)
	if n <= 0 || n > len(all) {
		return all
	}
	return all[len(all)-n:]
}

// renderLineLocked renders row through midterm's Format regions the
// way h2's RenderLine does, producing ANSI text that Scrollback then
// strips; callers must hold at least a read lock on g.mu.
func (g *Grid) renderLineLocked(row int) string {
	var buf bytes.Buffer
	line := g.term.Content[row]
	var pos int
	var lastFormat midterm.Format
	for region := range g.term.Format.Regions(row) {
		f := region.F
		if f != lastFormat {
			buf.WriteString("\033[0m")
			buf.WriteString(f.Render())
			lastFormat = f
		}
		end := pos + region.Size
		if pos < len(line) {
			contentEnd := end
			if contentEnd > len(line) {
				contentEnd = len(line)
			}
			buf.WriteString(string(line[pos:contentEnd]))
		}
		pos = end
	}
	return buf.String()
}

// Version returns a counter that increments on every Write, letting
// callers detect whether the grid changed between two observations.
func (g *Grid) Version() uint64 {
	return atomic.LoadUint64(&g.version)
}

// Subscribe registers fn to be called with every chunk written to the
// grid from now on. It returns an ID to pass to Unsubscribe.
func (g *Grid) Subscribe(fn func([]byte)) int {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	return id
}

// Unsubscribe removes a previously registered sink.
func (g *Grid) Unsubscribe(id int) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	delete(g.subs, id)
}
