package stackcapture

import (
	"fmt"
	"strings"
)

const (
	frameIndent = "  "
	lineIndent  = "    "
	varIndent   = "      "
)

// Renderer turns a Goroutine into traceback text.
type Renderer struct {
	src *SourceCache
}

// NewRenderer returns a Renderer that reads source lines through src.
// A nil src disables source lines.
func NewRenderer(src *SourceCache) *Renderer {
	return &Renderer{src: src}
}

// Render writes g's frames outermost first. With includeLocals, each frame
// also lists its argument words and the variables its function published
// to locals. A frame that fails to render is replaced with a marker; the
// remaining frames are still written.
func (r *Renderer) Render(g *Goroutine, includeLocals bool, locals *Locals) string {
	if g == nil {
		return ""
	}

	var out []string
	if g.CreatedBy != nil {
		out = append(out, fmt.Sprintf("%sGoroutine created by %s at %s:%d", frameIndent, g.CreatedBy.Function, g.CreatedBy.File, g.CreatedBy.Line))
	}
	if g.Elided {
		out = append(out, frameIndent+"...outer frames elided by the runtime...")
	}

	for i := len(g.Frames) - 1; i >= 0; i-- {
		out = append(out, r.renderFrame(g.Frames[i], includeLocals, locals)...)
	}
	return strings.Join(out, "\n")
}

func (r *Renderer) renderFrame(f Frame, includeLocals bool, locals *Locals) []string {
	out := []string{fmt.Sprintf("%sFile \"%s\", line %d, in %s", frameIndent, f.File, f.Line, f.Function)}
	if line := r.sourceLine(f); line != "" {
		out = append(out, lineIndent+line)
	}
	if !includeLocals {
		return out
	}
	return append(out, frameLocals(f, locals)...)
}

func (r *Renderer) sourceLine(f Frame) (line string) {
	if r == nil || r.src == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			line = ""
		}
	}()
	return r.src.Line(f.File, f.Line)
}

func frameLocals(f Frame, locals *Locals) (out []string) {
	defer func() {
		if recover() != nil {
			out = []string{varIndent + "failed to format local variables"}
		}
	}()

	out = append(out, "", fmt.Sprintf("%sArguments: %s(%s)", varIndent, f.Function, strings.Join(f.Args, ", ")))

	vars := locals.For(f.Function)
	if len(vars) == 0 {
		return out
	}
	out = append(out, varIndent+"Local variables:")
	for _, v := range vars {
		out = append(out, varIndent+v.Name+"="+v.Repr)
	}
	return append(out, "")
}
