package stackcapture

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// Parse splits a runtime.Stack dump into goroutines. Blocks it cannot make
// sense of are skipped rather than reported.
func Parse(dump []byte) []*Goroutine {
	var (
		out []*Goroutine
		cur *Goroutine
		// pending is a function line still waiting for its file:line.
		pending   *Frame
		createdBy bool
	)

	flush := func() {
		if cur != nil {
			out = append(out, cur)
		}
		cur, pending, createdBy = nil, nil, false
	}

	sc := bufio.NewScanner(bytes.NewReader(dump))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		switch {
		case line == "":
			flush()

		case strings.HasPrefix(line, "goroutine "):
			flush()
			cur = parseHeader(line)

		case cur == nil:
			// Noise before the first header.

		case strings.HasPrefix(line, "\t"):
			if pending == nil {
				continue
			}
			pending.File, pending.Line = parseLocation(line)
			if createdBy {
				cur.CreatedBy = pending
			} else {
				cur.Frames = append(cur.Frames, *pending)
			}
			pending, createdBy = nil, false

		case strings.HasPrefix(line, "..."):
			cur.Elided = true

		case strings.HasPrefix(line, "created by "):
			fn := strings.TrimPrefix(line, "created by ")
			if i := strings.Index(fn, " in goroutine "); i >= 0 {
				fn = fn[:i]
			}
			pending, createdBy = &Frame{Function: fn}, true

		default:
			fn, args := parseCall(line)
			pending, createdBy = &Frame{Function: fn, Args: args}, false
		}
	}
	flush()
	return out
}

// parseHeader parses "goroutine 18 [select, 2 minutes]:".
func parseHeader(line string) *Goroutine {
	rest := strings.TrimPrefix(line, "goroutine ")
	idStr, rest, _ := strings.Cut(rest, " ")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil
	}

	g := &Goroutine{ID: id}
	if i, j := strings.IndexByte(rest, '['), strings.LastIndexByte(rest, ']'); i >= 0 && j > i {
		g.State = rest[i+1 : j]
	}
	return g
}

// parseCall splits "net/http.(*conn).serve(0xc000184000, {0x8a2f10, 0xc0001})"
// into the function name and its argument words.
func parseCall(line string) (string, []string) {
	if !strings.HasSuffix(line, ")") {
		return line, nil
	}
	i := strings.LastIndexByte(line, '(')
	if i <= 0 {
		return line, nil
	}

	fn, raw := line[:i], line[i+1:len(line)-1]
	if raw == "" {
		return fn, nil
	}
	return fn, strings.Split(raw, ", ")
}

// parseLocation parses "\t/src/app/main.go:42 +0x1d".
func parseLocation(line string) (string, int) {
	loc := strings.TrimSpace(line)
	if i := strings.LastIndex(loc, " +0x"); i >= 0 {
		loc = loc[:i]
	}
	i := strings.LastIndexByte(loc, ':')
	if i < 0 {
		return loc, 0
	}
	n, err := strconv.Atoi(loc[i+1:])
	if err != nil {
		return loc, 0
	}
	return loc[:i], n
}
