// Package cargo implements the Cargo side of the toolchain boundary: the
// diagnostic parser for cargo and libtest output, the metadata reader and
// the command lines for each tool operation.
package cargo

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/fwojciec/cargomcp"
)

// MaxLineSize is the longest output line the parser accepts. Longer lines
// are split.
const MaxLineSize = 16 << 20

// Ensure Parser implements cargomcp.DiagnosticParser at compile time.
var _ cargomcp.DiagnosticParser = (*Parser)(nil)

var (
	// thread 'tests::it_fails' panicked at src/lib.rs:10:9:
	// thread 'main' panicked at 'boom', src/main.rs:2:5
	// thread 'main' (4242) panicked at src/main.rs:2:5:
	panicLine = regexp.MustCompile(`^thread '([^']*)'(?: \(\d+\))? panicked at (?:'(.*)', )?(.+?):(\d+):(\d+):?$`)

	// test tests::it_fails ... FAILED
	failedTest = regexp.MustCompile(`^test (\S+) \.\.\. FAILED$`)

	// error: test failed, to rerun pass `--lib`
	// error: 2 targets failed:
	testSummaryError = regexp.MustCompile(`^error: (test failed|\d+ targets? failed)`)

	// warning: `mycrate` (lib) generated 2 warnings
	// error: could not compile `mycrate` (lib) due to 1 previous error
	buildSummary = regexp.MustCompile("^(warning: `[^`]+` \\(.*\\) generated \\d+ warnings?|error: could not compile `)")

	errorLine   = regexp.MustCompile(`^error(\[[A-Z]\d+\])?:`)
	warningLine = regexp.MustCompile(`^warning(\[[A-Za-z0-9_-]+\])?:`)
)

// Parser converts cargo output lines into diagnostics. A Parser remembers
// whether it is inside a test panic report, so each task needs its own.
type Parser struct {
	inPanic bool
}

// NewParser returns a parser with fresh state.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements cargomcp.DiagnosticParser.
func (p *Parser) Parse(line string, ch cargomcp.Channel) cargomcp.Diagnostic {
	line = strings.TrimSuffix(line, "\r")

	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		if d, ok := parseRecord(line); ok {
			p.inPanic = false
			d.Channel = ch
			return d
		}
	}

	d := p.parseText(line)
	d.Channel = ch
	return d
}

func (p *Parser) parseText(line string) cargomcp.Diagnostic {
	if m := panicLine.FindStringSubmatch(line); m != nil {
		p.inPanic = true
		lineNo, _ := strconv.Atoi(m[4])
		col, _ := strconv.Atoi(m[5])
		return cargomcp.Diagnostic{
			Severity: cargomcp.SeverityError,
			Kind:     cargomcp.KindTest,
			Message:  line,
			Span: &cargomcp.Span{
				File:        m[3],
				LineStart:   lineNo,
				LineEnd:     lineNo,
				ColumnStart: col,
				ColumnEnd:   col,
				Label:       m[2],
			},
		}
	}

	if p.inPanic {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "note: ") || strings.HasPrefix(line, "stack backtrace:") {
			p.inPanic = false
		} else {
			return testNote(line)
		}
	}

	switch {
	case failedTest.MatchString(line):
		return cargomcp.Diagnostic{Severity: cargomcp.SeverityWarning, Kind: cargomcp.KindTest, Message: line}
	case strings.HasPrefix(line, "test result:"), testSummaryError.MatchString(line):
		return testNote(line)
	case buildSummary.MatchString(line):
		return cargomcp.Diagnostic{Severity: cargomcp.SeverityNote, Kind: cargomcp.KindBuild, Message: line}
	case errorLine.MatchString(line):
		return cargomcp.Diagnostic{Severity: cargomcp.SeverityError, Kind: cargomcp.KindUnstructured, Message: line}
	case warningLine.MatchString(line):
		return cargomcp.Diagnostic{Severity: cargomcp.SeverityWarning, Kind: cargomcp.KindUnstructured, Message: line}
	}
	return cargomcp.Diagnostic{Severity: cargomcp.SeverityNote, Kind: cargomcp.KindUnstructured, Message: line}
}

func testNote(line string) cargomcp.Diagnostic {
	return cargomcp.Diagnostic{Severity: cargomcp.SeverityNote, Kind: cargomcp.KindTest, Message: line}
}

// record is the envelope of one cargo --message-format=json line.
type record struct {
	Reason    *string         `json:"reason"`
	PackageID string          `json:"package_id"`
	Message   json.RawMessage `json:"message"`
	Target    struct {
		Name string   `json:"name"`
		Kind []string `json:"kind"`
	} `json:"target"`
	Fresh   bool  `json:"fresh"`
	Success *bool `json:"success"`
}

type compilerMessage struct {
	Message  string `json:"message"`
	Level    string `json:"level"`
	Rendered string `json:"rendered"`
	Code     *struct {
		Code string `json:"code"`
	} `json:"code"`
	Spans    []compilerSpan    `json:"spans"`
	Children []compilerMessage `json:"children"`
}

type compilerSpan struct {
	FileName             string  `json:"file_name"`
	LineStart            int     `json:"line_start"`
	LineEnd              int     `json:"line_end"`
	ColumnStart          int     `json:"column_start"`
	ColumnEnd            int     `json:"column_end"`
	IsPrimary            bool    `json:"is_primary"`
	Label                *string `json:"label"`
	SuggestedReplacement *string `json:"suggested_replacement"`
}

// parseRecord decodes a structured line. It reports false for text that is
// not a JSON object, so the caller can treat it as free text.
func parseRecord(line string) (cargomcp.Diagnostic, bool) {
	var rec record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return cargomcp.Diagnostic{}, false
	}
	if rec.Reason == nil {
		return cargomcp.Diagnostic{Severity: cargomcp.SeverityNote, Kind: cargomcp.KindUnstructured, Message: line}, true
	}

	switch *rec.Reason {
	case "compiler-message":
		var msg compilerMessage
		if err := json.Unmarshal(rec.Message, &msg); err != nil {
			return cargomcp.Diagnostic{Severity: cargomcp.SeverityNote, Kind: cargomcp.KindUnstructured, Message: line}, true
		}
		return compilerDiagnostic(&msg), true
	case "compiler-artifact":
		verb := "compiled"
		if rec.Fresh {
			verb = "fresh"
		}
		return cargomcp.Diagnostic{
			Severity: cargomcp.SeverityNote,
			Kind:     cargomcp.KindArtifact,
			Message:  fmt.Sprintf("%s %s (%s)", verb, rec.Target.Name, strings.Join(rec.Target.Kind, ", ")),
		}, true
	case "build-script-executed":
		return cargomcp.Diagnostic{
			Severity: cargomcp.SeverityNote,
			Kind:     cargomcp.KindArtifact,
			Message:  "ran build script for " + rec.PackageID,
		}, true
	case "build-finished":
		msg := "build finished"
		if rec.Success != nil && !*rec.Success {
			msg = "build failed"
		}
		return cargomcp.Diagnostic{Severity: cargomcp.SeverityNote, Kind: cargomcp.KindBuild, Message: msg}, true
	default:
		return cargomcp.Diagnostic{Severity: cargomcp.SeverityNote, Kind: cargomcp.KindBuild, Message: *rec.Reason}, true
	}
}

func compilerDiagnostic(msg *compilerMessage) cargomcp.Diagnostic {
	d := cargomcp.Diagnostic{
		Severity:   compilerSeverity(msg.Level),
		Kind:       cargomcp.KindCompiler,
		Message:    msg.Message,
		Rendered:   strings.TrimRight(msg.Rendered, "\n"),
		Suggestion: suggestion(msg),
	}
	if msg.Code != nil {
		d.Code = msg.Code.Code
	}
	if s := primarySpan(msg.Spans); s != nil {
		d.Span = &cargomcp.Span{
			File:        s.FileName,
			LineStart:   s.LineStart,
			LineEnd:     s.LineEnd,
			ColumnStart: s.ColumnStart,
			ColumnEnd:   s.ColumnEnd,
		}
		if s.Label != nil {
			d.Span.Label = *s.Label
		}
	}
	return d
}

func compilerSeverity(level string) cargomcp.Severity {
	switch {
	case level == "error", strings.HasPrefix(level, "error:"):
		return cargomcp.SeverityError
	case level == "warning":
		return cargomcp.SeverityWarning
	default:
		return cargomcp.SeverityNote
	}
}

func primarySpan(spans []compilerSpan) *compilerSpan {
	for i := range spans {
		if spans[i].IsPrimary {
			return &spans[i]
		}
	}
	if len(spans) > 0 {
		return &spans[0]
	}
	return nil
}

func suggestion(msg *compilerMessage) string {
	var parts []string
	for _, child := range msg.Children {
		if child.Level != "help" {
			continue
		}
		text := child.Message
		for _, s := range child.Spans {
			if s.SuggestedReplacement != nil {
				text += fmt.Sprintf(": `%s`", *s.SuggestedReplacement)
				break
			}
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n")
}

// ParseLines lazily parses r line by line with a fresh parser, numbering
// diagnostics from zero.
func ParseLines(r io.Reader, ch cargomcp.Channel) iter.Seq[cargomcp.Diagnostic] {
	return func(yield func(cargomcp.Diagnostic) bool) {
		p := NewParser()
		seq := 0
		for line := range Lines(r) {
			d := p.Parse(line, ch)
			d.Seq = seq
			seq++
			if !yield(d) {
				return
			}
		}
	}
}

// Lines yields the lines of r without their terminators. A read error ends
// the sequence.
func Lines(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
		scanner.Split(scanLines)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}
}

// scanLines is bufio.ScanLines, except that a line longer than the buffer
// is returned in pieces instead of ending the scan.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= MaxLineSize {
		return len(data), data, nil
	}
	return advance, token, err
}
