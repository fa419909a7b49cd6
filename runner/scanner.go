package runner

import (
	"bufio"
	"io"
	"strings"
)

// Scanner reads a header line by line and yields each marked declaration.
// Lines outside a declaration go to PassThrough, or are dropped when it is
// nil. A Scanner is forward-only.
type Scanner struct {
	// PassThrough receives every line outside a marked declaration, with its
	// line ending
	PassThrough func(line string)

	name   string
	marker string
	r      *bufio.Reader
	line   int
	err    error
	done   bool
}

// NewScanner creates a Scanner over r. name is used in errors only.
func NewScanner(name string, r io.Reader, marker string) *Scanner {
	return &Scanner{
		name:   name,
		marker: strings.ToUpper(marker),
		r:      bufio.NewReader(r),
	}
}

// Next returns the next marked declaration. It returns false at the end of
// input or on error; check Err afterwards.
func (s *Scanner) Next() (RawDeclaration, bool) {
	for {
		line, ok := s.readLine()
		if !ok {
			return RawDeclaration{}, false
		}
		if !strings.Contains(strings.ToUpper(line), s.marker) {
			if s.PassThrough != nil {
				s.PassThrough(line)
			}
			continue
		}

		start := s.line
		var sb strings.Builder
		sb.WriteString(line)
		for !strings.HasSuffix(strings.TrimSpace(line), ";") {
			line, ok = s.readLine()
			if !ok {
				if s.err == nil {
					s.err = &DeclarationError{File: s.name, Line: start, Err: ErrUnterminatedDeclaration}
				}
				return RawDeclaration{}, false
			}
			sb.WriteString(line)
		}

		return RawDeclaration{Text: sb.String(), Line: start}, true
	}
}

// Err returns the first read error or unterminated declaration
func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) readLine() (string, bool) {
	if s.done {
		return "", false
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		s.done = true
		if err != io.EOF {
			s.err = err
			return "", false
		}
		if line == "" {
			return "", false
		}
	}
	s.line++
	return line, true
}
