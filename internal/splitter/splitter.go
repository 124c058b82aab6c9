// Package splitter implements the byte-level SQL statement splitter
// used on the restore/rollback path (spec §4.J). It is intentionally a
// hand-rolled state machine rather than a full SQL parser: dump files
// only need to be cut into executable statements, never understood.
package splitter

import (
	"regexp"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/errs"
)

// DefaultMaxStatementBytes is the hard limit on one accumulated
// statement before Split gives up and reports ParseTooLarge.
const DefaultMaxStatementBytes = 100 * 1024 * 1024

// Options tunes Split's dialect-specific behavior.
type Options struct {
	// MySQLMode enables backtick-quoted identifiers and the dynamic
	// DELIMITER command.
	MySQLMode bool
	// PostgreSQLMode enables dollar-quoted string bodies and defers
	// termination across a trailing ::typename cast.
	PostgreSQLMode bool
	MaxBytes       int64
}

func (o Options) maxBytes() int64 {
	if o.MaxBytes > 0 {
		return o.MaxBytes
	}
	return DefaultMaxStatementBytes
}

type state int

const (
	stNormal state = iota
	stSingleQuote
	stDoubleQuote
	stBacktick
	stLineComment
	stBlockComment
	stDollarQuote
)

var beginRe = regexp.MustCompile(`(?i)^BEGIN\b`)
var endRe = regexp.MustCompile(`(?i)^END\b`)
var endFollowedByBlockKeywordRe = regexp.MustCompile(`(?i)^END\s+(IF|LOOP|CASE|WHILE)\b`)
var createBlockRe = regexp.MustCompile(`(?i)CREATE\s+(OR\s+REPLACE\s+)?(TRIGGER|FUNCTION|PROCEDURE)\b`)
var delimiterRe = regexp.MustCompile(`(?i)^\s*DELIMITER\s+(\S+)`)
var dollarTagRe = regexp.MustCompile(`^\$[A-Za-z0-9_]*\$`)
var castSuffixRe = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_]*\[?$`)

// Split cuts src into statements: leading comments (but not MySQL /*! */
// executable comments) and the trailing delimiter are stripped, empty
// and comment-only statements are elided.
func Split(src string, opts Options) ([]string, error) {
	var stmts []string
	var cur strings.Builder
	var stmtHasBlock bool
	blockDepth := 0
	delim := ";"
	st := stNormal
	var dollarTag string
	var total int64

	i := 0
	n := len(src)

	flush := func() {
		s := strings.TrimSpace(cur.String())
		for strings.HasPrefix(s, "--") || (strings.HasPrefix(s, "/*") && !strings.HasPrefix(s, "/*!")) {
			end, skip := strings.IndexByte(s, '\n'), 1
			if strings.HasPrefix(s, "/*") {
				end, skip = strings.Index(s, "*/"), 2
			}
			if end < 0 {
				s = ""
				break
			}
			s = strings.TrimSpace(s[end+skip:])
		}
		if s != "" && !isCommentOnly(s) {
			stmts = append(stmts, s)
		}
		cur.Reset()
		stmtHasBlock = false
		blockDepth = 0
		total = 0
	}

	for i < n {
		c := src[i]
		total++
		if total > opts.maxBytes() {
			return nil, &errs.ParseError{Kind: errs.ParseTooLarge, ByteOffset: int64(i), Reason: "statement exceeds max size"}
		}

		switch st {
		case stSingleQuote:
			cur.WriteByte(c)
			if c == '\'' {
				if i+1 < n && src[i+1] == '\'' {
					cur.WriteByte(src[i+1])
					i += 2
					continue
				}
				st = stNormal
			}
			i++
			continue
		case stDoubleQuote:
			cur.WriteByte(c)
			if c == '"' {
				if i+1 < n && src[i+1] == '"' {
					cur.WriteByte(src[i+1])
					i += 2
					continue
				}
				st = stNormal
			}
			i++
			continue
		case stBacktick:
			cur.WriteByte(c)
			if c == '`' {
				st = stNormal
			}
			i++
			continue
		case stLineComment:
			cur.WriteByte(c)
			if c == '\n' {
				st = stNormal
			}
			i++
			continue
		case stBlockComment:
			cur.WriteByte(c)
			if c == '*' && i+1 < n && src[i+1] == '/' {
				cur.WriteByte('/')
				i += 2
				st = stNormal
				continue
			}
			i++
			continue
		case stDollarQuote:
			cur.WriteByte(c)
			if c == '$' && strings.HasPrefix(src[i:], dollarTag) {
				cur.WriteString(dollarTag[1:])
				i += len(dollarTag)
				st = stNormal
				continue
			}
			i++
			continue
		}

		// st == stNormal
		switch {
		case c == '\'':
			cur.WriteByte(c)
			st = stSingleQuote
			i++
		case c == '"':
			cur.WriteByte(c)
			st = stDoubleQuote
			i++
		case c == '`' && opts.MySQLMode:
			cur.WriteByte(c)
			st = stBacktick
			i++
		case c == '-' && i+1 < n && src[i+1] == '-':
			cur.WriteString("--")
			st = stLineComment
			i += 2
		case c == '/' && i+1 < n && src[i+1] == '*':
			cur.WriteString("/*")
			st = stBlockComment
			i += 2
		case opts.PostgreSQLMode && c == '$':
			if m := dollarTagRe.FindString(src[i:]); m != "" {
				dollarTag = m
				cur.WriteString(m)
				st = stDollarQuote
				i += len(m)
				continue
			}
			cur.WriteByte(c)
			i++
		default:
			// Look for a fresh-statement DELIMITER command (MySQL only).
			if opts.MySQLMode && cur.Len() == 0 {
				if m := delimiterRe.FindStringSubmatch(src[i:]); m != nil {
					newDelim := m[1]
					end := i + len(m[0])
					// consume to end of line
					for end < n && src[end] != '\n' {
						end++
					}
					delim = newDelim
					i = end + 1
					continue
				}
			}

			if !stmtHasBlock && createBlockRe.MatchString(cur.String()+string(c)) {
				stmtHasBlock = true
			}
			if stmtHasBlock && isWordStart(src, i) {
				if beginRe.MatchString(src[i:]) {
					blockDepth++
				} else if endRe.MatchString(src[i:]) && !endFollowedByBlockKeywordRe.MatchString(src[i:]) {
					if blockDepth > 0 {
						blockDepth--
					}
				}
			}

			if matchesDelimAt(src, i, delim) && blockDepth == 0 && !pendingCast(opts, cur.String()) {
				i += len(delim)
				flush()
				continue
			}
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return stmts, nil
}

func pendingCast(opts Options, accumulated string) bool {
	if !opts.PostgreSQLMode {
		return false
	}
	return castSuffixRe.MatchString(strings.TrimRight(accumulated, " \t\n"))
}

func matchesDelimAt(src string, i int, delim string) bool {
	return strings.HasPrefix(src[i:], delim)
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// isWordStart reports whether position i begins a new identifier/keyword
// token, so BEGIN/END detection only fires once per occurrence instead
// of on every byte of the keyword.
func isWordStart(src string, i int) bool {
	if !isWordChar(src[i]) {
		return false
	}
	return i == 0 || !isWordChar(src[i-1])
}

func isCommentOnly(s string) bool {
	lines := strings.Split(s, "\n")
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "--") {
			continue
		}
		return false
	}
	return true
}

// Classify returns a coarse statement kind by prefix, for reporting.
func Classify(stmt string) string {
	s := strings.ToUpper(strings.TrimSpace(stmt))
	switch {
	case strings.HasPrefix(s, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(s, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(s, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(s, "DELETE"):
		return "DELETE"
	case strings.HasPrefix(s, "CREATE TABLE"):
		return "CREATE_TABLE"
	case strings.HasPrefix(s, "CREATE INDEX"), strings.HasPrefix(s, "CREATE UNIQUE INDEX"):
		return "CREATE_INDEX"
	case strings.HasPrefix(s, "CREATE"):
		return "CREATE"
	case strings.HasPrefix(s, "ALTER"):
		return "ALTER"
	case strings.HasPrefix(s, "DROP"):
		return "DROP"
	case strings.HasPrefix(s, "SET"):
		return "SET"
	default:
		return "OTHER"
	}
}

// UnmatchedDollarTags reports dollar-quote tags that appear an odd
// number of times in src — a sign the input is truncated or malformed.
func UnmatchedDollarTags(src string) []string {
	counts := map[string]int{}
	for i := 0; i < len(src); i++ {
		if src[i] != '$' {
			continue
		}
		if m := dollarTagRe.FindString(src[i:]); m != "" {
			counts[m]++
			i += len(m) - 1
		}
	}
	var odd []string
	for tag, n := range counts {
		if n%2 != 0 {
			odd = append(odd, tag)
		}
	}
	return odd
}

// UnmatchedBackticks reports whether src has an odd number of
// unescaped backticks outside of string literals — a cheap validation
// helper, not a full re-parse.
func UnmatchedBackticks(src string) bool {
	count := 0
	inSingle := false
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\'':
			inSingle = !inSingle
		case '`':
			if !inSingle {
				count++
			}
		}
	}
	return count%2 != 0
}
