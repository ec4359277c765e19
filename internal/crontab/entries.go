package crontab

import (
	"fmt"
	"strings"
	"unicode"
)

// EntryKind classifies a table line.
type EntryKind int

const (
	KindBlank EntryKind = iota
	KindComment
	KindEnv
	KindJob
)

// Entry is one line of the table. Raw is always the exact line text; the
// other fields are derived from it and never used for rendering.
type Entry struct {
	Raw      string
	Kind     EntryKind
	Schedule string // leading time fields, or an @descriptor
	User     string // user column of system tables, "" in per-user tables
	Command  string // command text without the tag comment
	Function string // function named by the tag comment, "" when untagged
}

// ParseEntries splits per-user table text (crontab -l) into entries. tag is
// the comment literal that marks lines owned by this host.
func ParseEntries(text, tag string) []Entry {
	return parseEntries(text, tag, false)
}

// ParseSystemEntries splits a system table (/etc/cron.d, /etc/crontab) whose
// job lines carry a user column after the time fields.
func ParseSystemEntries(text, tag string) []Entry {
	return parseEntries(text, tag, true)
}

func parseEntries(text, tag string, userColumn bool) []Entry {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseLine(strings.TrimRight(line, "\r"), tag, userColumn))
	}
	return entries
}

func parseLine(line, tag string, userColumn bool) Entry {
	e := Entry{Raw: line}
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		e.Kind = KindBlank
		return e
	case strings.HasPrefix(trimmed, "#"):
		e.Kind = KindComment
		return e
	case isEnvAssignment(trimmed):
		e.Kind = KindEnv
		return e
	}

	e.Kind = KindJob
	e.Function = taggedFunction(line, tag)

	body := trimmed
	if e.Function != "" {
		i := strings.Index(body, "# "+tag)
		if i < 0 {
			i = strings.Index(body, tag)
		}
		if i >= 0 {
			body = strings.TrimSpace(body[:i])
		}
	}

	fields := strings.Fields(body)
	n := 5
	if len(fields) > 0 && strings.HasPrefix(fields[0], "@") {
		n = 1
	}
	if len(fields) <= n {
		e.Schedule = strings.Join(fields, " ")
		return e
	}
	e.Schedule = strings.Join(fields[:n], " ")
	fields = fields[n:]
	if userColumn {
		e.User = fields[0]
		fields = fields[1:]
	}
	e.Command = strings.Join(fields, " ")
	return e
}

// isEnvAssignment reports lines like MAILTO=root or PATH = /usr/bin.
func isEnvAssignment(line string) bool {
	name, _, ok := strings.Cut(line, "=")
	if !ok {
		return false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// RenderEntries joins entries back into table text. Leading and trailing
// blank lines are dropped and the result ends with exactly one newline.
func RenderEntries(entries []Entry) string {
	raws := make([]string, len(entries))
	for i, e := range entries {
		raws[i] = e.Raw
	}
	return strings.TrimSpace(strings.Join(raws, "\n")) + "\n"
}

// NewEntry builds the line for a scheduled function:
//
//	<expr> <command> # <tag> <name>
//
// Field order matters: cron reads the time fields positionally and the
// trailing comment carries the ownership key.
func NewEntry(expr, command, tag, name string) Entry {
	raw := fmt.Sprintf("%s %s # %s %s", expr, command, tag, name)
	return parseLine(raw, tag, false)
}

// NewSystemEntry builds the line for a system table, where cron expects the
// user to run as between the time fields and the command:
//
//	<expr> <user> <command> # <tag> <name>
func NewSystemEntry(expr, user, command, tag, name string) Entry {
	raw := fmt.Sprintf("%s %s %s # %s %s", expr, user, command, tag, name)
	return parseLine(raw, tag, true)
}

// MatchKey is the substring that identifies a function's line.
func MatchKey(tag, name string) string {
	return tag + " " + name
}

// Matches reports whether line carries the tag key for name. The key must be
// followed by whitespace or the end of the line, so "foo" does not match a
// line tagged "foobar".
func Matches(line, tag, name string) bool {
	key := MatchKey(tag, name)
	for rest := line; ; {
		i := strings.Index(rest, key)
		if i < 0 {
			return false
		}
		after := rest[i+len(key):]
		if after == "" || unicode.IsSpace(rune(after[0])) {
			return true
		}
		rest = rest[i+1:]
	}
}

// taggedFunction extracts the function name following the tag, or "".
func taggedFunction(line, tag string) string {
	marker := tag + " "
	i := strings.Index(line, marker)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(line[i+len(marker):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Filter returns entries that do not belong to name, plus how many were removed.
func Filter(entries []Entry, tag, name string) ([]Entry, int) {
	kept := make([]Entry, 0, len(entries))
	removed := 0
	for _, e := range entries {
		if Matches(e.Raw, tag, name) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}

// Owned returns the entries tagged by this host, keyed by function name.
// When a function has several lines the last one wins.
func Owned(entries []Entry) map[string]Entry {
	owned := make(map[string]Entry)
	for _, e := range entries {
		if e.Kind == KindJob && e.Function != "" {
			owned[e.Function] = e
		}
	}
	return owned
}
