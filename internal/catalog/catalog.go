// Package catalog reads and edits Gradle version catalogs (libs.versions.toml).
//
// The catalog is a user-owned file, so edits must round-trip byte-exactly:
// comments, blank lines, formatting and declaration order all survive any
// sequence of updates. The document is therefore kept as raw lines with an
// index over the keys, and mutations rewrite single lines in place. Full TOML
// decoding is only used for validation and for remote catalogs upcat does not
// own.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var (
	// ErrParse reports a catalog that cannot be understood at all.
	ErrParse = errors.New("catalog parse error")

	// ErrKeyNotFound reports an edit against a key the catalog does not
	// declare.
	ErrKeyNotFound = errors.New("catalog key not found")

	// ErrValidation reports replacement content that failed the
	// structural check before an apply.
	ErrValidation = errors.New("catalog validation failed")
)

// Entry is one key under a catalog table, with the source hint parsed from
// the comment line directly above it when one exists.
type Entry struct {
	Key   string
	Value string

	// SourceURL and Constraint come from a "# <url> @<expr>" comment
	// bound to this key; both empty when the key carries no hint. The
	// source may also be a "pkg:" package URL carrying the coordinates.
	SourceURL  string
	Constraint string

	line int
}

var (
	sectionRe = regexp.MustCompile(`^\s*\[([A-Za-z0-9_.-]+)\]\s*(?:#.*)?$`)
	keyRe     = regexp.MustCompile(`^(\s*)([A-Za-z0-9_.-]+)(\s*=\s*)(.+?)(\s*)$`)
	hintRe    = regexp.MustCompile(`^\s*#\s*((?:\S+://|pkg:)\S+)\s+@(\S+)\s*$`)
	stringRe  = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"$`)
)

// Document is a parsed catalog. Lines are kept verbatim; the maps index into
// them.
type Document struct {
	lines []string

	// entries maps "<section>\x00<key>" to the parsed entry; order holds
	// version keys in declaration order.
	entries map[string]*Entry
	order   map[string][]string

	// sectionEnd maps a section name to the line index one past its last
	// content line, where a new key can be inserted.
	sectionEnd map[string]int
}

// Load reads and parses the catalog at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse parses catalog bytes. The input must be valid TOML; the line-level
// index is built alongside a full decode so malformed files are rejected up
// front rather than silently edited.
func Parse(data []byte) (*Document, error) {
	var probe map[string]any
	if err := toml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	d := &Document{
		lines:      splitLines(data),
		entries:    make(map[string]*Entry),
		order:      make(map[string][]string),
		sectionEnd: make(map[string]int),
	}
	d.index()
	return d, nil
}

func splitLines(data []byte) []string {
	s := string(data)
	lines := strings.Split(s, "\n")
	// A trailing newline yields a final empty element; keep it so Bytes
	// reproduces the file exactly.
	return lines
}

func (d *Document) index() {
	section := ""
	var pendingURL, pendingConstraint string
	lastContent := make(map[string]int)

	for i, line := range d.lines {
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			section = m[1]
			lastContent[section] = i
			pendingURL, pendingConstraint = "", ""
			continue
		}
		if m := hintRe.FindStringSubmatch(line); m != nil {
			pendingURL, pendingConstraint = m[1], m[2]
			lastContent[section] = i
			continue
		}
		if m := keyRe.FindStringSubmatch(line); m != nil && section != "" {
			value, _ := splitInlineComment(m[4])
			e := &Entry{
				Key:        m[2],
				Value:      unquote(value),
				SourceURL:  pendingURL,
				Constraint: pendingConstraint,
				line:       i,
			}
			d.entries[section+"\x00"+e.Key] = e
			d.order[section] = append(d.order[section], e.Key)
			lastContent[section] = i
			pendingURL, pendingConstraint = "", ""
			continue
		}
		if strings.TrimSpace(line) != "" {
			lastContent[section] = i
		}
	}

	for s, i := range lastContent {
		d.sectionEnd[s] = i + 1
	}
}

// splitInlineComment separates a key line's value from a trailing comment.
// For quoted values the string body is scanned so a '#' inside the quotes is
// never treated as a comment.
func splitInlineComment(raw string) (value, comment string) {
	raw = strings.TrimRight(raw, " \t")
	if strings.HasPrefix(raw, `"`) {
		for i := 1; i < len(raw); i++ {
			switch raw[i] {
			case '\\':
				i++
			case '"':
				return raw[:i+1], raw[i+1:]
			}
		}
		return raw, ""
	}
	if idx := strings.Index(raw, " #"); idx >= 0 {
		return strings.TrimRight(raw[:idx], " \t"), raw[idx:]
	}
	return raw, ""
}

func unquote(raw string) string {
	if m := stringRe.FindStringSubmatch(raw); m != nil {
		return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(m[1])
	}
	return raw
}

// Bytes serializes the document. For an unmodified document this is
// byte-identical to the parsed input.
func (d *Document) Bytes() []byte {
	return []byte(strings.Join(d.lines, "\n"))
}

// Clone returns an independent copy; edits on the copy never touch the
// original.
func (d *Document) Clone() *Document {
	c := &Document{
		lines:      append([]string(nil), d.lines...),
		entries:    make(map[string]*Entry, len(d.entries)),
		order:      make(map[string][]string, len(d.order)),
		sectionEnd: make(map[string]int, len(d.sectionEnd)),
	}
	for k, e := range d.entries {
		ce := *e
		c.entries[k] = &ce
	}
	for s, keys := range d.order {
		c.order[s] = append([]string(nil), keys...)
	}
	for s, i := range d.sectionEnd {
		c.sectionEnd[s] = i
	}
	return c
}

// Versions returns the [versions] entries in declaration order.
func (d *Document) Versions() []Entry {
	keys := d.order["versions"]
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, *d.entries["versions\x00"+k])
	}
	return out
}

// Version looks up a single [versions] entry.
func (d *Document) Version(key string) (Entry, bool) {
	e, ok := d.entries["versions\x00"+key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

var (
	moduleRe     = regexp.MustCompile(`module\s*=\s*"([^":]+):([^"]+)"`)
	versionRefRe = regexp.MustCompile(`version\.ref\s*=\s*"([^"]+)"`)
)

// Module resolves a [versions] key to the maven coordinates of the first
// [libraries] entry referencing it, e.g. "junit" to
// ("org.junit.jupiter", "junit-jupiter").
func (d *Document) Module(versionKey string) (group, artifact string, ok bool) {
	for _, key := range d.order["libraries"] {
		raw, found := d.Raw("libraries", key)
		if !found {
			continue
		}
		ref := versionRefRe.FindStringSubmatch(raw)
		if ref == nil || ref[1] != versionKey {
			continue
		}
		if m := moduleRe.FindStringSubmatch(raw); m != nil {
			return m[1], m[2], true
		}
	}
	return "", "", false
}

// Keys returns the declared keys of any section in declaration order.
func (d *Document) Keys(section string) []string {
	return append([]string(nil), d.order[section]...)
}

// Raw returns the verbatim right-hand side of a key, quotes included.
func (d *Document) Raw(section, key string) (string, bool) {
	e, ok := d.entries[section+"\x00"+key]
	if !ok {
		return "", false
	}
	m := keyRe.FindStringSubmatch(d.lines[e.line])
	if m == nil {
		return "", false
	}
	value, _ := splitInlineComment(m[4])
	return value, true
}

// SetVersion rewrites the value of one [versions] key, leaving the rest of
// the line (indentation, spacing, trailing comment) untouched.
func (d *Document) SetVersion(key, value string) error {
	return d.setRaw("versions", key, fmt.Sprintf("%q", value))
}

func (d *Document) setRaw(section, key, raw string) error {
	e, ok := d.entries[section+"\x00"+key]
	if !ok {
		return fmt.Errorf("%w: [%s] %s", ErrKeyNotFound, section, key)
	}
	line := d.lines[e.line]
	m := keyRe.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("%w: [%s] %s", ErrKeyNotFound, section, key)
	}
	// An inline comment after the value stays where it was.
	_, comment := splitInlineComment(m[4])
	d.lines[e.line] = m[1] + m[2] + m[3] + raw + comment + m[5]
	e.Value = unquote(raw)
	return nil
}

// Add appends a key at the end of a section, creating the section when the
// document lacks it.
func (d *Document) Add(section, key, raw string) error {
	if _, ok := d.entries[section+"\x00"+key]; ok {
		return d.setRaw(section, key, raw)
	}

	at, ok := d.sectionEnd[section]
	if !ok {
		// New section goes at the end of the file, separated by a
		// blank line.
		at = len(d.lines)
		if at > 0 && d.lines[at-1] == "" {
			at--
		}
		d.insertLines(at, "", "["+section+"]")
		at += 2
	}

	d.insertLines(at, key+" = "+raw)
	e := &Entry{Key: key, Value: unquote(raw), line: at}
	d.entries[section+"\x00"+key] = e
	d.order[section] = append(d.order[section], key)
	d.sectionEnd[section] = at + 1
	return nil
}

func (d *Document) insertLines(at int, newLines ...string) {
	d.lines = append(d.lines[:at], append(append([]string(nil), newLines...), d.lines[at:]...)...)
	n := len(newLines)
	for _, e := range d.entries {
		if e.line >= at {
			e.line += n
		}
	}
	for s, end := range d.sectionEnd {
		if end >= at {
			d.sectionEnd[s] = end + n
		}
	}
}

// Validate checks that data is a structurally sound catalog: valid TOML whose
// [versions] values are all strings. Apply refuses to install a file that
// fails this.
func Validate(data []byte) error {
	var doc struct {
		Versions map[string]any `toml:"versions"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for key, v := range doc.Versions {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: versions.%s is not a string", ErrValidation, key)
		}
	}
	return nil
}

// Equal reports whether two serialized catalogs are byte-identical.
func Equal(a, b *Document) bool {
	return bytes.Equal(a.Bytes(), b.Bytes())
}
