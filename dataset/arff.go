package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

const maxLineBytes = 4 << 20

// LoadARFF reads an ARFF file from disk. The class index is left unset.
func LoadARFF(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return readARFF(f, filepath.Base(path))
}

// ReadARFF parses a dense ARFF document. Supported attribute types are
// numeric, real, integer, string and nominal ({a,b,c}); '?' marks a missing
// value and '%' starts a comment.
func ReadARFF(r io.Reader) (*Dataset, error) {
	return readARFF(r, "")
}

type arffReader struct {
	source string
	line   int

	relation string
	attrs    []Attribute
	// dictionaries for string attributes, text -> label index
	dicts map[int]map[string]int
}

func readARFF(r io.Reader, source string) (*Dataset, error) {
	p := &arffReader{source: source, dicts: make(map[int]map[string]int)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var b *Builder
	for sc.Scan() {
		p.line++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}

		if b == nil {
			done, err := p.headerLine(line)
			if err != nil {
				return nil, err
			}
			if done {
				if len(p.attrs) == 0 {
					return nil, p.errorf("@data before any @attribute")
				}
				if b, err = NewBuilder(p.relation, p.attrs, -1); err != nil {
					return nil, err
				}
			}
			continue
		}

		row, err := p.dataLine(line, b)
		if err != nil {
			return nil, err
		}
		if err := b.Add(row); err != nil {
			return nil, p.errorf("%v", err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", p.source)
	}
	if b == nil {
		return nil, p.errorf("missing @data section")
	}
	return b.Build(), nil
}

func (p *arffReader) errorf(format string, args ...any) error {
	return errors.NewParseError(p.source, p.line, fmt.Sprintf(format, args...))
}

// headerLine consumes one header line and reports whether @data was reached.
func (p *arffReader) headerLine(line string) (bool, error) {
	keyword, rest := splitKeyword(line)
	switch strings.ToLower(keyword) {
	case "@relation":
		name, _, err := nextToken(rest)
		if err != nil {
			return false, p.errorf("%v", err)
		}
		p.relation = name
		return false, nil
	case "@attribute":
		attr, err := p.parseAttribute(rest)
		if err != nil {
			return false, err
		}
		for _, a := range p.attrs {
			if a.Name == attr.Name {
				return false, p.errorf("duplicate attribute %q", attr.Name)
			}
		}
		if attr.Type == String {
			p.dicts[len(p.attrs)] = make(map[string]int)
		}
		p.attrs = append(p.attrs, attr)
		return false, nil
	case "@data":
		return true, nil
	default:
		return false, p.errorf("unexpected header line %q", line)
	}
}

func (p *arffReader) parseAttribute(rest string) (Attribute, error) {
	name, rest, err := nextToken(rest)
	if err != nil {
		return Attribute{}, p.errorf("%v", err)
	}
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "{") {
		end := strings.LastIndex(rest, "}")
		if end < 0 {
			return Attribute{}, p.errorf("unterminated label set for %q", name)
		}
		labels, err := splitValues(rest[1:end])
		if err != nil {
			return Attribute{}, p.errorf("%v", err)
		}
		seen := make(map[string]bool, len(labels))
		for _, l := range labels {
			if seen[l] {
				return Attribute{}, p.errorf("duplicate label %q in %q", l, name)
			}
			seen[l] = true
		}
		return NominalAttribute(name, labels...), nil
	}

	typ, _ := splitKeyword(rest)
	switch strings.ToLower(typ) {
	case "numeric", "real", "integer":
		return NumericAttribute(name), nil
	case "string":
		return StringAttribute(name), nil
	case "":
		return Attribute{}, p.errorf("missing type for attribute %q", name)
	default:
		return Attribute{}, p.errorf("unsupported attribute type %q for %q", typ, name)
	}
}

func (p *arffReader) dataLine(line string, b *Builder) ([]float64, error) {
	if strings.HasPrefix(line, "{") {
		return nil, p.errorf("sparse instances are not supported")
	}
	fields, err := splitValues(line)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	if len(fields) != len(p.attrs) {
		return nil, p.errorf("expected %d values, got %d", len(p.attrs), len(fields))
	}

	row := make([]float64, len(fields))
	for j, field := range fields {
		if field == "?" {
			row[j] = Missing()
			continue
		}
		switch p.attrs[j].Type {
		case Numeric:
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, p.errorf("attribute %q: invalid number %q", p.attrs[j].Name, field)
			}
			row[j] = v
		case Nominal:
			idx := p.attrs[j].LabelIndex(field)
			if idx < 0 {
				return nil, p.errorf("attribute %q: value %q not in label set", p.attrs[j].Name, field)
			}
			row[j] = float64(idx)
		case String:
			dict := p.dicts[j]
			idx, ok := dict[field]
			if !ok {
				idx = len(b.header.Attributes[j].Labels)
				dict[field] = idx
				b.header.Attributes[j].Labels = append(b.header.Attributes[j].Labels, field)
			}
			row[j] = float64(idx)
		}
	}
	return row, nil
}

func splitKeyword(line string) (string, string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// nextToken reads a bare or quoted token and returns the remainder.
func nextToken(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", errors.New("missing name")
	}
	if q := s[0]; q == '\'' || q == '"' {
		var sb strings.Builder
		for i := 1; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '\\' && i+1 < len(s):
				i++
				sb.WriteByte(s[i])
			case c == q:
				return sb.String(), s[i+1:], nil
			default:
				sb.WriteByte(c)
			}
		}
		return "", "", errors.Newf("unterminated quote in %q", s)
	}
	i := strings.IndexAny(s, " \t{")
	if i < 0 {
		return s, "", nil
	}
	return s[:i], s[i:], nil
}

// splitValues splits a comma separated list honoring single and double quotes.
func splitValues(s string) ([]string, error) {
	var (
		out    []string
		sb     strings.Builder
		quote  byte
		quoted bool
	)
	flush := func() {
		v := sb.String()
		if !quoted {
			v = strings.TrimSpace(v)
		}
		out = append(out, v)
		sb.Reset()
		quoted = false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(s):
			i++
			sb.WriteByte(s[i])
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
			sb.WriteByte(c)
		case c == '\'' || c == '"':
			if strings.TrimSpace(sb.String()) == "" {
				sb.Reset()
			}
			quote = c
			quoted = true
		case c == ',':
			flush()
		case quoted && (c == ' ' || c == '\t'):
			// whitespace after a closing quote
		default:
			sb.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, errors.Newf("unterminated quote in %q", s)
	}
	if strings.TrimSpace(s) != "" {
		flush()
	}
	return out, nil
}
