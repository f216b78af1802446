package deppath

import "strings"

// Parse parses a dependency key into one path per brace alternative.
func Parse(key string) ([]Path, error) {
	if key == "" {
		return nil, &ParseError{Key: key, Msg: "empty key"}
	}

	expanded, err := expandBraces(key)
	if err != nil {
		return nil, err
	}

	paths := make([]Path, 0, len(expanded))
	for _, ex := range expanded {
		p, err := parseExpanded(key, ex)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ParseAll parses several keys and concatenates the resulting paths,
// dropping duplicates while keeping first-seen order.
func ParseAll(keys []string) ([]Path, error) {
	var out []Path
	seen := make(map[string]bool)
	for _, key := range keys {
		paths, err := Parse(key)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			s := p.String()
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// MustParse is Parse for keys known at compile time. Panics on error.
func MustParse(key string) []Path {
	paths, err := Parse(key)
	if err != nil {
		panic(err)
	}
	return paths
}

// expandBraces expands every {a,b} group. Nested groups are rejected.
func expandBraces(key string) ([]string, error) {
	open := strings.IndexByte(key, '{')
	if open < 0 {
		if i := strings.IndexByte(key, '}'); i >= 0 {
			return nil, &ParseError{Key: key, Pos: i, Msg: "unbalanced '}'"}
		}
		return []string{key}, nil
	}

	closeRel := strings.IndexByte(key[open+1:], '}')
	if closeRel < 0 {
		return nil, &ParseError{Key: key, Pos: open, Msg: "unbalanced '{'"}
	}
	closeIdx := open + 1 + closeRel
	body := key[open+1 : closeIdx]
	if i := strings.IndexByte(body, '{'); i >= 0 {
		return nil, &ParseError{Key: key, Pos: open + 1 + i, Msg: "nested braces"}
	}
	if i := strings.IndexByte(key[:open], '}'); i >= 0 {
		return nil, &ParseError{Key: key, Pos: i, Msg: "unbalanced '}'"}
	}

	prefix, suffix := key[:open], key[closeIdx+1:]
	tails, err := expandBraces(suffix)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Key = key
			pe.Pos += closeIdx + 1
		}
		return nil, err
	}

	var out []string
	for _, alt := range strings.Split(body, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, &ParseError{Key: key, Pos: open, Msg: "empty brace alternative"}
		}
		for _, tail := range tails {
			out = append(out, prefix+alt+tail)
		}
	}
	return out, nil
}

func parseExpanded(key, ex string) (Path, error) {
	parts := strings.Split(ex, ".")
	segs := make([]Segment, 0, len(parts))
	offset := 0
	for i, part := range parts {
		last := i == len(parts)-1
		switch {
		case part == "":
			return Path{}, &ParseError{Key: key, Pos: offset, Msg: "empty segment"}
		case part == eachToken:
			if i == 0 {
				return Path{}, &ParseError{Key: key, Pos: offset, Msg: "@each must follow a collection"}
			}
			if last {
				return Path{}, &ParseError{Key: key, Pos: offset, Msg: "@each must be followed by a field"}
			}
			if segs[len(segs)-1].Kind == Each {
				return Path{}, &ParseError{Key: key, Pos: offset, Msg: "repeated @each"}
			}
			segs = append(segs, Segment{Kind: Each})
		case part == membersToken || (part == lengthToken && i > 0 && last):
			if i == 0 {
				return Path{}, &ParseError{Key: key, Pos: offset, Msg: "[] must follow a collection"}
			}
			if !last {
				return Path{}, &ParseError{Key: key, Pos: offset, Msg: "nothing may follow " + part}
			}
			if segs[len(segs)-1].Kind == Each {
				return Path{}, &ParseError{Key: key, Pos: offset, Msg: part + " cannot follow @each"}
			}
			segs = append(segs, Segment{Kind: Members, Name: part})
		case strings.ContainsAny(part, "@[]{}, \t"):
			return Path{}, &ParseError{Key: key, Pos: offset, Msg: "invalid character in segment " + part}
		default:
			segs = append(segs, Segment{Kind: Field, Name: part})
		}
		offset += len(part) + 1
	}
	return Path{Segments: segs}, nil
}
