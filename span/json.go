package span

import (
	"fmt"
	"strconv"
	"strings"

	gojson "github.com/coreos/go-json"
	jp "github.com/reclaimprotocol/jsonpathplus-go"
)

// JSONPathRanges evaluates a JSONPath expression against doc and returns
// the byte range of every matched value. String values include their quotes.
func JSONPathRanges(doc []byte, expr string) ([]Range, error) {
	results, err := jp.Query(expr, string(doc))
	if err != nil {
		return nil, fmt.Errorf("JSONPath query failed: %v", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("JSONPath %q matched nothing", expr)
	}

	// the query result only carries paths; offsets come from a second parse
	var root gojson.Node
	if err := gojson.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse JSON for offsets: %v", err)
	}

	ranges := make([]Range, 0, len(results))
	for _, r := range results {
		n, err := findNodeBySegments(&root, jsonPathToSegments(r.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %q: %v", r.Path, err)
		}
		// Node.End is inclusive
		rg := Range{Start: n.Start, End: n.End + 1}
		if rg.Start < 0 || rg.End > len(doc) || rg.Start >= rg.End {
			return nil, fmt.Errorf("invalid range %s for path %q", rg, r.Path)
		}
		ranges = append(ranges, rg)
	}
	return ranges, nil
}

// jsonPathToSegments converts a normalized path like $.a[1]['b'] to
// segments ["a", "1", "b"].
func jsonPathToSegments(path string) []string {
	p := strings.TrimPrefix(path, "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return nil
	}
	var (
		segments  []string
		cur       strings.Builder
		inBracket bool
	)
	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
		}
	}
	for _, r := range p {
		switch {
		case r == '.' && !inBracket:
			flush()
			continue
		case r == '[' && !inBracket:
			flush()
			inBracket = true
			continue
		case r == ']' && inBracket:
			segments = append(segments, strings.Trim(cur.String(), `'"`))
			cur.Reset()
			inBracket = false
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return segments
}

func findNodeBySegments(node *gojson.Node, segments []string) (*gojson.Node, error) {
	cur := node
	for i, seg := range segments {
		switch v := cur.Value.(type) {
		case map[string]gojson.Node:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("object key %q not found at segment %d", seg, i)
			}
			cur = &next
		case []gojson.Node:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("invalid array index %q at segment %d", seg, i)
			}
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("array index %d out of bounds at segment %d", idx, i)
			}
			cur = &v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into %T at segment %d", v, i)
		}
	}
	return cur, nil
}
