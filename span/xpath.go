package span

import (
	"fmt"

	xp "github.com/reclaimprotocol/xpath-go"
)

// XPathRanges evaluates an XPath expression against an HTML document and
// returns the byte range of each matched element. With contentsOnly the
// range covers the element's inner content instead of the whole element.
func XPathRanges(html string, expr string, contentsOnly bool) ([]Range, error) {
	matches, err := xp.QueryWithOptions(expr, html, xp.Options{
		IncludeLocation: true,
		OutputFormat:    "nodes",
		ContentsOnly:    contentsOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("XPath query %q failed: %v", expr, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("XPath %q matched nothing", expr)
	}

	out := make([]Range, 0, len(matches))
	for _, m := range matches {
		rg := Range{Start: m.StartLocation, End: m.EndLocation}
		if rg.Start < 0 || rg.End > len(html) || rg.Start >= rg.End {
			return nil, fmt.Errorf("invalid range %s for XPath %q", rg, expr)
		}
		out = append(out, rg)
	}
	return out, nil
}
