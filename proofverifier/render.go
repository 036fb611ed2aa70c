package proofverifier

import (
	"strings"

	"tlsn-notary/transcript"
)

// RenderRedacted shows one direction of r with undisclosed bytes as
// asterisks, collapsing long runs.
func RenderRedacted(r *transcript.Redacted, dir transcript.Direction) string {
	return collapseAsterisks(r.Bytes(dir, RedactionFill))
}

// collapseAsterisks keeps runs of up to AsteriskCollapseThreshold
// asterisks and replaces longer ones with CollapsedAsteriskPattern.
func collapseAsterisks(data []byte) string {
	var result strings.Builder
	asteriskCount := 0
	flush := func() {
		if asteriskCount == 0 {
			return
		}
		if asteriskCount <= AsteriskCollapseThreshold {
			result.WriteString(strings.Repeat("*", asteriskCount))
		} else {
			result.WriteString(CollapsedAsteriskPattern)
		}
		asteriskCount = 0
	}

	for _, b := range data {
		if b == RedactionFill {
			asteriskCount++
			continue
		}
		flush()
		result.WriteByte(b)
	}
	flush()
	return result.String()
}
