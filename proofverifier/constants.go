package proofverifier

// Display and Formatting Constants
const (
	AsteriskCollapseThreshold = 100            // Number of consecutive asterisks before collapsing
	CollapsedAsteriskPattern  = "*********..." // Pattern used for collapsed asterisks display
	RedactionFill             = '*'            // Stand-in for undisclosed transcript bytes
)

// BundleVersion is the bundle format this package reads and writes.
const BundleVersion = 1
