package regions

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeNetworkName makes SSIDs comparable regardless of case and Unicode
// composition. Two names that normalise equal are the same network.
func NormalizeNetworkName(name string) string {
	// Casers are stateful, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// NormalizeBSSID lower-cases a MAC address and uses ':' separators.
func NormalizeBSSID(bssid string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(bssid)), "-", ":")
}
