package types

import "strings"

// GeohashPrecision is the fixed cell precision used for every report.
const GeohashPrecision = 5

// geohashAlphabet is the base32 alphabet used by geohash (no a, i, l, o).
const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// MaxRadarCells bounds the number of cells accepted in a single radar query.
const MaxRadarCells = 200

// MaxSinceHours bounds the aggregation window (30 days).
const MaxSinceHours = 720

// IsGeohash5 reports whether s is a lowercase geohash of exactly five characters.
func IsGeohash5(s string) bool {
	if len(s) != GeohashPrecision {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(geohashAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// NormalizeGeohash lowercases and trims a client-supplied geohash.
func NormalizeGeohash(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
