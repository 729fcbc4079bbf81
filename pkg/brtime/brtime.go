// Package brtime provides São Paulo-local timestamps for journal records,
// logs, and API responses. The operator panel expects every timestamp to
// carry the -03:00 offset, so emission always goes through this package
// rather than time.Now directly.
package brtime

import "time"

// Location is America/Sao_Paulo. Brazil abolished DST in 2019, so the
// offset is a fixed -03:00; the FixedZone fallback covers containers
// shipped without tzdata.
var Location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}

// Now returns the current instant in the São Paulo zone.
func Now() time.Time {
	return time.Now().In(Location)
}

// Format renders t as ISO-8601 with the -03:00 offset attached, e.g.
// "2025-08-26T14:03:07.123456-03:00".
func Format(t time.Time) string {
	return t.In(Location).Format("2006-01-02T15:04:05.000000-07:00")
}

// FormatSeconds renders t with second precision and no offset, the compact
// form used for the monitoring_since field.
func FormatSeconds(t time.Time) string {
	return t.In(Location).Format("2006-01-02 15:04:05")
}
