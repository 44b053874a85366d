package gam

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Header names GAM emits for the two columns the sync jobs consume.
const (
	SerialHeader = "serialNumber"
	AssetHeader  = "annotatedAssetId"
)

// ErrNoSerialColumn is returned when a CSV listing has no serial-number
// column; callers treat it as "no usable data", not a fatal fault.
var ErrNoSerialColumn = errors.New("gam: serial number column not found in output")

// DeviceRow is one parsed line of a bulk device listing.
type DeviceRow struct {
	SerialNumber string
	AssetID      *string
}

// ParseDeviceList parses a CSV device listing (first line header) into rows.
// serialHeader and assetHeader name the expected columns. Rows with an empty
// serial are skipped; a missing asset column (or empty value) yields a nil
// AssetID; blank lines and unparseable lines are skipped. Quoted fields with
// embedded commas are handled per standard CSV rules.
func ParseDeviceList(output, serialHeader, assetHeader string) ([]DeviceRow, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(output)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, ErrNoSerialColumn
	}

	serialIdx, assetIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case serialHeader:
			serialIdx = i
		case assetHeader:
			assetIdx = i
		}
	}
	if serialIdx < 0 {
		return nil, ErrNoSerialColumn
	}

	var rows []DeviceRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line; skip it and keep going.
			continue
		}
		if serialIdx >= len(record) {
			continue
		}
		serial := strings.TrimSpace(record[serialIdx])
		if serial == "" {
			continue
		}

		row := DeviceRow{SerialNumber: serial}
		if assetIdx >= 0 && assetIdx < len(record) {
			if asset := strings.TrimSpace(record[assetIdx]); asset != "" {
				row.AssetID = &asset
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// recentUsersSection marks the block of the single-device report that holds
// the most recent users, e.g.:
//
//	recentUsers:
//	  type: USER_TYPE_MANAGED
//	  email: student@school.org
const recentUsersSection = "recentUsers"

// ParseRecentUserEmail extracts the most recent user's email from a
// single-device nested report. It scans for the recentUsers section header
// and returns the first email: field nested under it, or "" when the device
// has no recent-user data. The format has no strict grammar; the section
// ends when indentation returns to the header's level.
func ParseRecentUserEmail(output string) string {
	lines := strings.Split(output, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != recentUsersSection && trimmed != recentUsersSection+":" {
			continue
		}
		sectionIndent := indentOf(line)

		for _, inner := range lines[i+1:] {
			innerTrimmed := strings.TrimSpace(inner)
			if innerTrimmed == "" {
				continue
			}
			if indentOf(inner) <= sectionIndent {
				break
			}
			if rest, ok := strings.CutPrefix(innerTrimmed, "email:"); ok {
				return strings.TrimSpace(rest)
			}
		}
		break
	}
	return ""
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
