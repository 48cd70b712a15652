package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath lays exports out by database and UTC day:
// <database>/date=YYYY-MM-DD/export-<id>.<ext>
func BuildExportPath(database string, at time.Time, exportID, ext string) (string, error) {
	if err := validatePathComponent(database, "database name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(exportID, "export id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(ext, "extension"); err != nil {
		return "", err
	}

	ts := at.UTC()
	return path.Join(
		database,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("export-%s.%s", exportID, ext),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
