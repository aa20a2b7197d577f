package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath lays archived exports out by day, then session:
// exports/date=YYYY-MM-DD/<session>/<export>.<ext>
func BuildExportPath(sessionID, exportID, extension string, createdAt time.Time) (string, error) {
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(exportID, "export id"); err != nil {
		return "", err
	}
	extension = strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if err := validatePathComponent(extension, "extension"); err != nil {
		return "", err
	}

	ts := createdAt.UTC()
	return path.Join(
		"exports",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		sessionID,
		exportID+"."+extension,
	), nil
}

// IsExportPath reports whether key was produced by BuildExportPath.
func IsExportPath(key string) bool {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 4 || parts[0] != "exports" || !strings.HasPrefix(parts[1], "date=") {
		return false
	}
	for _, part := range parts[2:] {
		if !pathComponentPattern.MatchString(part) {
			return false
		}
	}
	return true
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
