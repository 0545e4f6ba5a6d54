package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationFile = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// postgresOnly lists syntax the sqlite dev database rejects or silently
// misreads. The embedded set has to apply cleanly on both drivers.
var postgresOnly = []struct {
	pattern *regexp.Regexp
	hint    string
}{
	{regexp.MustCompile(`(?i)\bTIMESTAMPTZ\b`), "use TIMESTAMP and write UTC"},
	{regexp.MustCompile(`(?i)\b(BIG)?SERIAL\b`), "ids are UUIDs generated by the application"},
	{regexp.MustCompile(`::`), "casts are postgres-only"},
	{regexp.MustCompile(`(?i)\bgen_random_uuid\s*\(`), "ids are generated by the application"},
	{regexp.MustCompile(`(?i)\bNOW\s*\(\s*\)`), "use CURRENT_TIMESTAMP"},
	{regexp.MustCompile(`(?i)\bCREATE\s+EXTENSION\b`), "extensions are unavailable on sqlite"},
	{regexp.MustCompile(`(?i)\bUSING\s+(gin|gist|brin)\b`), "index methods are postgres-only"},
}

// ValidateDir checks naming, version uniqueness, goose markers and
// cross-driver portability of every migration in dir. All problems are
// reported together.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := map[string]string{}
	var problems error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := migrationFile.FindStringSubmatch(name)
		if m == nil {
			problems = multierr.Append(problems, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := versions[m[1]]; dup {
			problems = multierr.Append(problems, fmt.Errorf("%s: version %s already used by %s", name, m[1], prev))
		}
		versions[m[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		problems = multierr.Append(problems, lintMigration(name, string(body)))
	}
	if len(versions) == 0 && problems == nil {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	return problems
}

func lintMigration(name, body string) error {
	var problems error
	for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(body, marker) {
			problems = multierr.Append(problems, fmt.Errorf("%s: missing %q", name, marker))
		}
	}
	code := stripComments(body)
	for _, rule := range postgresOnly {
		if match := rule.pattern.FindString(code); match != "" {
			problems = multierr.Append(problems, fmt.Errorf("%s: %q is not portable (%s)", name, strings.TrimSpace(match), rule.hint))
		}
	}
	return problems
}

// stripComments drops "--" comments so the template's advice and goose
// annotations are not linted.
func stripComments(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}
