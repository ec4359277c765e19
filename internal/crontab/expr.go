package crontab

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// MinFields is the minimum number of whitespace-separated fields in a schedule.
const MinFields = 5

var standardParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NormalizeExpression trims expr and checks it has at least MinFields fields,
// fits on one line and carries no comment that could forge an ownership tag.
func NormalizeExpression(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if strings.ContainsAny(expr, "\r\n") {
		return "", fmt.Errorf("%w: line breaks are not allowed", ErrInvalidExpression)
	}
	if strings.Contains(expr, "#") {
		return "", fmt.Errorf("%w: '#' is not allowed", ErrInvalidExpression)
	}
	if n := len(strings.Fields(expr)); n < MinFields {
		return "", fmt.Errorf("%w: expected at least %d fields, got %d", ErrInvalidExpression, MinFields, n)
	}
	return expr, nil
}

// NextRun returns the next activation after from for the first five fields of
// expr, using the standard crontab grammar. Host cron implementations accept
// extensions (e.g. 7 for Sunday, "L"), so a parse failure here is advisory.
func NextRun(expr string, from time.Time) (time.Time, error) {
	fields := strings.Fields(expr)
	if len(fields) > MinFields {
		fields = fields[:MinFields]
	}
	sched, err := standardParser.Parse(strings.Join(fields, " "))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cron expression: %w", err)
	}
	return sched.Next(from), nil
}
