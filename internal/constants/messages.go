// Package constants holds the CLI's default paths and user-facing messages.
package constants

// Config messages
const (
	// MsgConfigLoadError is the error message when configuration loading fails.
	MsgConfigLoadError = "❌ Failed to load configuration: %v\n"

	// MsgConfigValidationFailed introduces the list of validation errors.
	MsgConfigValidationFailed = "❌ Configuration validation failed:\n"

	// MsgConfigValidationItem is one validation error line.
	MsgConfigValidationItem = "  - %v\n"

	// MsgConfigValid is printed by config validate on success.
	MsgConfigValid = "✅ Configuration is valid: %s\n"

	// MsgConfigDefaults notes that no config file was found.
	MsgConfigDefaults = "ℹ️  %s not found, using defaults\n"
)

// Schedule messages
const (
	// MsgScheduleSet confirms an installed schedule.
	MsgScheduleSet = "✅ Schedule set: %s → %s\n"

	// MsgScheduleRemoved confirms a removed schedule.
	MsgScheduleRemoved = "🗑️  Schedule removed: %s\n"

	// MsgSchedulesNotFound is printed when the mirror is empty.
	MsgSchedulesNotFound = "No schedules found.\n"

	// MsgSchedulesTotal is the footer of schedule list.
	MsgSchedulesTotal = "Total: %d schedule(s)\n"

	// MsgNoDrift is printed when mirror and table agree.
	MsgNoDrift = "✅ Mirror and schedule table agree.\n"

	// MsgDriftFound is the footer of schedule drift.
	MsgDriftFound = "⚠️  %d difference(s) found. Re-run schedule set or remove to repair.\n"
)

// Function messages
const (
	// MsgNoLogs is printed when a function has never run.
	MsgNoLogs = "No logs found for function %s\n"
)
