package commands

// Display constants
const (
	// DefaultHistoryLimit is the default number of ledger records to list
	DefaultHistoryLimit = 10
	// MaxHistoryAnalysisRecords bounds the records read for stats
	MaxHistoryAnalysisRecords = 1000
)

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrLedgerUnavailable        = "audit ledger unavailable"
	ErrOperationsUnavailable    = "operations service unavailable"
	ErrRollbackTargetRequired   = "an operation id or --last is required"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No operations recorded yet."
	MsgWhitelistEmpty     = "Whitelist is empty."
)
