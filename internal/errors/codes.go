package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Resource errors
	ErrResourceBusy      ErrorCode = "resource_busy"
	ErrResourceNotFound  ErrorCode = "resource_not_found"
	ErrResourceExhausted ErrorCode = "resource_exhausted"

	// Application errors
	ErrInitApp  ErrorCode = "init_app_failed"
	ErrMainLoop ErrorCode = "main_loop_failed"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// Crate telemetry errors
	ErrDeviceComm     ErrorCode = "device_communication_failed"
	ErrCommitFailed   ErrorCode = "persistence_commit_failed"
	ErrInvalidCrate   ErrorCode = "invalid_crate_topology"
	ErrInvalidParams  ErrorCode = "invalid_parameter_set"
	ErrPartialReading ErrorCode = "partial_reading"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read config file",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrResourceBusy:      "Resource is busy",
	ErrResourceNotFound:  "Resource not found",
	ErrResourceExhausted: "Resource exhausted",
	ErrInitApp:           "Failed to initialize application",
	ErrMainLoop:          "Error in main loop",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
	ErrInvalidOperation:  "Invalid operation",
	ErrDeviceComm:        "Device communication failed",
	ErrCommitFailed:      "Failed to commit buffered snapshots",
	ErrInvalidCrate:      "Invalid crate topology",
	ErrInvalidParams:     "Invalid parameter set",
	ErrPartialReading:    "Device returned a partial reading",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
