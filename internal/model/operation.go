package model

// Operation identifies the top-level API call a plugin was initialized for.
type Operation string

// Operation constants.
const (
	OperationLoadSources Operation = "loadSources"
	OperationLoadSupport Operation = "loadSupport"
	OperationRunCucumber Operation = "runCucumber"
)

// ValidOperation reports whether op is one of the known operations.
func ValidOperation(op Operation) bool {
	switch op {
	case OperationLoadSources, OperationLoadSupport, OperationRunCucumber:
		return true
	default:
		return false
	}
}
