package popsimgo

import "fmt"

const (
	// StringKeyNotFoundError is the message for missing string-keyed entries.
	StringKeyNotFoundError = "key %s not found"

	// StringKeyExists is the message printed when a given key already exists.
	StringKeyExists = "key %s already exists"

	InvalidFloatParameterError  = "invalid %s %f, %s"
	InvalidIntParameterError    = "invalid %s %d, %s"
	InvalidStringParameterError = "invalid %s %s, %s"

	// FileParsingError is the message for malformed input files.
	FileParsingError = "error in line %d: %s"
)

const (
	UnequalFloatParameterError  = "expected %s %f, instead got %f"
	UnequalIntParameterError    = "expected %s %d, instead got %d"
	UnequalStringParameterError = "expected %s %s, instead got %s"
	UnexpectedErrorWhileError   = "encountered error while %s: %s"
	ExpectedErrorWhileError     = "expected an error while %s, instead got none"
)

// NewUnknownMachineError reports a reference to a machine id that is not
// registered with the kernel.
func NewUnknownMachineError(machineID string) error {
	return fmt.Errorf("machine %s is not registered", machineID)
}

// NewUnknownStateError reports a state name a machine does not declare.
func NewUnknownStateError(machineID, state string) error {
	return fmt.Errorf("machine %s does not declare state %s", machineID, state)
}

// NewInvariantError reports a module invariant violation.
func NewInvariantError(moduleID, msg string) error {
	return fmt.Errorf("module %s invariant violated: %s", moduleID, msg)
}
