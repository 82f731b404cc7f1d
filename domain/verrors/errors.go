// Package verrors implements the error taxonomy of the governance engine:
// a small set of ErrorCode-tagged struct types rather than ad hoc errors.New
// strings, so callers can branch on Code and chain with errors.Is/As.
package verrors

import "fmt"

// ErrorCode is a stable, loggable identifier for a class of failure.
type ErrorCode string

const (
	CodeGovernanceViolation ErrorCode = "GOVERNANCE_VIOLATION"
	CodeCircularDependency  ErrorCode = "CIRCULAR_DEPENDENCY"
	CodeModelNotFound       ErrorCode = "MODEL_NOT_FOUND"
	CodeComplianceError     ErrorCode = "COMPLIANCE_ERROR"
	CodeManifestError       ErrorCode = "MANIFEST_ERROR"
	CodeSchemaError         ErrorCode = "SCHEMA_ERROR"

	CodeDatabase       ErrorCode = "DATABASE_ERROR"
	CodeIO             ErrorCode = "IO_ERROR"
	CodeYaml           ErrorCode = "YAML_ERROR"
	CodeTemplate       ErrorCode = "TEMPLATE_ERROR"
	CodeConfig         ErrorCode = "CONFIG_ERROR"
	CodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"

	CodeUnsafePath ErrorCode = "UNSAFE_PATH"
)

// DomainError represents a failure in the core business rules: scheduling,
// governance, compliance, or manifest resolution.
type DomainError struct {
	Code    ErrorCode
	Message string
	Hint    string
	Details map[string]string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// WithDetails attaches structured context and returns the receiver for chaining.
func (e *DomainError) WithDetails(details map[string]string) *DomainError {
	e.Details = details
	return e
}

func NewDomainError(code ErrorCode, message, hint string) *DomainError {
	return &DomainError{Code: code, Message: message, Hint: hint}
}

// CircularDependency reports a cycle or a dangling ref during scheduling.
func CircularDependency(message string) *DomainError {
	return NewDomainError(CodeCircularDependency, message, "Check your ref() macros")
}

// ModelNotFound reports a reference to a node absent from the manifest.
func ModelNotFound(name string) *DomainError {
	return NewDomainError(CodeModelNotFound, fmt.Sprintf("model %q not found", name), "Check the model name and its refs()")
}

// GovernanceViolation reports a masking or security-level invariant breach.
func GovernanceViolation(message string) *DomainError {
	return NewDomainError(CodeGovernanceViolation, message, "Apply a masking policy or demote the downstream security_level")
}

// ComplianceError reports a strict-mode anomaly or drift failure.
func ComplianceError(message string) *DomainError {
	return NewDomainError(CodeComplianceError, message, "Re-run with the anomaly bypassed, or investigate the upstream source")
}

// ManifestError reports a malformed manifest during discovery.
func ManifestError(message string) *DomainError {
	return NewDomainError(CodeManifestError, message, "Check the SQL and YAML files under your models path")
}

// SchemaError reports a schema-persistence or lifecycle-invariant failure.
func SchemaError(message string) *DomainError {
	return NewDomainError(CodeSchemaError, message, "Deprecate the prior version before activating the next one")
}

// InfrastructureError represents a failure in an external collaborator: the
// connector, the filesystem, or config parsing.
type InfrastructureError struct {
	Code    ErrorCode
	Message string
	Details map[string]string
	Err     error
}

func (e *InfrastructureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) WithDetails(details map[string]string) *InfrastructureError {
	e.Details = details
	return e
}

func NewInfrastructureError(code ErrorCode, message string, err error) *InfrastructureError {
	return &InfrastructureError{Code: code, Message: message, Err: err}
}

func Database(message string, err error) *InfrastructureError {
	return NewInfrastructureError(CodeDatabase, message, err)
}

func IO(message string, err error) *InfrastructureError {
	return NewInfrastructureError(CodeIO, message, err)
}

func Yaml(message string, err error) *InfrastructureError {
	return NewInfrastructureError(CodeYaml, message, err)
}

func Template(message string, err error) *InfrastructureError {
	return NewInfrastructureError(CodeTemplate, message, err)
}

func Config(message string, err error) *InfrastructureError {
	return NewInfrastructureError(CodeConfig, message, err)
}

func ConfigNotFound(message string) *InfrastructureError {
	return NewInfrastructureError(CodeConfigNotFound, message, nil)
}

// UnsafePathError reports a computed path that escapes the project root.
type UnsafePathError struct {
	Path string
	Root string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("%s: path %q escapes project root %q", CodeUnsafePath, e.Path, e.Root)
}

func NewUnsafePathError(path, root string) *UnsafePathError {
	return &UnsafePathError{Path: path, Root: root}
}
