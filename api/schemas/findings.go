package schemas

// -- Finding Schemas --

// Severity represents the severity level of a security finding, ranging from
// critical to informational. The values are lowercase to align with database ENUMs.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// FindingKind discriminates between the two finding shapes a run can produce:
// full vulnerability records from the oracle-based extractor, and lightweight
// port/service records from the transcript scan extractor.
type FindingKind string

const (
	FindingVulnerability FindingKind = "vulnerability"
	FindingService       FindingKind = "service"
)

// Finding is a tagged union over the two extraction shapes. Exactly one
// variant is populated, selected by Kind. Both variants share the same
// findings slice on a run result so either extraction strategy can feed it.
type Finding struct {
	Kind FindingKind `json:"kind"`

	// Vulnerability variant (Kind == FindingVulnerability).
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Evidence    string   `json:"evidence,omitempty"`
	Severity    Severity `json:"severity,omitempty"`
	Remediation string   `json:"remediation,omitempty"`

	// Service variant (Kind == FindingService).
	Port        string `json:"port,omitempty"`
	ServiceInfo string `json:"service_info,omitempty"`
}

// NewVulnerabilityFinding builds the vulnerability-record variant.
func NewVulnerabilityFinding(vulnType, description, evidence string, severity Severity, remediation string) Finding {
	return Finding{
		Kind:        FindingVulnerability,
		Type:        vulnType,
		Description: description,
		Evidence:    evidence,
		Severity:    severity,
		Remediation: remediation,
	}
}

// NewServiceFinding builds the port/service-record variant.
func NewServiceFinding(port, serviceInfo string) Finding {
	return Finding{
		Kind:        FindingService,
		Port:        port,
		ServiceInfo: serviceInfo,
	}
}
