package remediation

import "strings"

// Severity ranks a finding for alerting and auto-remediation decisions.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Remediable reports whether findings of this severity qualify for
// auto-remediation.
func (s Severity) Remediable() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Finding is the slice of an Access Analyzer finding the handler acts on.
// Live fields come from the analyzer; FindingType rides in on the
// triggering event.
type Finding struct {
	ID           string
	ResourceType string
	FindingType  string
	Resource     string
	IsPublic     bool
}

// ClassifySeverity assigns a severity, first match wins. marshaled is the
// raw finding as returned by the analyzer, checked for policy names that
// never belong in findings regardless of which field they appear in.
func ClassifySeverity(f Finding, marshaled string) Severity {
	if f.ResourceType == "AWS::IAM::Role" && f.IsPublic {
		return SeverityCritical
	}
	if strings.Contains(marshaled, "AdministratorAccess") {
		return SeverityCritical
	}

	if f.ResourceType == "AWS::S3::Bucket" && f.IsPublic {
		return SeverityHigh
	}
	if f.FindingType == "OverlyPermissive" {
		return SeverityHigh
	}

	if f.FindingType == "ExternalAccess" {
		return SeverityMedium
	}

	return SeverityLow
}
