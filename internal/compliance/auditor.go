// Package compliance audits Secrets Manager for rotation hygiene: secrets
// without rotation, stale rotations, old values, and missing governance
// tags.
package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/metrics"
	"github.com/psd401/aistudio.psd401.ai/internal/notify"
)

// Tags every managed secret must carry.
var requiredTags = []string{"Environment", "ManagedBy", "ProjectName"}

// Violation severities, ordered.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Violation types.
const (
	ViolationNoRotation      = "no_rotation"
	ViolationRotationFailure = "rotation_failure"
	ViolationAgeExceeded     = "age_exceeded"
	ViolationMissingTags     = "missing_tags"
)

// reportLimit caps how many high-severity violations one SNS report lists.
const reportLimit = 10

// SecretsManagerAPI is the Secrets Manager subset the auditor uses. It
// matches secretsmanager.ListSecretsAPIClient, so the SDK paginator
// drives it directly.
type SecretsManagerAPI interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// Config is the auditor's environment-derived configuration.
type Config struct {
	ProjectName string
	Environment string
	// MaxSecretAge is the rotation/age threshold in days.
	MaxSecretAge int
}

// Event triggers an audit: a scheduled scan ({"scanType":"scheduled"}) or
// a CloudTrail rotation event routed through EventBridge.
type Event struct {
	ScanType string          `json:"scanType"`
	Detail   json.RawMessage `json:"detail,omitempty"`
}

type rotationDetail struct {
	EventName         string `json:"eventName"`
	ErrorCode         string `json:"errorCode"`
	RequestParameters struct {
		SecretID string `json:"secretId"`
	} `json:"requestParameters"`
}

// Violation is one compliance failure on one secret.
type Violation struct {
	SecretName  string   `json:"secretName"`
	Type        string   `json:"violation"`
	Severity    string   `json:"severity"`
	AgeDays     int      `json:"age,omitempty"`
	MissingTags []string `json:"missingTags,omitempty"`
}

// Summary is the audit result.
type Summary struct {
	ScanType            string      `json:"scanType"`
	TotalSecrets        int         `json:"totalSecrets"`
	CompliantSecrets    int         `json:"compliantSecrets"`
	NonCompliantSecrets int         `json:"nonCompliantSecrets"`
	ComplianceRate      float64     `json:"complianceRate"`
	Violations          []Violation `json:"violations"`
}

// Auditor scans secrets and reports violations.
type Auditor struct {
	client   SecretsManagerAPI
	cfg      Config
	metrics  *metrics.Publisher
	notifier *notify.Notifier
	logger   *logging.Logger
	now      func() time.Time
}

// NewAuditor wires the compliance auditor.
func NewAuditor(client SecretsManagerAPI, cfg Config, publisher *metrics.Publisher, notifier *notify.Notifier, logger *logging.Logger) *Auditor {
	return &Auditor{
		client:   client,
		cfg:      cfg,
		metrics:  publisher,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle is the Lambda entrypoint. Failed rotations reported by CloudTrail
// short-circuit to an alert; everything else runs a full scan.
func (a *Auditor) Handle(ctx context.Context, event Event) (*Summary, error) {
	if len(event.Detail) > 0 {
		var detail rotationDetail
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			return nil, fmt.Errorf("decode event detail: %w", err)
		}
		if detail.EventName == "RotateSecret" && detail.ErrorCode != "" {
			return a.handleRotationFailure(ctx, detail)
		}
	}

	return a.fullScan(ctx)
}

func (a *Auditor) handleRotationFailure(ctx context.Context, detail rotationDetail) (*Summary, error) {
	secretID := detail.RequestParameters.SecretID
	a.logger.Warn("rotation failed for %s: %s", secretID, detail.ErrorCode)

	if err := a.metrics.Publish(ctx, metrics.Datum{
		Name:       "RotationFailureEvent",
		Value:      1,
		Dimensions: map[string]string{"SecretName": secretID},
	}); err != nil {
		a.logger.Error("publish rotation failure metric: %v", err)
	}

	subject := fmt.Sprintf("[%s] Secret rotation failure: %s", a.cfg.Environment, secretID)
	message := fmt.Sprintf("Secret rotation failed\n\nEnvironment: %s\nSecret: %s\nError code: %s\nTime: %s\n",
		a.cfg.Environment, secretID, detail.ErrorCode, a.now().UTC().Format(time.RFC3339))
	if err := a.notifier.Send(ctx, subject, message); err != nil {
		a.logger.Error("send rotation failure alert: %v", err)
	}

	return &Summary{
		ScanType: "rotation-event",
		Violations: []Violation{{
			SecretName: secretID,
			Type:       ViolationRotationFailure,
			Severity:   SeverityHigh,
		}},
	}, nil
}

func (a *Auditor) fullScan(ctx context.Context) (*Summary, error) {
	a.logger.Info("starting full compliance scan")

	summary := &Summary{ScanType: "scheduled"}

	paginator := secretsmanager.NewListSecretsPaginator(a.client, &secretsmanager.ListSecretsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list secrets: %w", err)
		}

		for _, entry := range page.SecretList {
			summary.TotalSecrets++
			violations := a.evaluate(entry)
			if len(violations) == 0 {
				summary.CompliantSecrets++
			} else {
				summary.NonCompliantSecrets++
				summary.Violations = append(summary.Violations, violations...)
			}
		}
	}

	if summary.TotalSecrets > 0 {
		summary.ComplianceRate = float64(summary.CompliantSecrets) / float64(summary.TotalSecrets) * 100
	} else {
		summary.ComplianceRate = 100
	}

	a.publishScanMetrics(ctx, summary)

	if high := highSeverity(summary.Violations); len(high) > 0 {
		a.sendReport(ctx, summary, high)
	}

	a.logger.Info("compliance scan completed: %d secrets, %d violations",
		summary.TotalSecrets, len(summary.Violations))
	return summary, nil
}

// evaluate returns every violation one secret carries.
func (a *Auditor) evaluate(entry smtypes.SecretListEntry) []Violation {
	name := aws.ToString(entry.Name)
	var out []Violation

	if !aws.ToBool(entry.RotationEnabled) {
		out = append(out, Violation{SecretName: name, Type: ViolationNoRotation, Severity: SeverityMedium})
	} else if entry.LastRotatedDate != nil && a.ageDays(*entry.LastRotatedDate) > a.cfg.MaxSecretAge {
		out = append(out, Violation{SecretName: name, Type: ViolationRotationFailure, Severity: SeverityHigh})
	}

	if entry.LastChangedDate != nil {
		if age := a.ageDays(*entry.LastChangedDate); age > a.cfg.MaxSecretAge {
			out = append(out, Violation{SecretName: name, Type: ViolationAgeExceeded, Severity: SeverityHigh, AgeDays: age})
		}
	}

	if missing := missingRequiredTags(entry.Tags); len(missing) > 0 {
		out = append(out, Violation{SecretName: name, Type: ViolationMissingTags, Severity: SeverityLow, MissingTags: missing})
	}

	return out
}

func (a *Auditor) ageDays(t time.Time) int {
	return int(a.now().Sub(t).Hours() / 24)
}

func missingRequiredTags(tags []smtypes.Tag) []string {
	present := make(map[string]bool, len(tags))
	for _, tag := range tags {
		present[aws.ToString(tag.Key)] = true
	}

	var missing []string
	for _, required := range requiredTags {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	sort.Strings(missing)
	return missing
}

func highSeverity(violations []Violation) []Violation {
	var high []Violation
	for _, v := range violations {
		if v.Severity == SeverityHigh {
			high = append(high, v)
		}
	}
	return high
}

// publishScanMetrics is best effort: a metrics outage must not fail the
// scan that just collected the data.
func (a *Auditor) publishScanMetrics(ctx context.Context, summary *Summary) {
	err := a.metrics.Publish(ctx,
		metrics.Datum{Name: "TotalSecrets", Value: float64(summary.TotalSecrets)},
		metrics.Datum{Name: "CompliantSecrets", Value: float64(summary.CompliantSecrets)},
		metrics.Datum{Name: "NonCompliantSecrets", Value: float64(summary.NonCompliantSecrets)},
		metrics.Datum{Name: "ComplianceRate", Value: summary.ComplianceRate, Unit: cwtypes.StandardUnitPercent},
		metrics.Datum{Name: "HighSeverityViolations", Value: float64(len(highSeverity(summary.Violations)))},
	)
	if err != nil {
		a.logger.Error("publish compliance metrics: %v", err)
	}
}

func (a *Auditor) sendReport(ctx context.Context, summary *Summary, high []Violation) {
	counts := map[string]int{}
	for _, v := range summary.Violations {
		counts[v.Severity]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Secrets Manager compliance report\n\n")
	fmt.Fprintf(&b, "Environment: %s\n", a.cfg.Environment)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", a.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Summary:\n")
	fmt.Fprintf(&b, "- Secrets scanned: %d\n", summary.TotalSecrets)
	fmt.Fprintf(&b, "- Compliance rate: %.1f%%\n", summary.ComplianceRate)
	fmt.Fprintf(&b, "- Total violations: %d\n", len(summary.Violations))
	fmt.Fprintf(&b, "- High severity: %d\n", counts[SeverityHigh])
	fmt.Fprintf(&b, "- Medium severity: %d\n", counts[SeverityMedium])
	fmt.Fprintf(&b, "- Low severity: %d\n\n", counts[SeverityLow])
	fmt.Fprintf(&b, "High severity violations:\n")

	for i, v := range high {
		if i == reportLimit {
			fmt.Fprintf(&b, "... and %d more\n", len(high)-reportLimit)
			break
		}
		fmt.Fprintf(&b, "- %s: %s", v.SecretName, v.Type)
		if v.AgeDays > 0 {
			fmt.Fprintf(&b, " (age: %d days)", v.AgeDays)
		}
		fmt.Fprintf(&b, "\n")
	}

	subject := fmt.Sprintf("[%s] Secrets compliance violations detected", a.cfg.Environment)
	if err := a.notifier.Send(ctx, subject, b.String()); err != nil {
		a.logger.Error("send compliance report: %v", err)
	}
}
