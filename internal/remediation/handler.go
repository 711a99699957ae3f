// Package remediation processes Access Analyzer findings: classifies
// severity, auto-remediates eligible IAM and S3 findings in controlled
// environments, and raises alerts.
package remediation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/accessanalyzer"
	aatypes "github.com/aws/aws-sdk-go-v2/service/accessanalyzer/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/metrics"
	"github.com/psd401/aistudio.psd401.ai/internal/notify"
)

// AnalyzerAPI is the Access Analyzer subset the handler uses.
type AnalyzerAPI interface {
	ListFindings(ctx context.Context, params *accessanalyzer.ListFindingsInput, optFns ...func(*accessanalyzer.Options)) (*accessanalyzer.ListFindingsOutput, error)
}

// IAMAPI is the IAM subset the handler uses.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
}

// S3API is the S3 subset the handler uses.
type S3API interface {
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
}

// Clients bundles the AWS clients the handler depends on.
type Clients struct {
	Analyzer AnalyzerAPI
	IAM      IAMAPI
	S3       S3API
}

// Config is the handler's environment-derived configuration.
type Config struct {
	AnalyzerARN   string
	Environment   string
	AutoRemediate bool
}

// Result is the handler's response, mirroring the finding it processed.
type Result struct {
	FindingID         string   `json:"finding_id"`
	ResourceType      string   `json:"resource_type"`
	FindingType       string   `json:"finding_type,omitempty"`
	Severity          Severity `json:"severity"`
	Remediated        bool     `json:"remediated"`
	RemediationAction string   `json:"remediation_action,omitempty"`
}

// Handler processes one Access Analyzer finding event.
type Handler struct {
	clients  Clients
	cfg      Config
	metrics  *metrics.Publisher
	notifier *notify.Notifier
	logger   *logging.Logger
}

// NewHandler wires the remediation handler.
func NewHandler(cfg Config, clients Clients, publisher *metrics.Publisher, notifier *notify.Notifier, logger *logging.Logger) *Handler {
	return &Handler{
		clients:  clients,
		cfg:      cfg,
		metrics:  publisher,
		notifier: notifier,
		logger:   logger,
	}
}

// findingEvent is the EventBridge detail payload for a new finding.
type findingEvent struct {
	ID           string `json:"id"`
	ResourceType string `json:"resourceType"`
	FindingType  string `json:"findingType"`
	IsPublic     bool   `json:"isPublic"`
	Resource     string `json:"resource"`
}

type remediationOutcome struct {
	success bool
	action  string
	reason  string
}

// Handle is the Lambda entrypoint. Failures raise an error alert before
// propagating, so a broken remediation pipeline is itself visible.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) (*Result, error) {
	result, err := h.process(ctx, event)
	if err != nil {
		h.logger.Error("remediation failed: %v", err)
		h.sendErrorAlert(ctx, event, err)
		return nil, err
	}
	return result, nil
}

func (h *Handler) process(ctx context.Context, event events.CloudWatchEvent) (*Result, error) {
	var detail findingEvent
	if len(event.Detail) > 0 {
		if err := json.Unmarshal(event.Detail, &detail); err != nil {
			return nil, fmt.Errorf("decode event detail: %w", err)
		}
	}
	if detail.ID == "" {
		return nil, errors.New("event detail has no finding id")
	}

	finding, marshaled, err := h.fetchFinding(ctx, detail)
	if err != nil {
		return nil, err
	}

	severity := ClassifySeverity(finding, marshaled)
	h.logger.Info("finding %s on %s classified %s", finding.ID, finding.Resource, severity)

	result := &Result{
		FindingID:    finding.ID,
		ResourceType: finding.ResourceType,
		FindingType:  finding.FindingType,
		Severity:     severity,
	}

	if h.cfg.AutoRemediate && severity.Remediable() {
		outcome := h.remediate(ctx, finding)
		result.Remediated = outcome.success
		result.RemediationAction = outcome.action
		if outcome.success {
			h.logger.Info("finding %s remediated: %s", finding.ID, outcome.action)
		} else {
			h.logger.Warn("finding %s not remediated: %s", finding.ID, outcome.reason)
		}
	}

	// The metric is part of the audit trail, so its failure fails the
	// handler.
	if err := h.publishMetric(ctx, result); err != nil {
		return nil, err
	}

	if severity.Remediable() {
		if err := h.sendAlert(ctx, finding, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// fetchFinding re-reads the finding from Access Analyzer so decisions use
// live data, not the possibly stale event detail.
func (h *Handler) fetchFinding(ctx context.Context, detail findingEvent) (Finding, string, error) {
	out, err := h.clients.Analyzer.ListFindings(ctx, &accessanalyzer.ListFindingsInput{
		AnalyzerArn: aws.String(h.cfg.AnalyzerARN),
		Filter: map[string]aatypes.Criterion{
			"id": {Eq: []string{detail.ID}},
		},
	})
	if err != nil {
		return Finding{}, "", fmt.Errorf("list findings for %s: %w", detail.ID, err)
	}
	if len(out.Findings) == 0 {
		return Finding{}, "", fmt.Errorf("finding %s not found in analyzer", detail.ID)
	}

	summary := out.Findings[0]
	marshaled, err := json.Marshal(summary)
	if err != nil {
		marshaled = []byte(fmt.Sprintf("%+v", summary))
	}

	return Finding{
		ID:           aws.ToString(summary.Id),
		ResourceType: string(summary.ResourceType),
		FindingType:  detail.FindingType,
		Resource:     aws.ToString(summary.Resource),
		IsPublic:     aws.ToBool(summary.IsPublic),
	}, string(marshaled), nil
}

func (h *Handler) remediate(ctx context.Context, f Finding) remediationOutcome {
	switch f.ResourceType {
	case "AWS::IAM::Role":
		return h.remediateRole(ctx, f)
	case "AWS::S3::Bucket":
		return h.remediateBucket(ctx, f)
	default:
		return remediationOutcome{reason: fmt.Sprintf("no remediation available for %s", f.ResourceType)}
	}
}

// remediateRole deletes wildcard-granting inline policies from managed dev
// roles. The tag checks run in code: DeleteRolePolicy does not support
// resource tag conditions, so IAM policy alone cannot scope this Lambda to
// managed dev roles.
func (h *Handler) remediateRole(ctx context.Context, f Finding) remediationOutcome {
	roleName := lastSegment(f.Resource, "/")

	role, err := h.clients.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		return remediationOutcome{reason: fmt.Sprintf("get role %s: %v", roleName, err)}
	}

	tags := map[string]string{}
	for _, tag := range role.Role.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	if tags["ManagedBy"] != "BaseIAMRole" {
		return remediationOutcome{reason: "role is not managed by the BaseIAMRole construct"}
	}
	if tags["Environment"] != h.cfg.Environment {
		return remediationOutcome{reason: fmt.Sprintf("role environment %q does not match %q", tags["Environment"], h.cfg.Environment)}
	}

	policies, err := h.clients.IAM.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: aws.String(roleName)})
	if err != nil {
		return remediationOutcome{reason: fmt.Sprintf("list inline policies: %v", err)}
	}

	var actions []string
	for _, policyName := range policies.PolicyNames {
		policy, err := h.clients.IAM.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(policyName),
		})
		if err != nil {
			return remediationOutcome{reason: fmt.Sprintf("get policy %s: %v", policyName, err)}
		}

		doc, err := ParsePolicyDocument(aws.ToString(policy.PolicyDocument))
		if err != nil {
			return remediationOutcome{reason: fmt.Sprintf("policy %s: %v", policyName, err)}
		}
		if !doc.HasDisallowedWildcards() {
			continue
		}

		// Destructive changes stay confined to dev; elsewhere the alert
		// is the remediation.
		if h.cfg.Environment != "dev" {
			continue
		}
		if _, err := h.clients.IAM.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(policyName),
		}); err != nil {
			return remediationOutcome{reason: fmt.Sprintf("delete policy %s: %v", policyName, err)}
		}
		actions = append(actions, fmt.Sprintf("deleted policy %s", policyName))
	}

	if len(actions) > 0 {
		return remediationOutcome{success: true, action: strings.Join(actions, "; ")}
	}
	return remediationOutcome{reason: "no remediable violations found"}
}

func (h *Handler) remediateBucket(ctx context.Context, f Finding) remediationOutcome {
	if h.cfg.Environment != "dev" {
		return remediationOutcome{reason: "s3 remediation only allowed in the dev environment"}
	}

	bucket := lastSegment(f.Resource, ":::")

	tagging, err := h.clients.S3.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isNoSuchTagSet(err) {
			return remediationOutcome{reason: "bucket has no environment tags"}
		}
		return remediationOutcome{reason: fmt.Sprintf("get bucket tags: %v", err)}
	}

	tags := map[string]string{}
	for _, tag := range tagging.TagSet {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	if tags["Environment"] != "dev" {
		return remediationOutcome{reason: "bucket is not tagged as dev environment"}
	}

	_, err = h.clients.S3.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	if err != nil {
		return remediationOutcome{reason: fmt.Sprintf("put public access block: %v", err)}
	}

	return remediationOutcome{success: true, action: "applied block public access configuration"}
}

func (h *Handler) publishMetric(ctx context.Context, result *Result) error {
	return h.metrics.Publish(ctx, metrics.Datum{
		Name:  "FindingRemediation",
		Value: 1,
		Dimensions: map[string]string{
			"Severity":     string(result.Severity),
			"ResourceType": result.ResourceType,
			"Remediated":   strconv.FormatBool(result.Remediated),
		},
	})
}

func (h *Handler) sendAlert(ctx context.Context, f Finding, result *Result) error {
	subject := fmt.Sprintf("[%s] Access Analyzer finding - %s", result.Severity, f.ResourceType)

	status := "NOT REMEDIATED"
	if result.Remediated {
		status = "REMEDIATED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Access Analyzer finding detected\n\n")
	fmt.Fprintf(&b, "Environment: %s\n", h.cfg.Environment)
	fmt.Fprintf(&b, "Severity: %s\n", result.Severity)
	fmt.Fprintf(&b, "Finding ID: %s\n", f.ID)
	fmt.Fprintf(&b, "Resource Type: %s\n", f.ResourceType)
	fmt.Fprintf(&b, "Resource: %s\n", f.Resource)
	fmt.Fprintf(&b, "Finding Type: %s\n", f.FindingType)
	fmt.Fprintf(&b, "Is Public: %t\n\n", f.IsPublic)
	fmt.Fprintf(&b, "Remediation Status: %s\n", status)
	if result.Remediated {
		fmt.Fprintf(&b, "Remediation Action: %s\n", result.RemediationAction)
	}
	fmt.Fprintf(&b, "\nTime: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "\nReview the finding: https://console.aws.amazon.com/access-analyzer/home\n")

	return h.notifier.Send(ctx, subject, b.String())
}

// sendErrorAlert is best effort: the original failure matters more than
// the alert about it.
func (h *Handler) sendErrorAlert(ctx context.Context, event events.CloudWatchEvent, cause error) {
	subject := fmt.Sprintf("[ERROR] Access Analyzer remediation failed - %s", h.cfg.Environment)

	eventJSON, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		eventJSON = []byte(fmt.Sprintf("%+v", event))
	}

	message := fmt.Sprintf("Error processing Access Analyzer finding\n\nEnvironment: %s\nError: %v\nEvent: %s\nTime: %s\n",
		h.cfg.Environment, cause, eventJSON, time.Now().UTC().Format(time.RFC3339))

	if err := h.notifier.Send(ctx, subject, message); err != nil {
		h.logger.Error("error alert failed: %v", err)
	}
}

func isNoSuchTagSet(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchTagSet"
}

// lastSegment returns the substring after the final occurrence of sep, or
// s unchanged when sep is absent.
func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}
