// Package s3cost analyzes S3 spend through Cost Explorer and produces
// storage-class optimization recommendations.
package s3cost

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/psd401/aistudio.psd401.ai/internal/config"
	"github.com/psd401/aistudio.psd401.ai/internal/logging"
	"github.com/psd401/aistudio.psd401.ai/internal/metrics"
	"github.com/psd401/aistudio.psd401.ai/internal/notify"
)

const (
	s3Service  = "Amazon Simple Storage Service"
	dateLayout = "2006-01-02"
	// lookbackDays is the Cost Explorer window.
	lookbackDays = 30
	// defaultAlertThreshold is the monthly savings (USD) above which an
	// alert goes out.
	defaultAlertThreshold = 100
)

// Recommendation priorities.
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
)

// CostExplorerAPI is the Cost Explorer subset the analyzer uses.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Config is the analyzer's environment-derived configuration.
type Config struct {
	// AlertThreshold is the monthly savings (USD) that triggers an SNS
	// alert.
	AlertThreshold float64
}

// ConfigFromEnv builds the analyzer configuration from the Lambda
// environment.
func ConfigFromEnv() Config {
	return Config{
		AlertThreshold: config.Float("COST_ALERT_THRESHOLD", defaultAlertThreshold),
	}
}

// ClassUsage aggregates one storage class's monthly cost and usage.
type ClassUsage struct {
	Cost     float64 `json:"cost"`
	Quantity float64 `json:"quantity"`
}

// Recommendation is one optimization suggestion.
type Recommendation struct {
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
	// EstimatedSavings is the monthly USD estimate; zero when the savings
	// cannot be quantified and Note describes them instead.
	EstimatedSavings float64 `json:"estimatedSavings,omitempty"`
	Note             string  `json:"note,omitempty"`
}

// Savings summarizes the optimization potential.
type Savings struct {
	CurrentMonthlyCost      float64 `json:"currentMonthlyCost"`
	PotentialMonthlySavings float64 `json:"potentialMonthlySavings"`
	EstimatedAnnualSavings  float64 `json:"estimatedAnnualSavings"`
	SavingsPercentage       float64 `json:"savingsPercentage"`
}

// Report is the analysis result.
type Report struct {
	TotalCost       float64               `json:"totalCost"`
	StorageClasses  map[string]ClassUsage `json:"storageClasses"`
	Recommendations []Recommendation      `json:"recommendations"`
	Savings         Savings               `json:"savings"`
}

// Analyzer runs the scheduled S3 cost analysis.
type Analyzer struct {
	costs    CostExplorerAPI
	cfg      Config
	metrics  *metrics.Publisher
	notifier *notify.Notifier
	logger   *logging.Logger
	now      func() time.Time
}

// NewAnalyzer wires the cost analyzer.
func NewAnalyzer(costs CostExplorerAPI, cfg Config, publisher *metrics.Publisher, notifier *notify.Notifier, logger *logging.Logger) *Analyzer {
	return &Analyzer{
		costs:    costs,
		cfg:      cfg,
		metrics:  publisher,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle is the Lambda entrypoint. The schedule event carries nothing.
func (a *Analyzer) Handle(ctx context.Context) (*Report, error) {
	usage, err := a.fetchCosts(ctx)
	if err != nil {
		return nil, err
	}

	report := a.analyze(usage)
	report.Recommendations = a.recommend(report)
	report.Savings = computeSavings(report)

	a.publishMetrics(ctx, report)

	if report.Savings.PotentialMonthlySavings > a.cfg.AlertThreshold {
		a.sendAlert(ctx, report)
	}

	a.logger.Info("cost analysis completed: total %.2f USD, potential savings %.2f USD/month",
		report.TotalCost, report.Savings.PotentialMonthlySavings)
	return report, nil
}

func (a *Analyzer) fetchCosts(ctx context.Context) (*costexplorer.GetCostAndUsageOutput, error) {
	end := a.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	out, err := a.costs.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(dateLayout)),
			End:   aws.String(end.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{"UnblendedCost", "UsageQuantity"},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("USAGE_TYPE")},
		},
		Filter: &cetypes.Expression{
			Dimensions: &cetypes.DimensionValues{
				Key:    cetypes.DimensionService,
				Values: []string{s3Service},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get cost and usage: %w", err)
	}
	return out, nil
}

func (a *Analyzer) analyze(usage *costexplorer.GetCostAndUsageOutput) *Report {
	report := &Report{StorageClasses: make(map[string]ClassUsage)}

	for _, result := range usage.ResultsByTime {
		for _, group := range result.Groups {
			if len(group.Keys) < 2 {
				continue
			}
			usageType := group.Keys[1]
			cost := a.amount(group.Metrics, "UnblendedCost", usageType)
			quantity := a.amount(group.Metrics, "UsageQuantity", usageType)

			class := storageClass(usageType)
			classUsage := report.StorageClasses[class]
			classUsage.Cost += cost
			classUsage.Quantity += quantity
			report.StorageClasses[class] = classUsage

			report.TotalCost += cost
		}
	}

	report.TotalCost = round2(report.TotalCost)
	return report
}

// amount parses a Cost Explorer decimal-string metric value.
func (a *Analyzer) amount(values map[string]cetypes.MetricValue, metric, usageType string) float64 {
	value, ok := values[metric]
	if !ok || value.Amount == nil {
		return 0
	}
	f, err := strconv.ParseFloat(*value.Amount, 64)
	if err != nil {
		a.logger.Warn("unparseable %s amount %q for %s", metric, *value.Amount, usageType)
		return 0
	}
	return f
}

// storageClass attributes a usage type to a storage class. Specific
// suffixes must match before the generic TimedStorage-ByteHrs.
func storageClass(usageType string) string {
	switch {
	case strings.Contains(usageType, "TimedStorage-SIA"):
		return "Standard-IA"
	case strings.Contains(usageType, "TimedStorage-ZIA"):
		return "One Zone-IA"
	case strings.Contains(usageType, "TimedStorage-INT"):
		return "Intelligent-Tiering"
	case strings.Contains(usageType, "TimedStorage-GlacierByteHrs"),
		strings.Contains(usageType, "TimedStorage-GDA"):
		return "Glacier"
	case strings.Contains(usageType, "TimedStorage-ByteHrs"):
		return "Standard"
	case strings.Contains(usageType, "Requests-"):
		return "Requests"
	default:
		return "Other"
	}
}

func (a *Analyzer) recommend(report *Report) []Recommendation {
	var recs []Recommendation

	if standard, ok := report.StorageClasses["Standard"]; ok && report.TotalCost > 0 {
		if standard.Cost/report.TotalCost > 0.7 {
			recs = append(recs, Recommendation{
				Priority:         PriorityHigh,
				Title:            "Excessive Standard storage usage",
				Description:      "More than 70% of storage cost sits in the Standard tier",
				Action:           "Enable Intelligent-Tiering or add lifecycle policies to move older objects to lower-cost tiers",
				EstimatedSavings: round2(standard.Cost * 0.4),
			})
		}
	}

	if tiering, ok := report.StorageClasses["Intelligent-Tiering"]; !ok || tiering.Cost < 10 {
		recs = append(recs, Recommendation{
			Priority:    PriorityMedium,
			Title:       "Enable Intelligent-Tiering",
			Description: "Intelligent-Tiering is absent or barely used",
			Action:      "Configure buckets to use Intelligent-Tiering for objects with unknown access patterns",
			Note:        "Variable, typically 20-40% cost reduction",
		})
	}

	recs = append(recs, Recommendation{
		Priority:    PriorityMedium,
		Title:       "Implement lifecycle policies",
		Description: "Automate transitions between storage classes",
		Action:      "Configure lifecycle rules to move old objects to cheaper storage tiers",
		Note:        "Up to 60% on infrequently accessed data",
	})

	return recs
}

// computeSavings prices the conservative move of Standard objects into
// Intelligent-Tiering at 30% of the Standard cost.
func computeSavings(report *Report) Savings {
	standard := report.StorageClasses["Standard"]
	potential := round2(standard.Cost * 0.3)

	percentage := 0.0
	if report.TotalCost > 0 {
		percentage = round2(potential / report.TotalCost * 100)
	}

	return Savings{
		CurrentMonthlyCost:      report.TotalCost,
		PotentialMonthlySavings: potential,
		EstimatedAnnualSavings:  round2(potential * 12),
		SavingsPercentage:       percentage,
	}
}

// publishMetrics is best effort: a metrics outage must not fail the
// analysis.
func (a *Analyzer) publishMetrics(ctx context.Context, report *Report) {
	data := []metrics.Datum{
		{Name: "S3TotalCost", Value: report.Savings.CurrentMonthlyCost, Unit: cwtypes.StandardUnitNone},
		{Name: "S3PotentialSavings", Value: report.Savings.PotentialMonthlySavings, Unit: cwtypes.StandardUnitNone},
	}

	classes := make([]string, 0, len(report.StorageClasses))
	for class := range report.StorageClasses {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		data = append(data, metrics.Datum{
			Name:  "S3Cost" + metricClass(class),
			Value: round2(report.StorageClasses[class].Cost),
			Unit:  cwtypes.StandardUnitNone,
		})
	}

	if err := a.metrics.Publish(ctx, data...); err != nil {
		a.logger.Error("publish cost metrics: %v", err)
	}
}

var classReplacer = strings.NewReplacer(" ", "", "-", "")

// metricClass strips spaces and hyphens so class names form valid metric
// suffixes.
func metricClass(class string) string {
	return classReplacer.Replace(class)
}

func (a *Analyzer) sendAlert(ctx context.Context, report *Report) {
	var b strings.Builder
	fmt.Fprintf(&b, "S3 Cost Optimization Alert\n\n")
	fmt.Fprintf(&b, "Current monthly cost: $%.2f\n", report.Savings.CurrentMonthlyCost)
	fmt.Fprintf(&b, "Potential monthly savings: $%.2f\n", report.Savings.PotentialMonthlySavings)
	fmt.Fprintf(&b, "Estimated annual savings: $%.2f\n", report.Savings.EstimatedAnnualSavings)
	fmt.Fprintf(&b, "Savings percentage: %.1f%%\n", report.Savings.SavingsPercentage)
	fmt.Fprintf(&b, "\nRecommendations:\n")

	for i, rec := range report.Recommendations {
		fmt.Fprintf(&b, "\n%d. [%s] %s\n", i+1, rec.Priority, rec.Title)
		fmt.Fprintf(&b, "   %s\n", rec.Description)
		fmt.Fprintf(&b, "   Action: %s\n", rec.Action)
		switch {
		case rec.EstimatedSavings > 0:
			fmt.Fprintf(&b, "   Estimated savings: $%.2f/month\n", rec.EstimatedSavings)
		case rec.Note != "":
			fmt.Fprintf(&b, "   Estimated savings: %s\n", rec.Note)
		}
	}

	if err := a.notifier.Send(ctx, "S3 Cost Optimization Opportunities Detected", b.String()); err != nil {
		a.logger.Error("send cost alert: %v", err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
