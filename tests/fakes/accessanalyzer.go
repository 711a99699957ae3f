package fakes

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/accessanalyzer"
	"github.com/aws/aws-sdk-go-v2/service/accessanalyzer/types"
)

// FakeAccessAnalyzerClient serves findings by id the way ListFindings with
// an id filter does.
type FakeAccessAnalyzerClient struct {
	// Findings maps finding ids to summaries.
	Findings map[string]types.FindingSummary

	ListFindingsFunc func(ctx context.Context, params *accessanalyzer.ListFindingsInput) (*accessanalyzer.ListFindingsOutput, error)
}

// NewAccessAnalyzer creates an empty fake client.
func NewAccessAnalyzer() *FakeAccessAnalyzerClient {
	return &FakeAccessAnalyzerClient{Findings: make(map[string]types.FindingSummary)}
}

// AddFinding registers a finding under its id.
func (f *FakeAccessAnalyzerClient) AddFinding(id string, finding types.FindingSummary) {
	f.Findings[id] = finding
}

// ListFindings returns the findings matching the id filter, or all of them
// when no filter is set.
func (f *FakeAccessAnalyzerClient) ListFindings(ctx context.Context, params *accessanalyzer.ListFindingsInput, optFns ...func(*accessanalyzer.Options)) (*accessanalyzer.ListFindingsOutput, error) {
	if f.ListFindingsFunc != nil {
		return f.ListFindingsFunc(ctx, params)
	}

	out := &accessanalyzer.ListFindingsOutput{}
	ids := params.Filter["id"].Eq
	if len(ids) == 0 {
		for _, finding := range f.Findings {
			out.Findings = append(out.Findings, finding)
		}
		return out, nil
	}

	for _, id := range ids {
		if finding, ok := f.Findings[id]; ok {
			out.Findings = append(out.Findings, finding)
		}
	}
	return out, nil
}
