package remediation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Action prefixes that may legitimately use wildcard resources.
// Instrumentation services expect xray/logs/cloudwatch grants on *.
var wildcardAllowlist = []string{"xray:", "logs:", "cloudwatch:"}

// PolicyDocument is an IAM policy document. IAM hands these back
// URL-encoded; ParsePolicyDocument decodes first.
type PolicyDocument struct {
	Version   string        `json:"Version"`
	Statement StatementList `json:"Statement"`
}

// Statement is one policy statement. Action and Resource accept both the
// single-string and array JSON shapes IAM allows.
type Statement struct {
	Sid      string        `json:"Sid,omitempty"`
	Effect   string        `json:"Effect"`
	Action   StringOrSlice `json:"Action"`
	Resource StringOrSlice `json:"Resource"`
}

// StatementList accepts a single statement object or an array of them.
type StatementList []Statement

func (s *StatementList) UnmarshalJSON(data []byte) error {
	var list []Statement
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}

	var single Statement
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("statement is neither an object nor an array: %w", err)
	}
	*s = StatementList{single}
	return nil
}

// StringOrSlice accepts a single string or an array of strings.
type StringOrSlice []string

func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrSlice{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("value is neither a string nor a string array: %w", err)
	}
	*s = list
	return nil
}

// ParsePolicyDocument decodes a URL-encoded policy document as returned by
// iam:GetRolePolicy.
func ParsePolicyDocument(encoded string) (*PolicyDocument, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return nil, fmt.Errorf("url-decode policy document: %w", err)
	}

	var doc PolicyDocument
	if err := json.Unmarshal([]byte(decoded), &doc); err != nil {
		return nil, fmt.Errorf("parse policy document: %w", err)
	}
	return &doc, nil
}

// HasDisallowedWildcards reports whether any statement grants non-allowlisted
// actions on a wildcard resource ("*" or a ":*/*" suffix).
func (d *PolicyDocument) HasDisallowedWildcards() bool {
	for _, stmt := range d.Statement {
		if !stmt.hasWildcardResource() {
			continue
		}
		if !allActionsAllowlisted(stmt.Action) {
			return true
		}
	}
	return false
}

func (s Statement) hasWildcardResource() bool {
	for _, resource := range s.Resource {
		if resource == "*" || strings.HasSuffix(resource, ":*/*") {
			return true
		}
	}
	return false
}

func allActionsAllowlisted(actions []string) bool {
	for _, action := range actions {
		allowed := false
		for _, prefix := range wildcardAllowlist {
			if strings.HasPrefix(action, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}
