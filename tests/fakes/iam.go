package fakes

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// IAMRole is the state of one fake role.
type IAMRole struct {
	Tags map[string]string
	// InlinePolicies maps policy names to URL-encoded policy documents,
	// the encoding GetRolePolicy returns.
	InlinePolicies map[string]string
}

// FakeIAMClient implements the IAM subset the remediation handler uses.
type FakeIAMClient struct {
	Roles map[string]*IAMRole

	// DeletedPolicies records "role/policy" pairs in deletion order.
	DeletedPolicies []string

	GetRoleFunc          func(ctx context.Context, params *iam.GetRoleInput) (*iam.GetRoleOutput, error)
	ListRolePoliciesFunc func(ctx context.Context, params *iam.ListRolePoliciesInput) (*iam.ListRolePoliciesOutput, error)
	GetRolePolicyFunc    func(ctx context.Context, params *iam.GetRolePolicyInput) (*iam.GetRolePolicyOutput, error)
	DeleteRolePolicyFunc func(ctx context.Context, params *iam.DeleteRolePolicyInput) (*iam.DeleteRolePolicyOutput, error)
}

// NewIAM creates an empty fake client.
func NewIAM() *FakeIAMClient {
	return &FakeIAMClient{Roles: make(map[string]*IAMRole)}
}

// AddRole registers a role.
func (f *FakeIAMClient) AddRole(name string, role *IAMRole) {
	if role.InlinePolicies == nil {
		role.InlinePolicies = make(map[string]string)
	}
	f.Roles[name] = role
}

func (f *FakeIAMClient) role(name string) (*IAMRole, error) {
	role, ok := f.Roles[name]
	if !ok {
		return nil, &types.NoSuchEntityException{Message: aws.String("role not found: " + name)}
	}
	return role, nil
}

// GetRole returns the role with its tags.
func (f *FakeIAMClient) GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if f.GetRoleFunc != nil {
		return f.GetRoleFunc(ctx, params)
	}

	name := aws.ToString(params.RoleName)
	role, err := f.role(name)
	if err != nil {
		return nil, err
	}

	var tags []types.Tag
	keys := make([]string, 0, len(role.Tags))
	for k := range role.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(role.Tags[k])})
	}

	return &iam.GetRoleOutput{Role: &types.Role{
		RoleName: aws.String(name),
		Arn:      aws.String("arn:aws:iam::123456789012:role/" + name),
		Tags:     tags,
	}}, nil
}

// ListRolePolicies returns inline policy names in sorted order.
func (f *FakeIAMClient) ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error) {
	if f.ListRolePoliciesFunc != nil {
		return f.ListRolePoliciesFunc(ctx, params)
	}

	role, err := f.role(aws.ToString(params.RoleName))
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(role.InlinePolicies))
	for name := range role.InlinePolicies {
		names = append(names, name)
	}
	sort.Strings(names)

	return &iam.ListRolePoliciesOutput{PolicyNames: names}, nil
}

// GetRolePolicy returns the stored policy document.
func (f *FakeIAMClient) GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error) {
	if f.GetRolePolicyFunc != nil {
		return f.GetRolePolicyFunc(ctx, params)
	}

	role, err := f.role(aws.ToString(params.RoleName))
	if err != nil {
		return nil, err
	}

	policyName := aws.ToString(params.PolicyName)
	doc, ok := role.InlinePolicies[policyName]
	if !ok {
		return nil, &types.NoSuchEntityException{Message: aws.String("policy not found: " + policyName)}
	}

	return &iam.GetRolePolicyOutput{
		RoleName:       params.RoleName,
		PolicyName:     params.PolicyName,
		PolicyDocument: aws.String(doc),
	}, nil
}

// DeleteRolePolicy removes the policy and records the deletion.
func (f *FakeIAMClient) DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	if f.DeleteRolePolicyFunc != nil {
		return f.DeleteRolePolicyFunc(ctx, params)
	}

	roleName := aws.ToString(params.RoleName)
	role, err := f.role(roleName)
	if err != nil {
		return nil, err
	}

	policyName := aws.ToString(params.PolicyName)
	if _, ok := role.InlinePolicies[policyName]; !ok {
		return nil, &types.NoSuchEntityException{Message: aws.String("policy not found: " + policyName)}
	}
	delete(role.InlinePolicies, policyName)
	f.DeletedPolicies = append(f.DeletedPolicies, roleName+"/"+policyName)

	return &iam.DeleteRolePolicyOutput{}, nil
}
