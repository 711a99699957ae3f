// Package fakes provides test doubles for the AWS client interfaces the
// handlers depend on.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior. The Secrets Manager fake is stateful: it keeps real
// version-to-stage maps and applies stage moves the way the service does,
// so rotation tests exercise the state machine against plausible semantics
// instead of canned responses. Every fake supports per-method override
// funcs for error injection.
//
// Usage:
//
//	fake := fakes.NewSecretsManager()
//	fake.AddSecretString("my-secret", `{"username":"svc"}`)
//	store := secretstore.New(aws.Config{}, secretstore.WithClient(fake))
//	// Test store methods...
package fakes
