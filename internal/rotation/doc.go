// Package rotation implements the four-step Secrets Manager rotation
// state machine.
//
// Secrets Manager drives a rotation through four steps, each delivered as
// its own Lambda invocation:
//
//	createSecret  stage a new credential as AWSPENDING
//	setSecret     install it on the target system, using the current one
//	testSecret    verify the pending credential works
//	finishSecret  move AWSCURRENT onto the pending version
//
// The handler holds no state between steps; everything lives in the
// secret's version-stage metadata, keyed by the ClientRequestToken the
// service passes on every invocation. That token makes each step
// idempotent: replaying createSecret lands on the version it already
// staged, and replaying finishSecret after promotion is a no-op.
//
// The Executor owns the protocol: idempotence guards, stage reads and
// writes, and the promotion. A Strategy supplies the three things that
// differ per secret type: minting the new credential, installing it, and
// verifying it. Four strategies exist, for database credentials, API
// keys, OAuth tokens, and custom secrets.
//
// The executor performs no retries. When a step fails, Secrets Manager
// re-drives the state machine, and the idempotence guards make the replay
// safe.
package rotation
