package rotation

import "fmt"

// Step identifies one of the four steps Secrets Manager drives a rotation
// through. Each step arrives as its own Lambda invocation; the handler
// keeps no state between them.
type Step string

const (
	StepCreate Step = "createSecret"
	StepSet    Step = "setSecret"
	StepTest   Step = "testSecret"
	StepFinish Step = "finishSecret"
)

// UnmarshalText validates the step name while the event is decoded, so a
// bad step never reaches the state machine.
func (s *Step) UnmarshalText(text []byte) error {
	switch v := Step(text); v {
	case StepCreate, StepSet, StepTest, StepFinish:
		*s = v
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStep, string(text))
	}
}

// Event is the request Secrets Manager sends to a rotation function.
// ClientRequestToken names the in-flight version and makes every step
// idempotent under retry.
type Event struct {
	SecretID           string `json:"SecretId"`
	ClientRequestToken string `json:"ClientRequestToken"`
	Step               Step   `json:"Step"`
}
