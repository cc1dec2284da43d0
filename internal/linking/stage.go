package linking

import "fmt"

// Stage is a step of the callback pipeline.
type Stage int

const (
	AwaitingCode Stage = iota
	ExchangingToken
	FetchingProfile
	FetchingEmail
	FetchingPosts
	Persisting
	Complete
	Failed
)

var stageNames = [...]string{
	AwaitingCode:    "awaiting_code",
	ExchangingToken: "exchanging_token",
	FetchingProfile: "fetching_profile",
	FetchingEmail:   "fetching_email",
	FetchingPosts:   "fetching_posts",
	Persisting:      "persisting",
	Complete:        "complete",
	Failed:          "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError reports the stage a callback failed in. It unwraps to the
// sentinel chain from the errors package.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
