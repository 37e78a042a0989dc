// Package message defines the payload shapes exchanged between the trigger
// surface, the coordinator, and page agents. Field names mirror the flat
// key-value settings schema so payloads stay greppable across contexts.
package message

const (
	ActionTranslate         = "translate"
	ActionGetAPIKey         = "getApiKey"
	ActionTranslateComplete = "translateComplete"
	ActionTranslateError    = "translateError"
)

// TranslateRequest asks a page agent to translate its page. PromptTemplate is
// already language-substituted; the request is immutable once sent.
type TranslateRequest struct {
	Action         string `json:"action"`
	TargetLanguage string `json:"targetLanguage"`
	PromptTemplate string `json:"promptTemplate"`
	DisplayMode    string `json:"displayMode"`
	TextDirection  string `json:"textDirection"`
}

// Ack is the synchronous reply to a TranslateRequest, returned before any
// translation work starts. Received=false means the agent refused the request
// immediately; it does not mean the work failed later.
type Ack struct {
	Received bool `json:"received"`
}

// CredentialRequest asks the coordinator for the current API credential.
type CredentialRequest struct {
	Action string `json:"action"`
}

// CredentialReply answers a CredentialRequest. When Success is false, Message
// carries a user-facing instruction, not a raw error.
type CredentialReply struct {
	Success bool   `json:"success"`
	APIKey  string `json:"apiKey,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outcome is the asynchronous, at-most-once result of a translate request.
// Exactly one of Result or Error is meaningful, selected by Action.
type Outcome struct {
	Action string         `json:"action"`
	Result *OutcomeResult `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type OutcomeResult struct {
	Message string `json:"message"`
}

// CompleteOutcome builds a success outcome.
func CompleteOutcome(text string) Outcome {
	return Outcome{
		Action: ActionTranslateComplete,
		Result: &OutcomeResult{Message: text},
	}
}

// ErrorOutcome builds a failure outcome carrying a display string.
func ErrorOutcome(text string) Outcome {
	return Outcome{
		Action: ActionTranslateError,
		Error:  text,
	}
}

// Succeeded reports whether the outcome is a completion.
func (o Outcome) Succeeded() bool {
	return o.Action == ActionTranslateComplete
}

// DisplayText returns the user-facing text for either outcome variant.
func (o Outcome) DisplayText() string {
	if o.Succeeded() {
		if o.Result == nil {
			return ""
		}
		return o.Result.Message
	}
	return o.Error
}
