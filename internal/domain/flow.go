package domain

// FlowStage identifies where in the multi-step login/enrollment flow a
// browser currently is. The stage guard matches on stage identity, so a
// token armed for the challenge page cannot open the enrollment page.
type FlowStage string

const (
	// StageNone means no flow is in progress.
	StageNone FlowStage = ""

	// StageEmailNotice permits one visit to the post-registration notice.
	StageEmailNotice FlowStage = "email_notice"

	// StageEnroll permits one visit to the authenticator setup page.
	StageEnroll FlowStage = "enroll"

	// StageLink permits one visit to the enrollment confirmation form.
	StageLink FlowStage = "link"

	// StageChallenge permits one visit to the TOTP challenge page.
	StageChallenge FlowStage = "challenge"
)

// FlowState is the typed per-session payload of the authentication state
// machine. Fields are only meaningful for the stage they belong to.
type FlowState struct {
	Stage FlowStage `json:"stage,omitempty"`

	// Token is single-use: the stage guard clears it on the first request
	// that enters the matching stage view.
	Token bool `json:"token,omitempty"`

	// PendingEmail is the login/enrollment subject, cleared on completion.
	PendingEmail string `json:"pending_email,omitempty"`

	// PendingSecret carries the encrypted TOTP secret between enrollment
	// display and confirmation. Never plaintext.
	PendingSecret string `json:"pending_secret,omitempty"`
}

// Clear resets the flow to its zero state.
func (f *FlowState) Clear() {
	*f = FlowState{}
}

// Flash carries one-shot messages for the next rendered page.
type Flash struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
