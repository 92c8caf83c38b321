package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	Title     string   `json:"title"`
	Options   []string `json:"options"`
	CreatorID string   `json:"creator_id,omitempty"`
	ChannelID string   `json:"channel_id,omitempty"`
}

// CastVoteRequest carries option_index as a pointer so an absent field is
// rejected rather than read as option 0.
type CastVoteRequest struct {
	VoterID     string `json:"voter_id"`
	OptionIndex *int   `json:"option_index"`
}

type OptionResponse struct {
	Index       int      `json:"index"`
	Title       string   `json:"title"`
	VoteCount   int      `json:"vote_count"`
	Voters      []string `json:"voters"`
	ActionValue string   `json:"action_value"`
}

type PollResponse struct {
	PollID  string           `json:"poll_id"`
	Version int64            `json:"version"`
	Title   string           `json:"title"`
	Options []OptionResponse `json:"options"`
}

type CastVoteResponse struct {
	Poll     PollResponse `json:"poll"`
	Removed  bool         `json:"removed"`
	Attempts int          `json:"attempts"`
}

// URLVerificationResponse answers the Events API handshake.
type URLVerificationResponse struct {
	Challenge string `json:"challenge"`
}
