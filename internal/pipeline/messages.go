package pipeline

// User-visible reply texts. Failure replies stay generic on purpose: they
// never reveal which identities or models exist, and never carry internal
// error detail.
const (
	msgSlowDown          = "You're sending messages too quickly. Please wait a few seconds and try again."
	msgLoginRequired     = "You must be logged in to use AI chat."
	msgEmptyMessage      = "Please enter a message."
	msgMessageTooLong    = "Your message is too long. Please shorten it and try again."
	msgNotAllowed        = "You are not allowed to use AI chat."
	msgNotConfigured     = "The AI backend is not configured. Please contact your administrator."
	msgOutOfScope        = "This question is outside the scope of this assistant."
	msgModelNotAvailable = "The selected model is not configured for your user. Please choose another model."
	msgDailyLimitReached = "You have reached your daily limit for this model. Try again tomorrow or pick another model."
	msgNoMatchingDocs    = "I couldn't find anything about that in the documents. Please narrow your question."
	msgUnavailable       = "The AI service is temporarily unavailable. Please try again later."
	msgNoAnswer          = "No answer was returned by the AI model."
	msgInternalError     = "Something went wrong while answering. Please try again."
)
