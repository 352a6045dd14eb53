package core

// Default config constants
const (
	DefaultPort            = "8000"
	DefaultGinMode         = "release"
	DefaultUpstreamBaseURL = "https://openrouter.ai/api/v1"
	CORSMaxAge             = "86400"
)

// Upstream endpoint paths, relative to the base URL
const (
	ChatCompletionsPath = "/chat/completions"
	ModelsPath          = "/models"
)

// Content type and header constants
const (
	ContentTypeJSON     = "application/json"
	ContentTypeHTML     = "text/html; charset=utf-8"
	ContentTypeCSS      = "text/css; charset=utf-8"
	ContentTypeJS       = "application/javascript; charset=utf-8"
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	AuthBearerPrefix    = "Bearer "
)

// Role constants
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Prompt templates sent to the upstream model
const (
	PreviousContentTemplate = "I previously generated this HTML:\n\n%s"
	InjectedHTMLTemplate    = "Here's some existing HTML code:\n\n%s\n\nPlease use this as a starting point and modify it according to the following prompt:"
	GenerateHTMLTemplate    = "Generate HTML code for a %s. You are invited to use CSS styling, but not in a separate file. " +
		"Your response must start with '<!DOCTYPE html>' and end with '</html>'. " +
		"Do not include any explanations or additional text outside of the HTML code."
	ReiteratePromptTemplate = "%s. Make the following changes: %s"
)

// TokenCountUnknown is reported when upstream omits usage.total_tokens.
const TokenCountUnknown = "unknown"

// Metrics endpoint labels
const (
	EndpointCompare   = "compare"
	EndpointReiterate = "reiterate"
)

// Client-visible error messages
const (
	ErrMsgInvalidBody    = "invalid request body"
	ErrMsgCatalogFailure = "Failed to fetch models from upstream API"
	ErrMsgInternal       = "internal server error"
)
