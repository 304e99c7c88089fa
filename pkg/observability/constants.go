package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrSessionID       = "session.id"
	AttrSessionStatus   = "session.status"
	AttrStepIndex       = "step.index"
	AttrActionKind      = "action.kind"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrQuery           = "retrieval.query"
	AttrResultCount     = "retrieval.results"
	AttrDocumentID      = "document.id"
	AttrErrorType       = "error.type"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"

	SpanSessionRun    = "session.run"
	SpanReasoningStep = "reasoning.step"
	SpanLLMRequest    = "llm.request"
	SpanToolExecution = "tool.execution"
	SpanRetrieval     = "retrieval.search"
	SpanIngest        = "ingest.document"
	SpanHTTPRequest   = "http.request"

	DefaultServiceName = "scout"
)
