package response

type ErrCode int

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.
const (
	ErrCodeMalformedJSON ErrCode = iota + 1
	ErrCodeRequestBody
	ErrCodeSessionNotFound
	ErrCodeResourceBusy
	ErrCodeConnectFailed
	ErrCodeNegotiationExhausted
	ErrCodeDialectUnresolved
	ErrCodeChannelUnknown
	ErrCodeQuantityUnsupported
	ErrCodeCommandVariantsExhausted
)
