package response

var errors = map[ErrCode]string{
	ErrCodeMalformedJSON:            "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:              "Request body error",
	ErrCodeSessionNotFound:          "Session %s not found.",
	ErrCodeResourceBusy:             "Resource %s already has a session bound.",
	ErrCodeConnectFailed:            "Failed to open transport for %s.",
	ErrCodeNegotiationExhausted:     "No response from %s after %d probe attempts.",
	ErrCodeDialectUnresolved:        "No command dialect is known for instrument %q; controls are disabled.",
	ErrCodeChannelUnknown:           "Channel %s is not exposed by this instrument.",
	ErrCodeQuantityUnsupported:      "Quantity %s is not supported by this instrument.",
	ErrCodeCommandVariantsExhausted: "All command syntax variants failed, last %q.",
}

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errors[ErrCodeMalformedJSON],
}

var ErrRequestBody = &responseError{
	Code:    ErrCodeRequestBody,
	Message: errors[ErrCodeRequestBody],
}

func ErrSessionNotFound(id string) *responseError {
	return generateError(ErrCodeSessionNotFound, id)
}

func ErrResourceBusy(resource string) *responseError {
	return generateError(ErrCodeResourceBusy, resource)
}

func ErrConnectFailed(resource string, err error) *responseError {
	return generateErrorWrapper(ErrCodeConnectFailed, err, resource)
}

func ErrNegotiationExhausted(resource string, attempts int) *responseError {
	return generateError(ErrCodeNegotiationExhausted, resource, attempts)
}

func ErrDialectUnresolved(identity string) *responseError {
	return generateError(ErrCodeDialectUnresolved, identity)
}

func ErrChannelUnknown(channel string) *responseError {
	return generateError(ErrCodeChannelUnknown, channel)
}

func ErrQuantityUnsupported(quantity string) *responseError {
	return generateError(ErrCodeQuantityUnsupported, quantity)
}

func ErrCommandVariantsExhausted(lastCommand string, err error) *responseError {
	return generateErrorWrapper(ErrCodeCommandVariantsExhausted, err, lastCommand)
}
