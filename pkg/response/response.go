package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// ErrorWithData is an error response that still carries a payload, e.g. the
// ids of a request that was stored before a downstream call failed.
func ErrorWithData(statusCode int, err string, data interface{}) Response {
	resp := Error(statusCode, err)
	resp.Data = data
	return resp
}

// List wraps one page of results under key together with the paging metadata.
func List(key string, items interface{}, total int64, page, limit int) map[string]interface{} {
	return map[string]interface{}{
		key:     items,
		"total": total,
		"page":  page,
		"limit": limit,
	}
}
