package errno

import "net/http"

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
	// Status is the HTTP status the code maps to.
	Status int
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// HTTPStatus returns the HTTP status for the code, 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// WithStatus returns a copy of e answering with another HTTP status.
func (e *Errno) WithStatus(status int) *Errno {
	cp := *e
	cp.Status = status
	return &cp
}

var (
	OK = &Errno{Code: 200, Message: "Success", Status: http.StatusOK}

	ErrInvalidParam    = &Errno{Code: 400, Message: "Invalid parameter", Status: http.StatusBadRequest}
	ErrNotFound        = &Errno{Code: 404, Message: "Not found", Status: http.StatusNotFound}
	ErrTooManyRequests = &Errno{Code: 429, Message: "Too many requests", Status: http.StatusTooManyRequests}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error", Status: http.StatusInternalServerError}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error", Status: http.StatusInternalServerError}

	// 渲染任务错误码
	ErrPromptRequired        = &Errno{Code: 20001, Message: "prompt is required", Status: http.StatusBadRequest}
	ErrClientIDRequired      = &Errno{Code: 20002, Message: "clientId is required", Status: http.StatusBadRequest}
	ErrJobIDRequired         = &Errno{Code: 20003, Message: "jobId is required", Status: http.StatusBadRequest}
	ErrJobNotFound           = &Errno{Code: 20004, Message: "Job not found", Status: http.StatusNotFound}
	ErrVideoNotReady         = &Errno{Code: 20005, Message: "Video not ready", Status: http.StatusConflict}
	ErrMissingCredential     = &Errno{Code: 20006, Message: "Missing speech/language service credentials", Status: http.StatusInternalServerError}
	ErrWorkerNotConfigured   = &Errno{Code: 20007, Message: "Remote worker address is not configured", Status: http.StatusInternalServerError}
	ErrWorkerUnreachable     = &Errno{Code: 20008, Message: "Remote worker unreachable", Status: http.StatusBadGateway}
	ErrInvalidWorkerResponse = &Errno{Code: 20009, Message: "Invalid response from remote worker", Status: http.StatusBadGateway}
	ErrVideoMissing          = &Errno{Code: 20010, Message: "Video file missing", Status: http.StatusNotFound}
	ErrJobStoreUnavailable   = &Errno{Code: 20011, Message: "Job store unavailable", Status: http.StatusInternalServerError}
	ErrLauncherShuttingDown  = &Errno{Code: 20012, Message: "Service is shutting down", Status: http.StatusServiceUnavailable}
	ErrWorkerRejected        = &Errno{Code: 20013, Message: "Remote worker rejected the request", Status: http.StatusBadGateway}
	ErrJobIDConflict         = &Errno{Code: 20014, Message: "jobId already in use", Status: http.StatusConflict}
)
