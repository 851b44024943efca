package middlewares

type ctxKey string

const (
	CtxUserID    ctxKey = "userID"
	CtxRequestID ctxKey = "requestID"
)
