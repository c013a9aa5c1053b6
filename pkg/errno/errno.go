package errno

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 返回一个同 Code 但自定义 Message 的副本
// (例如 "Unsupported method: eth_foo" 这种需要带上下文的错误)
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Is 支持 errors.Is 按 Code 匹配
func (e Errno) Is(target error) bool {
	switch typed := target.(type) {
	case *Errno:
		return typed.Code == e.Code
	case Errno:
		return typed.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Provider Pipeline Errors (20100+)
// Web3 请求管道的错误分类: 未授权 / 超时 / 用户拒绝 / 上游失败 / 不支持的方法
var (
	ErrUnauthorized      = Errno{Code: 20101, Message: "Unauthorized"}
	ErrTimeout           = Errno{Code: 20102, Message: "Request timeout"}
	ErrUserRejected      = Errno{Code: 20103, Message: "User rejected the request"}
	ErrUpstreamFailure   = Errno{Code: 20104, Message: "Signing service request failed"}
	ErrUnsupportedMethod = Errno{Code: 20105, Message: "Unsupported method"}
	ErrAlreadyResolved   = Errno{Code: 20106, Message: "Request already resolved"}
)

// Wallet Service Errors (20200+)
var (
	ErrWalletNotFound    = Errno{Code: 20201, Message: "Wallet not found"}
	ErrPasswordIncorrect = Errno{Code: 20202, Message: "Invalid password"}
	ErrPasswordTooShort  = Errno{Code: 20203, Message: "Password is required (min 8 characters)"}
	ErrWalletExists      = Errno{Code: 20204, Message: "Wallet for this address already exists"}
	ErrInvalidAddress    = Errno{Code: 20205, Message: "A valid wallet address is required"}
	ErrInvalidMnemonic   = Errno{Code: 20206, Message: "A valid 12 or 24-word mnemonic phrase is required"}
	ErrInsufficientFunds = Errno{Code: 20207, Message: "Insufficient funds"}
)
