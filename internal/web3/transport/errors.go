package transport

import "errors"

// ErrPortClosed 向已关闭端口发送消息
var ErrPortClosed = errors.New("transport: port closed")
