package proto

import "fmt"

var (
	ErrInvalidReport     = fmt.Errorf("invalid position report")
	ErrUnknownPacketType = fmt.Errorf("unknown packet type")
)
