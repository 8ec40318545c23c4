package exception

import "github.com/yanun0323/errors"

var (
	ErrPayloadTooLarge = errors.New("channel: payload too large")
	ErrRegionTooSmall  = errors.New("channel: region smaller than header + payload capacity")
	ErrChannelClosed   = errors.New("channel: closed")
	ErrEmptyName       = errors.New("channel: empty name")
)
