package exception

import "github.com/yanun0323/errors"

var (
	ErrNotConnected         = errors.New("session: not connected")
	ErrAuthenticationFailed = errors.New("session: authentication failed")
	ErrRequestTimeout       = errors.New("session: request timed out")
	ErrTransportClosed      = errors.New("session: transport closed")
	ErrSubmitInFlight       = errors.New("session: submit already in flight")
	ErrOrderRejected        = errors.New("session: order rejected by exchange")
	ErrOrderInvalid         = errors.New("order: invalid request")
	ErrMissingCredentials   = errors.New("order: missing api credentials")
)
