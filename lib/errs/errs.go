package errs

import "errors"

var ErrNotFound = errors.New("not found")

var ErrInvalidArgument = errors.New("invalid argument")

var ErrInternal = errors.New("internal error")

var ErrFetchAssets = errors.New("failed to fetch assets")

var ErrFetchAsset = errors.New("failed to fetch asset details")

var ErrFetchHistory = errors.New("failed to fetch asset history")

var ErrMalformedFrame = errors.New("failed to parse websocket message")

var ErrFeedTransport = errors.New("websocket encountered an error")
