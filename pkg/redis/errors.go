package redis

import "errors"

var (
	ErrFailedToParseConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady           = errors.New("redis not ready")
	ErrHealthcheckFailed       = errors.New("redis healthcheck failed")
)
