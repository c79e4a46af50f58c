package utils

import (
	"context"
)

type contextKey string

const ContextDeviceIDKey contextKey = "deviceID"

func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, ContextDeviceIDKey, deviceID)
}

func GetDeviceIDFromContext(ctx context.Context) (string, bool) {
	deviceID := ctx.Value(ContextDeviceIDKey)
	deviceIDStr, ok := deviceID.(string)
	return deviceIDStr, ok && deviceIDStr != ""
}
