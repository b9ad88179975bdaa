package services

import (
	"context"

	"collabchat/pkg/logger"

	"github.com/google/uuid"
)

type userIDKey struct{}

// WithUserContext stores the verified caller id on the context. The
// auth middleware and the gateway handler are the only writers.
func WithUserContext(ctx context.Context, userID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, userID)
	return context.WithValue(ctx, logger.UserIdKey, userID.String())
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return id, ok
}
