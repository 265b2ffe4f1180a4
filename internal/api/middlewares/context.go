package middleware

import "context"

type userSlotKey struct{}

func withUserSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, userSlotKey{}, slot)
}

func userSlotFrom(ctx context.Context) *string {
	slot, _ := ctx.Value(userSlotKey{}).(*string)
	return slot
}
