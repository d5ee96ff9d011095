package wasitls

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// guestAllocator allocates blocks inside a guest's linear memory through
// the guest's exported cabi_realloc.
type guestAllocator struct {
	realloc api.Function
}

func newGuestAllocator(mod api.Module) (*guestAllocator, error) {
	fn := mod.ExportedFunction("cabi_realloc")
	if fn == nil {
		return nil, fmt.Errorf("module %q does not export cabi_realloc", mod.Name())
	}
	return &guestAllocator{realloc: fn}, nil
}

func (a *guestAllocator) allocate(ctx context.Context, size, align uint32) (uint32, error) {
	res, err := a.realloc.Call(ctx, 0, 0, uint64(align), uint64(size))
	if err != nil {
		return 0, fmt.Errorf("cabi_realloc: %w", err)
	}
	return uint32(res[0]), nil
}

func (a *guestAllocator) free(ctx context.Context, ptr, size, align uint32) error {
	_, err := a.realloc.Call(ctx, uint64(ptr), uint64(size), uint64(align), 0)
	return err
}
