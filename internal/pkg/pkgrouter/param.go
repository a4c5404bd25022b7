package pkgrouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
)

// GetParam reads a path parameter stored by httprouter, trimmed of spaces.
func GetParam(ctx context.Context, key string) string {
	return strings.TrimSpace(httprouter.ParamsFromContext(ctx).ByName(key))
}

// RequiredParam is GetParam for identifiers. An empty value is reported as a
// validation error on key.
func RequiredParam(ctx context.Context, key string) (string, error) {
	value := GetParam(ctx, key)
	if value == "" {
		return "", pkgerror.NewInvalidFields(fmt.Errorf("%s is required", key), map[string]string{key: "is required"})
	}
	return value, nil
}
