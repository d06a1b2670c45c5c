package capture

import "github.com/glimpser/glimpser-go/internal/apperrors"

var errBufferOverflowLimit = apperrors.ErrBufferOverflow
