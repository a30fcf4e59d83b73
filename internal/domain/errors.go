package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidTitle        = errors.New("invalid title")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidOriginModule = errors.New("invalid origin module")
	ErrInvalidOrderIndex   = errors.New("invalid order index")
	ErrInvalidDueDate      = errors.New("invalid due date")
	ErrUnknownPatchField   = errors.New("unknown patch field")
	ErrEmptyPatch          = errors.New("empty patch")
)
