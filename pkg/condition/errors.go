package condition

import "errors"

var (
	// ErrUnknownLogic is returned by Validate for a logic flag that is
	// neither AND nor OR
	ErrUnknownLogic = errors.New("unknown condition logic")

	// ErrUnknownOperator is returned by Validate for an operator outside the
	// supported set
	ErrUnknownOperator = errors.New("unknown condition operator")
)
