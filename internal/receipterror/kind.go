package receipterror

import "errors"

func isType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
