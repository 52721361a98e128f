package compilers

import "errors"

// ErrUnsupportedOperator is wrapped by errors reporting that a plan needs a
// construct its target dialect cannot express. The compiler fails on such
// gaps instead of silently changing the query; messages name the operator
// and the dialect.
var ErrUnsupportedOperator = errors.New("unsupported operator for dialect")
