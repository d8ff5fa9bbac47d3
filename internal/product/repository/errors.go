package repository

import "errors"

// errNoChange aborts a document update without persisting it.
var errNoChange = errors.New("no change")
