package memory

import "errors"

var errDuplicateID = errors.New("memory: account id already exists")
