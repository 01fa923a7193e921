package utils

import "errors"

// ErrorRecordNotFound is the storage-agnostic absence sentinel. Handlers map
// it to 404 and the pubsub handler to an ack-drop.
var ErrorRecordNotFound = errors.New("record not found")
