// libravensaid exposes the classifier to C. Build it with
//
//	go build -buildmode=c-shared -o libravensaid.so ./cmd/libravensaid
//
// which also writes libravensaid.h. See testdata/example.c for a caller.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"github.com/ravensaid/ravensaid/internal/inference"
)

// ravensaid_init loads the checkpoint at path and returns a handle, or 0 on error.
//
//export ravensaid_init
func ravensaid_init(path *C.char) C.uintptr_t {
	if path == nil {
		return 0
	}
	return C.uintptr_t(openHandle(C.GoString(path)))
}

// ravensaid returns how likely Ravenholdt wrote message as a percentage with two implied decimals
// (0..10000), or a negative code: -1 malformed or NULL message, -2 probability above 100%,
// -3 negative probability, -4 invalid handle.
//
//export ravensaid
func ravensaid(handle C.uintptr_t, message *C.char) C.int {
	if message == nil {
		return C.int(inference.CodeMalformed)
	}
	return C.int(score(uintptr(handle), C.GoString(message)))
}

// ravensaid_free releases a handle. It returns 0, or -4 when the handle is unknown or was already
// freed.
//
//export ravensaid_free
func ravensaid_free(handle C.uintptr_t) C.int {
	return C.int(freeHandle(uintptr(handle)))
}

func main() {}
