package linker

import (
	"fmt"

	"github.com/litaotju/mold/pkg/utils"
)

// Fatalf formats a diagnostic and terminates the process: every terminal
// condition in the core pipeline funnels through here rather than
// propagating an error value.
func Fatalf(format string, args ...any) {
	utils.Fatal(fmt.Sprintf(format, args...))
}

// Warnf formats a diagnostic and prints it without terminating, for a
// failure mode (§4.2) that resolution recovers from on its own.
func Warnf(format string, args ...any) {
	utils.Warn(fmt.Sprintf(format, args...))
}
