// Package clawbox provides the container entrypoint and host-side installer
// for the Clawdbot automation runtime. The entrypoint proxies the runtime's
// loopback-only control ports to externally reachable ports and verifies
// reachability before handing off to normal operation.
package clawbox

import (
	"github.com/streamingfast/logging"
)

var zlog, _ = logging.PackageLogger("clawbox", "github.com/simplifia/clawbox")
