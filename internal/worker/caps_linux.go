//go:build linux

package worker

import (
	"github.com/syndtr/gocapability/capability"
)

// dropCapabilities clears every Linux capability the worker process holds
// before evaluating any user source, narrowing the Restricted Environment's
// guarantees (spec §4.2) with a second, kernel-enforced layer: even a bug in
// the scripting package's own whitelist cannot escalate into a capability
// the worker never has. Grounded on the teacher's use of the same library in
// runsc/sandbox's rootless-mode setup (ConfigureCmdForRootless).
func dropCapabilities() {
	caps, err := capability.NewPid2(0)
	if err != nil {
		log.WithError(err).Warn("could not inspect process capabilities")
		return
	}
	if err := caps.Load(); err != nil {
		log.WithError(err).Warn("could not load process capabilities")
		return
	}
	caps.Clear(capability.CAPS | capability.BOUNDS | capability.AMBS)
	if err := caps.Apply(capability.CAPS | capability.BOUNDS | capability.AMBS); err != nil {
		log.WithError(err).Warn("could not drop process capabilities")
	}
}
