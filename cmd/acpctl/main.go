// Command acpctl is a reference ACP binary: it can run a minimal agent on
// stdio (serve-echo) or drive one as a client (dial). It exists to
// exercise the acp package end to end, not as core library code.
package main

import "github.com/corebridge/acp/cmd/acpctl/cmd"

func main() {
	cmd.Execute()
}
