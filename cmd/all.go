package cmd

import (
	_ "upkeeper/cmd/daemon"
	_ "upkeeper/cmd/root"
	_ "upkeeper/cmd/server"
	_ "upkeeper/cmd/tunnel"
)
