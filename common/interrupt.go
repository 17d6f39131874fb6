package common

import (
	"os"
	"os/signal"
	"syscall"
)

// Interrupted returns a channel that receives process shutdown signals.
// Daemons block on it so live sessions get flushed before exit.
func Interrupted() <-chan os.Signal {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs,
		os.Interrupt, os.Kill,
		syscall.SIGTERM, syscall.SIGQUIT,
	)
	return sigs
}
