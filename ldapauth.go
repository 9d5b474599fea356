package main

import (
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/ldapauth/cmd"

	"github.com/getsentry/sentry-go"
)

func main() {
	err := sentry.Init(sentry.ClientOptions{
		SampleRate: 0.1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry.Init: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		// Invalid settings are an operator problem, not a crash.
		if !cmd.IsConfigError(err) {
			sentry.CaptureException(err)
		}
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	sentry.Flush(2 * time.Second)
}
