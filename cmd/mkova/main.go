/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	commandInit()
	if err := rootCmd.Execute(); err != nil {
		// Finishing a progress bar points logrus at stdout; failures are
		// reported on stderr.
		logrus.SetOutput(os.Stderr)
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
