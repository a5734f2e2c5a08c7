/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mkova/mkova/pkg/elog"
	"github.com/mkova/mkova/pkg/ova"
	"github.com/mkova/mkova/pkg/vio"
)

// log is initialized up front (rather than left nil until
// PersistentPreRunE runs) so main's top-level error handler can always
// report failures through it, including argument-parsing errors that
// occur before PersistentPreRunE has a chance to run.
var log elog.View = &elog.CLI{}

var (
	flagVerbose  bool
	flagDebug    bool
	flagJSON     bool
	flagCPUs     int
	flagMemsize  int
	flagDisksize int
	flagName     string
	flagOutput   string
)

func commandInit() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "enable json output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger := log.(*elog.CLI)

		if flagJSON {
			logger.DisableTTY = true
			logrus.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logrus.SetFormatter(logger)
		}

		logrus.SetLevel(logrus.TraceLevel)

		if flagDebug || flagVerbose {
			logger.IsVerbose = true
		}

		return nil
	}

	rootCmd.Flags().IntVarP(&flagCPUs, "cpus", "c", 1, "vCPU count recorded in the OVF")
	rootCmd.Flags().IntVarP(&flagMemsize, "memsize", "m", 1024, "memory size in MiB recorded in the OVF")
	rootCmd.Flags().IntVarP(&flagDisksize, "disksize", "d", 10, "target virtual disk size in GiB")
	rootCmd.Flags().StringVarP(&flagName, "name", "n", "", "VM name (default: source filename without extension)")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output path (default: source path with .ova extension)")
}

var rootCmd = &cobra.Command{
	Use:   "mkova <vmdk>",
	Short: "Transcode a monolithic-sparse VMDK into a stream-optimized OVA",
	Long: `mkova reads a monolithic-sparse VMDK disk image, transcodes it into a
VMware-compatible stream-optimized VMDK, and packages it alongside a
generated OVF envelope into a single OVA archive.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0])
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func run(srcPath string) error {
	name := flagName
	if name == "" {
		base := filepath.Base(srcPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	outPath := flagOutput
	if outPath == "" {
		base := srcPath
		outPath = strings.TrimSuffix(base, filepath.Ext(base)) + ".ova"
	}

	srcFile, err := vio.Open(srcPath)
	if err != nil {
		return fmt.Errorf("IoError: open %s: %w", srcPath, err)
	}
	defer srcFile.Close()
	log.Infof("source vmdk: %s (%d bytes)", srcFile.Name(), srcFile.Size())

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("IoError: open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("IoError: create %s: %w", outPath, err)
	}

	progress := log.NewProgress(fmt.Sprintf("transcoding %s", filepath.Base(srcPath)), "", 0)

	packErr := ova.Package(context.Background(), src, dst, ova.Params{
		Name:      name,
		CPUs:      flagCPUs,
		MemoryMiB: flagMemsize,
		DiskGiB:   flagDisksize,
	}, progress)
	progress.Finish(packErr == nil)

	if packErr != nil {
		dst.Close()
		os.Remove(outPath)
		return packErr
	}

	if err := dst.Close(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("IoError: close %s: %w", outPath, err)
	}

	log.Infof("wrote %s", outPath)
	return nil
}
