// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datawire/pkgbuild/pkg/cliutil"
)

func init() {
	var flagMetadataDirectory string
	cmd := &cobra.Command{
		Use:   "build_wheel WHEEL_DIRECTORY",
		Short: "Build a wheel into WHEEL_DIRECTORY and print its filename",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			debugDumpManifest(cmd.Context())
			cfg, err := configSettings()
			if err != nil {
				return err
			}
			filename, err := surface().BuildWheel(cmd.Context(), args[0], cfg, flagMetadataDirectory)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filename)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagMetadataDirectory, "metadata-directory", "",
		"Reuse the METADATA already written by a prior prepare_metadata_for_build_wheel call")
	argparser.AddCommand(cmd)
}
