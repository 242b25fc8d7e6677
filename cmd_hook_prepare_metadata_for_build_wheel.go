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
	cmd := &cobra.Command{
		Use:   "prepare_metadata_for_build_wheel METADATA_DIRECTORY",
		Short: "Write a .dist-info directory under METADATA_DIRECTORY and print its name",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			debugDumpManifest(cmd.Context())
			cfg, err := configSettings()
			if err != nil {
				return err
			}
			distInfo, err := surface().PrepareMetadataForBuildWheel(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), distInfo)
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
