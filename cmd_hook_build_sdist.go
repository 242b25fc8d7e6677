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
		Use:   "build_sdist SDIST_DIRECTORY",
		Short: "Build an sdist into SDIST_DIRECTORY and print its filename",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			debugDumpManifest(cmd.Context())
			cfg, err := configSettings()
			if err != nil {
				return err
			}
			filename, err := surface().BuildSdist(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filename)
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
