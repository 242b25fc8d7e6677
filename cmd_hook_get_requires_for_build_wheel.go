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
		Use:   "get_requires_for_build_wheel",
		Short: "Print the extra PEP 508 requirement strings needed to build a wheel, one per line",
		Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			debugDumpManifest(cmd.Context())
			cfg, err := configSettings()
			if err != nil {
				return err
			}
			reqs, err := surface().GetRequiresForBuildWheel(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			for _, r := range reqs {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
