// Copyright (C) 2020-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/datawire/dlib/dlog"
	"gopkg.in/yaml.v2"

	"github.com/datawire/pkgbuild/pkg/hooksurface"
	"github.com/datawire/pkgbuild/pkg/manifest"
)

var flagDebugDump bool

func surface() hooksurface.Surface {
	return hooksurface.Surface{SourceRoot: flagSourceDir}
}

// debugDumpManifest prints the loaded Package as YAML to stderr when --debug-dump is set, for
// inspecting what a hook invocation resolved a manifest to without building an artifact.
func debugDumpManifest(ctx context.Context) {
	if !flagDebugDump {
		return
	}
	data, err := os.ReadFile(filepath.Join(flagSourceDir, "pyproject.toml"))
	if err != nil {
		dlog.Warnf(ctx, "debug-dump: %v", err)
		return
	}
	pkg, diags := manifest.Load(data)
	for _, w := range diags.Warnings {
		dlog.Warnf(ctx, "%v", w)
	}
	out, err := yaml.Marshal(pkg)
	if err != nil {
		dlog.Warnf(ctx, "debug-dump: %v", err)
		return
	}
	fmt.Fprintf(os.Stderr, "--- resolved package ---\n%s\n", out)
}

func configSettings() (hooksurface.Config, error) {
	cfg := make(hooksurface.Config, len(flagConfigSettings))
	for _, kv := range flagConfigSettings {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --config-setting %q: must be KEY=VALUE", kv)
		}
		cfg[key] = append(cfg[key], value)
	}
	return cfg, nil
}
