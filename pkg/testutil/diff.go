// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides archive-aware diffing helpers for artifact determinism tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

var spewConfig = spew.ConfigState{ //nolint:exhaustivestruct
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// DumpSdistListing renders a tar.gz sdist's entries as a stable tabular listing: mode, size, name.
func DumpSdistListing(data []byte) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer gz.Close()

	ret := new(strings.Builder)
	table := tabwriter.NewWriter(ret, 0, 1, 1, ' ', 0)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", err
		}
		fmt.Fprintf(table, "%s\t% 10d\t%s\n", hdr.FileInfo().Mode(), hdr.Size, hdr.Name)
	}
	if err := table.Flush(); err != nil {
		return "", err
	}
	return ret.String(), nil
}

// DumpWheelListing renders a wheel zip's entries (sorted by name) with their uncompressed sizes.
func DumpWheelListing(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	files := append([]*zip.File(nil), zr.File...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	ret := new(strings.Builder)
	table := tabwriter.NewWriter(ret, 0, 1, 1, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(table, "%s\t% 10d\t%s\n", f.Mode(), f.UncompressedSize64, f.Name)
	}
	if err := table.Flush(); err != nil {
		return "", err
	}
	return ret.String(), nil
}

// AssertBytesEqual compares two byte slices and, on mismatch, reports a unified diff of their
// spew-dumped form rather than dumping both blobs raw.
func AssertBytesEqual(t *testing.T, label string, exp, act []byte) bool {
	t.Helper()
	if bytes.Equal(exp, act) {
		return true
	}
	expStr := spewConfig.Sdump(exp)
	actStr := spewConfig.Sdump(act)
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{ //nolint:exhaustivestruct
		A:        difflib.SplitLines(expStr),
		B:        difflib.SplitLines(actStr),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  2,
	})
	t.Errorf("%s: bytes differ:\n%s", label, diff)
	return false
}
