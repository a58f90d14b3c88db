// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/csv"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// featureListFlag is similar to [github.com/spf13/pflag.StringSlice],
// but drops duplicate entries while keeping the order they were first given in.
// Cargo feature names never contain commas,
// so every occurrence of the flag may list several features.
type featureListFlag struct {
	list    *[]string
	changed bool
}

var _ pflag.SliceValue = (*featureListFlag)(nil)

func (f *featureListFlag) Type() string { return "stringSlice" }
func (f *featureListFlag) Get() any     { return *f.list }

func (f *featureListFlag) GetSlice() []string {
	return slices.Clone(*f.list)
}

func (f *featureListFlag) String() string {
	if f.list == nil {
		return "[]"
	}
	buf := new(bytes.Buffer)
	buf.WriteString("[")
	w := csv.NewWriter(buf)
	_ = w.Write(*f.list)
	w.Flush()
	b := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	b = append(b, "]"...)
	return string(b)
}

func (f *featureListFlag) Set(s string) error {
	if !f.changed {
		*f.list = (*f.list)[:0]
		f.changed = true
	}
	if s == "" {
		return nil
	}
	r := csv.NewReader(strings.NewReader(s))
	vals, err := r.Read()
	if err != nil {
		return err
	}
	for _, v := range vals {
		f.add(strings.TrimSpace(v))
	}
	return nil
}

func (f *featureListFlag) Append(val string) error {
	f.add(val)
	return nil
}

func (f *featureListFlag) Replace(val []string) error {
	*f.list = (*f.list)[:0]
	for _, v := range val {
		f.add(v)
	}
	return nil
}

func (f *featureListFlag) add(feature string) {
	if feature == "" || slices.Contains(*f.list, feature) {
		return
	}
	*f.list = append(*f.list, feature)
}
