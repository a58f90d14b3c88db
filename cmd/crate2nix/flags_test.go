// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func TestFeatureListFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "Default",
			want: []string{"default"},
		},
		{
			name: "Replace",
			args: []string{"--features=std"},
			want: []string{"std"},
		},
		{
			name: "CommaSeparated",
			args: []string{"--features=std, derive"},
			want: []string{"std", "derive"},
		},
		{
			name: "Repeated",
			args: []string{"--features=std", "--features=derive,std"},
			want: []string{"std", "derive"},
		},
		{
			name: "Empty",
			args: []string{"--features="},
			want: []string{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			features := []string{"default"}
			fset := pflag.NewFlagSet("test", pflag.ContinueOnError)
			fset.Var(&featureListFlag{list: &features}, "features", "")
			if err := fset.Parse(test.args); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, features); diff != "" {
				t.Errorf("features (-want +got):\n%s", diff)
			}
		})
	}
}
