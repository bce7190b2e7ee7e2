// Copyright 2026 The Kvfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/kvfs-project/kvfs/kvfs/fsck"
	"github.com/kvfs-project/kvfs/kvstore"
	"github.com/spf13/cobra"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck <kv-dir>",
	Short: "Check a kvfs store for consistency without mounting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		MountFlags.StoreDir = args[0]

		store, err := kvstore.OpenFileStore(MountFlags.StoreDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		report, err := fsck.Check(store, MountFlags.BlockSize())
		if err != nil {
			return fmt.Errorf("fsck: %w", err)
		}

		fmt.Printf("checked %d inodes, %d blocks\n", report.InodeCount, report.BlockCount)
		for _, v := range report.Violations {
			fmt.Println(v.String())
		}
		if !report.OK() {
			return fmt.Errorf("%d consistency violation(s) found", len(report.Violations))
		}
		fmt.Println("ok")
		return nil
	},
}
