//  Copyright (c) 2025 The Quill Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// tocCmd prints the current table of contents
var tocCmd = &cobra.Command{
	Use:   "toc [path]",
	Short: "toc prints the current generation's table of contents",
	Long:  `The toc command prints the generation number and every segment record of the current table of contents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("generation %d\n", reader.Generation())
		fmt.Printf("live docs %d (max doc %d)\n", reader.DocCount(), reader.MaxDoc())
		for _, view := range reader.Segments() {
			seg := view.Seg
			fmt.Printf("segment %016x: base %d, docs %d, deleted %d (delgen %d), %d bytes\n",
				seg.ID(), view.Base, seg.Count(), seg.DeletedCount(), seg.DelGen(),
				seg.ByteSize())
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(tocCmd)
}
