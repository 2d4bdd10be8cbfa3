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

// postingsCmd prints a term's posting list
var postingsCmd = &cobra.Command{
	Use:   "postings [path] [field] [term]",
	Short: "postings prints the posting list of the specified term",
	Long:  `The postings command walks the term's postings across all segments, printing docnum, weight and positions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 3 {
			return fmt.Errorf("must specify field and term")
		}
		its, err := reader.Postings(args[1], []byte(args[2]))
		if err != nil {
			return fmt.Errorf("error opening postings: %v", err)
		}
		for _, it := range its {
			for it.IsActive() {
				fmt.Printf("doc %d freq %d weight %g positions %v\n",
					it.ID(), it.Freq(), it.Weight(), it.Positions())
				it.Next()
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(postingsCmd)
}
