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

// dictCmd prints a field's term dictionary
var dictCmd = &cobra.Command{
	Use:   "dict [path] [field]",
	Short: "dict prints the term dictionary for the specified field",
	Long:  `The dict command prints every term of the field, with per-segment document frequencies summed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return fmt.Errorf("must specify field")
		}
		field := args[1]
		terms, err := reader.FieldTerms(field, 0)
		if err != nil {
			return fmt.Errorf("error listing terms: %v", err)
		}
		for _, term := range terms {
			info, _, err := reader.TermInfo(field, term)
			if err != nil {
				return err
			}
			fmt.Printf("%q docfreq=%d totalfreq=%d\n", term, info.DocFreq, info.TotalFreq)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dictCmd)
}
