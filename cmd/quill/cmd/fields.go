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

	"github.com/quillindex/quill/schema"
)

// fieldsCmd prints the schema fields
var fieldsCmd = &cobra.Command{
	Use:   "fields [path]",
	Short: "fields prints the schema of the index",
	Long:  `The fields command prints every field definition of the index schema.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for fieldID, def := range reader.Schema().Fields() {
			flags := ""
			if def.Stored {
				flags += " stored"
			}
			if def.Unique {
				flags += " unique"
			}
			if def.Column != schema.NoColumn {
				flags += " sortable"
			}
			if def.Vector {
				flags += " vector"
			}
			fmt.Printf("field %d %q analyzer=%q format=%08b%s\n",
				fieldID, def.Name, def.Analyzer, def.Format, flags)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(fieldsCmd)
}
