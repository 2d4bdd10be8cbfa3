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
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// storedCmd prints a document's stored fields
var storedCmd = &cobra.Command{
	Use:   "stored [path] [docnum]",
	Short: "stored prints the stored fields of the specified document",
	Long:  `The stored command prints the stored field map of one external document number.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return fmt.Errorf("must specify docnum")
		}
		docnum, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad docnum: %v", err)
		}
		fields, err := reader.StoredFields(docnum)
		if err != nil {
			return fmt.Errorf("error reading stored fields: %v", err)
		}
		if reader.IsDeleted(docnum) {
			fmt.Println("(deleted)")
		}
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s: %v\n", name, fields[name])
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(storedCmd)
}
