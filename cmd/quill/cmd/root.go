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

	"github.com/quillindex/quill/index"
	"github.com/quillindex/quill/store"
)

var (
	indexName string

	ix     *index.Index
	reader *index.Reader
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "quill [dir]",
	Short: "command-line tool to inspect a quill index directory",
	Long:  `A command-line tool to look at the table of contents, fields, dictionaries, postings and stored documents of a quill index.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("must specify path to index directory")
		}
		st, err := store.OpenFileStorage(args[0])
		if err != nil {
			return fmt.Errorf("error opening directory: %v", err)
		}
		opts := []index.Option{}
		if indexName != "" {
			opts = append(opts, index.WithName(indexName))
		}
		ix, err = index.Open(st, opts...)
		if err != nil {
			return fmt.Errorf("error opening index: %v", err)
		}
		reader, err = ix.Reader()
		if err != nil {
			return fmt.Errorf("error opening reader: %v", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if reader != nil {
			_ = reader.Close()
		}
		if ix != nil {
			_ = ix.Close()
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&indexName, "index-name", "",
		"index name within the directory (default MAIN)")
}
