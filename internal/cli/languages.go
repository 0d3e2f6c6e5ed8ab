package cli

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dshills/codescan/internal/corpus"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and their file extensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return pterm.DefaultTable.WithHasHeader().WithData(languageTable()).Render()
	},
}

func languageTable() pterm.TableData {
	data := pterm.TableData{{"Language", "Name", "Extensions"}}
	for _, lang := range corpus.Languages() {
		data = append(data, []string{lang, corpus.DisplayName(lang), strings.Join(corpus.Extensions(lang), " ")})
	}
	return data
}
