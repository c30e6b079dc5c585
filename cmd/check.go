package cmd

import (
	"fmt"

	"LocalFM/model"
	"LocalFM/repository"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查元数据与资源的一致性",
	Long:  `Lists asset references whose blob is missing, songs without an album and playlist entries without a song. Missing assets render as placeholders; this only reports them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var issues []repository.Issue
		var checkErr error
		a.Library.View(func(doc *model.Document) {
			fmt.Printf("schema v%d: %d users, %d songs, %d albums, %d playlists\n",
				doc.SchemaVersion, len(doc.Users), len(doc.Songs), len(doc.Albums), len(doc.Playlists))
			issues, checkErr = repository.CheckIntegrity(ctx, doc, a.Blobs)
		})
		if checkErr != nil {
			return checkErr
		}
		if len(issues) == 0 {
			fmt.Println("no issues found")
			return nil
		}
		for _, issue := range issues {
			fmt.Println(issue.String())
		}
		return fmt.Errorf("%d issues found", len(issues))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
