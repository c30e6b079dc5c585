package cmd

import (
	"fmt"

	"LocalFM/core/upload"

	"github.com/spf13/cobra"
)

var (
	importDir      string
	importUser     string
	importPassword string
	importWatch    bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "导入收件箱中的音频",
	Long: `Imports "<name>.<audio>" + "<name>.<jpg|png|webp>" pairs from the inbox as
the given user. Imported pairs move to done/, rejected ones to failed/ with an
error note. With --watch, keeps importing new pairs until interrupted.`,
	Example: `  localfm import -u bob -p secret
  localfm import -u bob -p secret --dir ~/Music/inbox --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := signIn(ctx, a, importUser, importPassword); err != nil {
			return err
		}

		dir := importDir
		if dir == "" {
			dir = cfg.UploadInbox
		}
		w := upload.NewWatcher(dir, a.Library)
		if importWatch {
			fmt.Printf("watching %s\n", dir)
			return w.Run(ctx)
		}

		results, err := w.ImportPending(ctx)
		if err != nil {
			return err
		}
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", r.Name, r.Err)
				continue
			}
			fmt.Printf("OK   %s -> song %d (%s)\n", r.Name, r.Song.ID, r.Song.Title)
		}
		fmt.Printf("%d imported, %d failed\n", len(results)-failed, failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importDir, "dir", "d", "", "收件箱目录, 默认 UPLOAD_INBOX")
	importCmd.Flags().StringVarP(&importUser, "user", "u", "", "上传者用户名")
	importCmd.Flags().StringVarP(&importPassword, "password", "p", "", "密码")
	importCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "持续监听新文件")
	_ = importCmd.MarkFlagRequired("user")
}
