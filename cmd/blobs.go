package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"LocalFM/core/app"
	"LocalFM/storage"

	"github.com/spf13/cobra"
)

var (
	blobsPrefix string
	blobsStats  bool
	blobsDelete bool
)

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "资源存储管理",
	Long:  `查看和管理资源存储中的对象: 列出对象, 查看统计信息, 按前缀删除.`,
	Example: `  # 列出所有对象
  localfm blobs

  # 只看音频
  localfm blobs -p "audio:"

  # 统计信息
  localfm blobs -s

  # 删除所有专辑封面
  localfm blobs -d -p "image:album:"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		blobs, err := app.OpenBlobs(cfg)
		if err != nil {
			return err
		}
		defer blobs.Close()

		admin, ok := blobs.(storage.Admin)
		if !ok {
			return fmt.Errorf("blob backend %q cannot list objects", cfg.BlobBackend)
		}

		if blobsDelete {
			if blobsPrefix == "" {
				return fmt.Errorf("删除操作需要指定前缀 (--prefix)")
			}
			n, err := admin.DeletePrefix(ctx, blobsPrefix)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d objects under %q\n", n, blobsPrefix)
			return nil
		}

		objects, err := admin.List(ctx, blobsPrefix)
		if err != nil {
			return err
		}
		if blobsStats {
			printStats(storage.Summarize(objects))
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tTYPE\tMODIFIED")
		for _, obj := range objects {
			modified := "-"
			if !obj.LastModified.IsZero() {
				modified = obj.LastModified.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", obj.Key, storage.FormatSize(obj.Size), obj.ContentType, modified)
		}
		return tw.Flush()
	},
}

func printStats(stats storage.BucketStats) {
	fmt.Printf("对象总数: %d\n", stats.TotalObjects)
	fmt.Printf("总大小:   %s\n", storage.FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Printf("最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}
	kinds := make([]string, 0, len(stats.ByKind))
	for k := range stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("  %-16s %d\n", k, stats.ByKind[k])
	}
}

func init() {
	rootCmd.AddCommand(blobsCmd)
	blobsCmd.Flags().StringVarP(&blobsPrefix, "prefix", "p", "", "按前缀过滤对象或指定要删除的前缀")
	blobsCmd.Flags().BoolVarP(&blobsStats, "stats", "s", false, "显示统计信息")
	blobsCmd.Flags().BoolVarP(&blobsDelete, "delete", "d", false, "删除指定前缀下的所有对象")
}
