package cmd

import (
	"errors"
	"fmt"

	"LocalFM/core/app"
	"LocalFM/db"
	"LocalFM/model"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "存储后端连接测试",
	Long:  `测试元数据后端与资源存储是否可用, 只读不写.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fmt.Printf("元数据后端: %s\n", cfg.MetadataBackend)
		docs, err := db.Open(cfg)
		if err != nil {
			return fmt.Errorf("无法连接元数据后端: %w", err)
		}
		defer docs.Close()
		data, err := docs.Read(ctx)
		switch {
		case errors.Is(err, db.ErrNoDocument):
			fmt.Println("  连接成功, 尚无文档")
		case err != nil:
			return fmt.Errorf("读取元数据失败: %w", err)
		default:
			fmt.Printf("  连接成功, 文档 %d 字节\n", len(data))
		}

		fmt.Printf("资源存储: %s\n", cfg.BlobBackend)
		blobs, err := app.OpenBlobs(cfg)
		if err != nil {
			return err
		}
		defer blobs.Close()
		if _, _, err := blobs.Get(ctx, model.AudioAsset(0)); err != nil {
			return fmt.Errorf("资源存储不可用: %w", err)
		}
		fmt.Println("  连接成功")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
