package cmd

import (
	"LocalFM/server"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 LocalFM 服务器",
	Long:  `Serves live asset handles, the JSON API and the player state websocket until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(a)
		defer srv.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址, 默认 HTTP_ADDR")
}
