package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	regUsername    string
	regPassword    string
	regDisplayName string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "注册用户",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Library.Register(cmd.Context(), regUsername, regPassword, regDisplayName)
		if err != nil {
			return err
		}
		fmt.Printf("registered %s (id %d)\n", u.Username, u.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().StringVarP(&regUsername, "username", "u", "", "用户名")
	registerCmd.Flags().StringVarP(&regPassword, "password", "p", "", "密码")
	registerCmd.Flags().StringVar(&regDisplayName, "display-name", "", "显示名称, 默认为用户名")
	_ = registerCmd.MarkFlagRequired("username")
	_ = registerCmd.MarkFlagRequired("password")
}
