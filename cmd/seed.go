package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "写入示例歌曲",
	Long:  `Generates sample tones with gradient covers and registers them. Does nothing when the library already has songs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Library.SeedSamples(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("library already has songs, nothing seeded")
			return nil
		}
		fmt.Printf("seeded %d songs\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
