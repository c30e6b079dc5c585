package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"LocalFM/core/app"
	"LocalFM/core/player"

	"github.com/spf13/cobra"
)

var (
	playUser     string
	playPassword string
)

var playCmd = &cobra.Command{
	Use:   "play SONG_ID [QUEUE_SONG_ID...]",
	Short: "播放歌曲",
	Long: `Plays SONG_ID through the configured output. Extra ids form the queue
(SONG_ID is included when listed again, otherwise it plays outside the queue).

Controls, one per line on stdin:
  p        play/pause
  n, b     next, previous
  s 0.5    seek to a fraction of the track
  v 0.8    volume
  q        quit`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("bad song id %q", arg)
			}
			ids = append(ids, id)
		}
		var queue []int64
		if len(ids) > 1 {
			queue = ids[1:]
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := signIn(ctx, a, playUser, playPassword); err != nil {
			return err
		}

		states, cancel := a.Engine.Subscribe()
		defer cancel()
		go printStates(states)

		if err := a.Engine.Play(ctx, ids[0], queue); err != nil {
			return err
		}
		return controlLoop(ctx, a)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringVarP(&playUser, "user", "u", "", "登录用户名 (可选)")
	playCmd.Flags().StringVarP(&playPassword, "password", "p", "", "密码")
}

// printStates prints a line whenever the song or status changes.
func printStates(states <-chan player.State) {
	var last player.State
	for st := range states {
		if st.Status == last.Status && st.SongID == last.SongID {
			continue
		}
		last = st
		switch st.Status {
		case player.StatusPlaying, player.StatusPaused:
			explicit := ""
			if st.Explicit {
				explicit = " [E]"
			}
			fmt.Printf("%-7s #%d %s - %s%s (%s / %s)\n", st.Status, st.SongID, st.Title, st.Artist,
				explicit, clock(st.Elapsed), clock(st.Total))
		case player.StatusError:
			fmt.Printf("error   %s\n", st.Error)
		default:
			fmt.Printf("%s\n", st.Status)
		}
	}
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func controlLoop(ctx context.Context, a *app.App) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "p":
			err = a.Engine.Toggle()
		case "n":
			err = a.Engine.Next(ctx)
		case "b":
			err = a.Engine.Prev(ctx)
		case "s", "v":
			if len(fields) < 2 {
				err = fmt.Errorf("%s needs a value", fields[0])
				break
			}
			var v float64
			if v, err = strconv.ParseFloat(fields[1], 64); err != nil {
				break
			}
			if fields[0] == "s" {
				err = a.Engine.Seek(v)
			} else {
				err = a.Engine.SetVolume(v)
			}
		case "q":
			return nil
		default:
			err = fmt.Errorf("unknown control %q", fields[0])
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
