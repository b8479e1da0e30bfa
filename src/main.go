package main

import (
	"bufio"
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var dataDir string

func main() {
	root := &cobra.Command{
		Use:     APP_NAME,
		Short:   "Offline music library and player",
		Version: APP_VERSION,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(),
		"directory for the library database and settings")

	root.AddCommand(
		importCmd(),
		listCmd(),
		playCmd(),
		playlistCmd(),
		watchCmd(),
		clearCmd(),
		artCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, APP_NAME)
}

// openLibrary opens the store under the data directory and initializes the
// in-memory library from it.
func openLibrary(ctx context.Context) (*Library, *ContentStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := OpenContentStore(filepath.Join(dataDir, STORE_FILENAME))
	if err != nil {
		return nil, nil, err
	}

	library := NewLibrary(store)
	if err := library.Initialize(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return library, store, nil
}

func settingsPath() string {
	return filepath.Join(dataDir, SETTINGS_FILENAME)
}

// --- import ---

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import audio files into the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			files := make([]ImportFile, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				files = append(files, ImportFile{
					Name: filepath.Base(path),
					MIME: mime.TypeByExtension(filepath.Ext(path)),
					Data: data,
				})
			}

			imported := library.ImportFiles(cmd.Context(), files)
			for _, song := range imported {
				fmt.Printf("%s  %s - %s\n", song.ID, song.Artist, song.Title)
			}
			fmt.Printf("%d of %d file(s) imported\n", len(imported), len(args))
			return nil
		},
	}
}

// --- list ---

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the library, sorted by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			songs := library.Songs()
			if len(songs) == 0 {
				fmt.Println("library is empty")
				return nil
			}
			for _, song := range songs {
				fmt.Printf("%s  %-30s %-20s %-20s %s\n",
					song.ID, song.Title, song.Artist, song.Album, formatDuration(song.Duration))
			}
			return nil
		},
	}
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// --- play ---

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play [song-id]",
		Short: "Play the library, starting from a song if given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if len(library.Songs()) == 0 {
				return fmt.Errorf("library is empty; import something first")
			}

			events := &PlayerEvents{
				OnTrackChanged: func(song *Song) {
					fmt.Printf("\n> %s - %s (%s)\n", song.Artist, song.Title, formatDuration(song.Duration))
				},
				OnError: func(msg string) {
					fmt.Printf("\nplayback error: %s\n", msg)
				},
			}
			player := NewPlayer(library, settingsPath(), events)
			defer player.Stop()

			if len(args) == 1 {
				player.Play(args[0])
			} else if ids := library.Queue().IDs(); len(ids) > 0 {
				player.Play(ids[0])
			}

			fmt.Println("commands: p=play/pause n=next b=prev s=shuffle r=repeat f=crossfade m=mute +/-=volume seek <s> q=quit")
			return controlLoop(player)
		},
	}
}

// controlLoop reads single-line transport commands until quit or EOF.
func controlLoop(player *Player) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q", "quit":
			return nil
		case "p":
			// Toggling from idle restarts the selection; the engine
			// itself treats play-pause as a no-op there.
			if song := player.Current(); song != nil && player.State() == StateIdle {
				player.Play(song.ID)
			} else if err := player.PlayPause(); err != nil {
				fmt.Println(err)
			}
		case "n":
			player.Skip(DirNext)
		case "b":
			player.Skip(DirPrevious)
		case "s":
			on := !player.Prefs().Shuffle
			player.SetShuffle(on)
			fmt.Printf("shuffle: %v\n", on)
		case "r":
			mode := (player.Prefs().Repeat + 1) % 3
			player.SetRepeat(mode)
			fmt.Printf("repeat: %s\n", mode)
		case "f":
			on := !player.Prefs().Crossfade
			player.SetCrossfade(on)
			fmt.Printf("crossfade: %v\n", on)
		case "m":
			player.ToggleMute()
			fmt.Printf("muted: %v\n", player.Prefs().Muted)
		case "+":
			player.SetVolume(player.Prefs().Volume + 0.1)
			fmt.Printf("volume: %.0f%%\n", player.Prefs().Volume*100)
		case "-":
			player.SetVolume(player.Prefs().Volume - 0.1)
			fmt.Printf("volume: %.0f%%\n", player.Prefs().Volume*100)
		case "seek":
			if len(fields) != 2 {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			secs, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			if err := player.Seek(secs); err != nil {
				fmt.Println(err)
			}
		case "i":
			if song := player.Current(); song != nil {
				fmt.Printf("%s - %s  %s / %s  [%s]\n",
					song.Artist, song.Title,
					formatDuration(player.Position()), formatDuration(player.Duration()),
					player.State())
			} else {
				fmt.Println("nothing loaded")
			}
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
	return scanner.Err()
}

// --- playlist ---

func playlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage playlists",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			pl, err := library.CreatePlaylist(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s\n", pl.ID, pl.Name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <playlist> <song-id>",
		Short: "Add a song to a playlist (by playlist name or id)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			pl, err := findPlaylist(library, args[0])
			if err != nil {
				return err
			}
			if _, ok := library.Song(args[1]); !ok {
				return ErrSongNotFound
			}
			return library.AddToPlaylist(cmd.Context(), pl.ID, args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <playlist> <song-id>",
		Short: "Remove a song from a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			pl, err := findPlaylist(library, args[0])
			if err != nil {
				return err
			}
			return library.RemoveFromPlaylist(cmd.Context(), pl.ID, args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <playlist>",
		Short: "Delete a playlist (its songs stay in the library)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			pl, err := findPlaylist(library, args[0])
			if err != nil {
				return err
			}
			return library.DeletePlaylist(cmd.Context(), pl.ID)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List playlists and their songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			playlists := library.Playlists()
			if len(playlists) == 0 {
				fmt.Println("no playlists")
				return nil
			}
			for _, pl := range playlists {
				fmt.Printf("%s  %s (%d songs)\n", pl.ID, pl.Name, len(pl.SongIDs))
				for _, id := range pl.SongIDs {
					if song, ok := library.Song(id); ok {
						fmt.Printf("    %s - %s\n", song.Artist, song.Title)
					}
				}
			}
			return nil
		},
	})

	return cmd
}

// findPlaylist resolves a playlist by id first, then by exact name.
func findPlaylist(library *Library, key string) (*Playlist, error) {
	if pl, ok := library.Playlist(key); ok {
		return pl, nil
	}
	for _, pl := range library.Playlists() {
		if pl.Name == key {
			return pl, nil
		}
	}
	return nil, ErrPlaylistNotFound
}

// --- watch ---

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Import audio files dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			library, store, err := openLibrary(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Printf("watching %s (ctrl-c to stop)\n", args[0])
			err = NewDirWatcher(library, args[0]).Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

// --- clear ---

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every song and blob; playlists survive but empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print("this deletes all imported music; type yes to continue: ")
			scanner := bufio.NewScanner(os.Stdin)
			if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "yes" {
				fmt.Println("aborted")
				return nil
			}

			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := library.ClearLibrary(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("library cleared")
			return nil
		},
	}
}

// --- art ---

func artCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "art <song-id> <out.png>",
		Short: "Write a song's cover tile as a PNG",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			library, store, err := openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if _, ok := library.Song(args[0]); !ok {
				return ErrSongNotFound
			}
			img := library.CoverArt(args[0], ART_TILE_SIZE)
			if err := saveArtPNG(args[1], img); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}
			fmt.Printf("wrote %s\n", args[1])
			return nil
		},
	}
}
