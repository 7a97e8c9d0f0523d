package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chirino/chat-archive/internal/config"
	"github.com/chirino/chat-archive/internal/service"
	"github.com/urfave/cli/v3"

	// Import plugins to trigger init() registration.
	_ "github.com/chirino/chat-archive/internal/plugin/blob/memstore"
	_ "github.com/chirino/chat-archive/internal/plugin/blob/s3store"
	_ "github.com/chirino/chat-archive/internal/plugin/platform/disabled"
)

// Command returns the inspect sub-command. It reads the archive with the
// messaging platform disabled, so nothing it does can change a chat.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Read the chat archive from the shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "blob-kind",
				Sources: cli.EnvVars("CHAT_ARCHIVE_BLOB_KIND"),
				Usage:   "Blob store backend (s3|memory)",
				Value:   "s3",
			},
			&cli.StringFlag{
				Name:    "s3-bucket",
				Sources: cli.EnvVars("CHAT_ARCHIVE_S3_BUCKET"),
				Usage:   "S3 bucket holding the archive",
			},
			&cli.StringFlag{
				Name:    "s3-prefix",
				Sources: cli.EnvVars("CHAT_ARCHIVE_S3_PREFIX"),
				Usage:   "Key prefix applied to every S3 object",
			},
			&cli.StringFlag{
				Name:    "s3-endpoint",
				Sources: cli.EnvVars("CHAT_ARCHIVE_S3_ENDPOINT", "AWS_ENDPOINT_URL_S3"),
				Usage:   "Custom S3 endpoint URL",
			},
			&cli.BoolFlag{
				Name:    "s3-use-path-style",
				Sources: cli.EnvVars("CHAT_ARCHIVE_S3_USE_PATH_STYLE"),
				Usage:   "Use path-style S3 addressing",
			},
			&cli.StringFlag{
				Name:    "archive-prefix",
				Sources: cli.EnvVars("CHAT_ARCHIVE_PREFIX"),
				Usage:   "Prefix in front of the archive trees",
			},
			&cli.IntFlag{
				Name:    "per-message-load-limit",
				Sources: cli.EnvVars("CHAT_ARCHIVE_PER_MESSAGE_LOAD_LIMIT"),
				Usage:   "Most recent per-message files loaded when opening a room",
				Value:   10,
			},
			&cli.IntFlag{
				Name:    "per-message-scan-cap",
				Sources: cli.EnvVars("CHAT_ARCHIVE_PER_MESSAGE_SCAN_CAP"),
				Usage:   "Maximum per-message keys listed when building the room list",
				Value:   1000,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "rooms",
				Usage: "List rooms, most recently active first",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					archive, err := open(ctx, cmd)
					if err != nil {
						return err
					}
					list, err := archive.ListRooms(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, list)
				},
			},
			{
				Name:      "room",
				Usage:     "Show one room and where it was read from",
				ArgsUsage: "<room-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					roomID := cmd.Args().First()
					if roomID == "" {
						return fmt.Errorf("room id is required")
					}
					archive, err := open(ctx, cmd)
					if err != nil {
						return err
					}
					view, err := archive.GetRoom(ctx, roomID)
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, view)
				},
			},
			{
				Name:      "search",
				Usage:     "Search the conversation index",
				ArgsUsage: "<query>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					archive, err := open(ctx, cmd)
					if err != nil {
						return err
					}
					result, err := archive.Search(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					return printJSON(cmd.Root().Writer, result)
				},
			},
		},
	}
}

func configFrom(cmd *cli.Command) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BlobType = cmd.String("blob-kind")
	cfg.S3Bucket = cmd.String("s3-bucket")
	cfg.S3Prefix = cmd.String("s3-prefix")
	cfg.S3Endpoint = cmd.String("s3-endpoint")
	cfg.S3UsePathStyle = cmd.Bool("s3-use-path-style")
	cfg.ArchivePrefix = cmd.String("archive-prefix")
	cfg.PerMessageLoadLimit = int(cmd.Int("per-message-load-limit"))
	cfg.PerMessageScanCap = int(cmd.Int("per-message-scan-cap"))
	cfg.PlatformType = "none"
	return &cfg
}

func open(ctx context.Context, cmd *cli.Command) (*service.Archive, error) {
	return service.Open(ctx, configFrom(cmd))
}

func printJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
