package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/cuemby/checksplit/pkg/checkpointstore"
	"github.com/cuemby/checksplit/pkg/config"
	"github.com/cuemby/checksplit/pkg/log"
	"github.com/cuemby/checksplit/pkg/metrics"
	"github.com/cuemby/checksplit/pkg/sizer"
	"github.com/cuemby/checksplit/pkg/storage"
	"github.com/cuemby/checksplit/pkg/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "checkpointctl",
	Short:   "Inspect and operate a checkpoint splitting store",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("checkpointctl version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./data", "BoltDB data directory")
	rootCmd.PersistentFlags().String("config", "", "Path to a SplitConfig YAML file (uses defaults with splitting enabled if unset)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteThreadCmd)
	rootCmd.AddCommand(gcOrphansCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func loadConfig(cmd *cobra.Command) (config.SplitConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		cfg := config.Default()
		cfg.Enabled = true
		return cfg, nil
	}
	return config.Load(path)
}

func openStore(cmd *cobra.Command) (*storage.BoltStore, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return storage.NewBoltStore(dataDir)
}

// checkpoint-from-file helpers: operator tooling reads checkpoint and
// metadata as plain JSON files so put/analyze can be exercised
// without a running agent runtime.

func readCheckpointFile(path string) (types.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var raw struct {
		Channels []struct {
			Name     string `json:"name"`
			Opaque   any    `json:"opaque,omitempty"`
			Messages *struct {
				Version string `json:"version"`
				Entries []any  `json:"entries"`
			} `json:"messages,omitempty"`
		} `json:"channels"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.Checkpoint{}, fmt.Errorf("failed to parse checkpoint file: %w", err)
	}
	cp := types.Checkpoint{Channels: make([]types.ChannelEntry, len(raw.Channels))}
	for i, c := range raw.Channels {
		entry := types.ChannelEntry{Name: c.Name, Value: types.ChannelValue{Opaque: c.Opaque}}
		if c.Messages != nil {
			entry.Value.Messages = &types.MessageList{Version: c.Messages.Version, Entries: c.Messages.Entries}
		}
		cp.Channels[i] = entry
	}
	return cp, nil
}

func readMetadataFile(path string) (types.Metadata, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	var md any
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata file: %w", err)
	}
	return md, nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze CHECKPOINT_FILE",
	Short: "Run the Sizer against a checkpoint file without writing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cp, err := readCheckpointFile(args[0])
		if err != nil {
			return err
		}
		metadataPath, _ := cmd.Flags().GetString("metadata")
		md, err := readMetadataFile(metadataPath)
		if err != nil {
			return err
		}

		analysis, err := sizer.Analyze(&cp, md, cfg)
		if err != nil {
			return fmt.Errorf("failed to analyze checkpoint: %w", err)
		}

		fmt.Printf("Total size:        %d bytes\n", analysis.TotalSize)
		fmt.Printf("Exceeds threshold: %t\n", analysis.ExceedsThreshold)
		fmt.Printf("Largest component: %s\n", analysis.LargestComponent)
		fmt.Printf("Estimated parts:   %d\n", analysis.EstimatedParts)
		if analysis.LargestChannel != nil {
			fmt.Printf("Largest channel:   %s (%d messages, ~%d bytes)\n",
				analysis.LargestChannel.Name, analysis.LargestChannel.MessageCount, analysis.LargestChannel.EstimatedSize)
		}
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put THREAD_ID NAMESPACE ID CHECKPOINT_FILE",
	Short: "Write a checkpoint, sharding it if it exceeds the configured threshold",
	Long:  `Pass "-" as ID to generate a new one.`,
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		cp, err := readCheckpointFile(args[3])
		if err != nil {
			return err
		}
		metadataPath, _ := cmd.Flags().GetString("metadata")
		md, err := readMetadataFile(metadataPath)
		if err != nil {
			return err
		}

		id := args[2]
		if id == "-" {
			id = uuid.New().String()
		}

		adapter := checkpointstore.New(store, cfg)
		key := checkpointstore.RecordKey{ThreadID: args[0], Namespace: args[1], ID: id}
		ref, err := adapter.Put(context.Background(), key, cp, md)
		if err != nil {
			return fmt.Errorf("failed to put checkpoint: %w", err)
		}

		fmt.Printf("Stored checkpoint: threadId=%s namespace=%s id=%s\n", ref.ThreadID, ref.CheckpointNs, ref.CheckpointID)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get THREAD_ID NAMESPACE ID",
	Short: "Read a checkpoint, reassembling it if it was sharded",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		adapter := checkpointstore.New(store, cfg)
		key := checkpointstore.RecordKey{ThreadID: args[0], Namespace: args[1], ID: args[2]}
		tuple, err := adapter.GetTuple(context.Background(), key)
		if err != nil {
			return fmt.Errorf("failed to get checkpoint: %w", err)
		}
		if tuple == nil {
			fmt.Println("Not found")
			return nil
		}

		out, err := json.MarshalIndent(tuple, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render checkpoint: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list THREAD_ID NAMESPACE",
	Short: "List logical records under a thread, filtering out shard auxiliaries",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		adapter := checkpointstore.New(store, cfg)
		tuples, err := adapter.List(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to list checkpoints: %w", err)
		}

		fmt.Printf("%d record(s)\n", len(tuples))
		for i, t := range tuples {
			fmt.Printf("%d: %d channel(s)\n", i, len(t.Checkpoint.Channels))
		}
		return nil
	},
}

var deleteThreadCmd = &cobra.Command{
	Use:   "delete-thread THREAD_ID",
	Short: "Delete every record under a thread, including shard auxiliaries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		adapter := checkpointstore.New(store, cfg)
		if err := adapter.DeleteThread(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete thread: %w", err)
		}
		fmt.Printf("Deleted thread: %s\n", args[0])
		return nil
	},
}

var gcOrphansCmd = &cobra.Command{
	Use:   "gc-orphans THREAD_ID",
	Short: "Remove auxiliary shards whose primary record is missing or no longer split",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.GC(context.Background(), args[0], cfg.SplitRecordPrefix)
		if err != nil {
			return fmt.Errorf("failed to garbage collect orphan shards: %w", err)
		}
		fmt.Printf("Removed %d orphan shard(s)\n", removed)
		return nil
	},
}

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Serve Prometheus metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		fmt.Printf("Serving metrics on %s/metrics\n", addr)
		return http.ListenAndServe(addr, mux)
	},
}

func init() {
	analyzeCmd.Flags().String("metadata", "", "Path to a metadata JSON file")
	putCmd.Flags().String("metadata", "", "Path to a metadata JSON file")
	serveMetricsCmd.Flags().String("addr", ":9090", "Listen address")
}
